// Package mocks provides an in-memory remote client for tests.
package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// MockClient is an in-memory implementation of remote.Client. It keeps a
// node store and counts calls so tests can assert on network traffic.
type MockClient struct {
	mu sync.Mutex

	users     map[string]types.RemoteUser
	passwords map[string]string
	nodes     map[uuid.UUID]types.RemoteNode

	// UploadErrors makes UploadContent fail for specific filenames
	UploadErrors map[string]error

	// FailAll makes every call fail with a network error when set
	FailAll bool

	GetUserCalls          int
	GetNodeCalls          int
	ListCalls             int
	CreateCollectionCalls int
	BulkCalls             int
	UploadCalls           int

	// UploadedFilenames records successful content uploads in order
	UploadedFilenames []string
}

// NewMockClient creates an empty mock client
func NewMockClient() *MockClient {
	return &MockClient{
		users:        make(map[string]types.RemoteUser),
		passwords:    make(map[string]string),
		nodes:        make(map[uuid.UUID]types.RemoteNode),
		UploadErrors: make(map[string]error),
	}
}

// AddUser registers an account with a fresh root collection and returns it.
func (c *MockClient) AddUser(login, password, name string) types.RemoteUser {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := types.RemoteNode{ID: uuid.New(), Name: name, IsCollection: true}
	c.nodes[root.ID] = root

	user := types.RemoteUser{
		ID:               uuid.New(),
		Login:            login,
		Name:             name,
		RootCollectionID: root.ID,
	}
	c.users[login] = user
	c.passwords[login] = password
	return user
}

// AddCollection seeds an existing remote collection.
func (c *MockClient) AddCollection(parentID uuid.UUID, name string, tags []string) types.RemoteNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := types.RemoteNode{
		ID:           uuid.New(),
		ParentID:     parentID,
		Name:         name,
		Tags:         tags,
		IsCollection: true,
	}
	c.nodes[node.ID] = node
	return node
}

// Node returns a stored node by id.
func (c *MockClient) Node(id uuid.UUID) (types.RemoteNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[id]
	return node, ok
}

// ChildrenOf returns all stored children of a parent.
func (c *MockClient) ChildrenOf(parentID uuid.UUID) []types.RemoteNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.RemoteNode
	for _, node := range c.nodes {
		if node.ParentID == parentID {
			out = append(out, node)
		}
	}
	return out
}

func (c *MockClient) networkFailure(operation string) error {
	return utils.NewAppError(utils.ErrCodeNetworkError,
		fmt.Sprintf("Remote call failed: %s", operation)).
		Build()
}

// Bound returns a view of the store authenticating as the given user, the
// way remote.NewFactory binds credentials into each real client.
func (c *MockClient) Bound(login, password string) remote.Client {
	return &boundClient{MockClient: c, login: login, password: password}
}

// boundClient carries the credentials GetUser authenticates with. All other
// calls go straight to the shared store.
type boundClient struct {
	*MockClient
	login    string
	password string
}

func (b *boundClient) GetUser(ctx context.Context) (types.RemoteUser, error) {
	c := b.MockClient
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetUserCalls++

	if c.FailAll {
		return types.RemoteUser{}, c.networkFailure("whoami")
	}
	user, ok := c.users[b.login]
	if !ok || c.passwords[b.login] != b.password {
		return types.RemoteUser{}, utils.NewAppError(utils.ErrCodeUserError,
			fmt.Sprintf("Remote service rejected credentials for %q", b.login)).
			Build()
	}
	return user, nil
}

// GetUser on the bare store has no credentials to present.
func (c *MockClient) GetUser(ctx context.Context) (types.RemoteUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetUserCalls++

	return types.RemoteUser{}, utils.NewAppError(utils.ErrCodeUserError,
		"No credentials bound").
		Build()
}

func (c *MockClient) GetNodeByID(ctx context.Context, id uuid.UUID) (types.RemoteNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetNodeCalls++

	if c.FailAll {
		return types.RemoteNode{}, c.networkFailure("get item")
	}
	node, ok := c.nodes[id]
	if !ok {
		return types.RemoteNode{}, fmt.Errorf("get item: %w", remote.ErrNotFound)
	}
	return node, nil
}

func (c *MockClient) ListChildrenByName(ctx context.Context, parentID uuid.UUID, name string) ([]types.RemoteNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++

	if c.FailAll {
		return nil, c.networkFailure("list children")
	}
	var matches []types.RemoteNode
	for _, node := range c.nodes {
		if node.ParentID == parentID && node.Name == name {
			matches = append(matches, node)
		}
	}
	return matches, nil
}

func (c *MockClient) CreateCollection(ctx context.Context, parentID uuid.UUID, name string, tags []string) (types.RemoteNode, error) {
	c.mu.Lock()
	c.CreateCollectionCalls++
	failed := c.FailAll
	c.mu.Unlock()

	if failed {
		return types.RemoteNode{}, c.networkFailure("create collection")
	}
	return c.AddCollection(parentID, name, tags), nil
}

func (c *MockClient) CreateItemsBulk(ctx context.Context, parentID uuid.UUID, specs []types.ItemSpec) ([]types.RemoteNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BulkCalls++

	if c.FailAll {
		return nil, c.networkFailure("bulk create")
	}
	created := make([]types.RemoteNode, 0, len(specs))
	for _, spec := range specs {
		node := types.RemoteNode{
			ID:       uuid.New(),
			ParentID: parentID,
			Name:     spec.Name,
			Tags:     spec.Tags,
		}
		c.nodes[node.ID] = node
		created = append(created, node)
	}
	return created, nil
}

func (c *MockClient) UploadContent(ctx context.Context, itemID uuid.UUID, r io.Reader, filename, mimeType string, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UploadCalls++

	if c.FailAll {
		return c.networkFailure("upload content")
	}
	if err, ok := c.UploadErrors[filename]; ok {
		return err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	c.UploadedFilenames = append(c.UploadedFilenames, filename)
	return nil
}
