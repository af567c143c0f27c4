// Package remote talks to the content management service. The engine only
// depends on the capability set below; transport concerns like retries or
// auth schemes stay behind it.
package remote

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/types"
)

// ErrNotFound is returned when the remote service reports a missing node.
var ErrNotFound = errors.New("remote: node not found")

// Client is the capability set consumed by the sync engine. Calls either
// succeed, return ErrNotFound, or fail with a typed AppError.
type Client interface {
	// GetUser authenticates with the credentials the client was built
	// with and returns the account owning the hierarchy
	GetUser(ctx context.Context) (types.RemoteUser, error)

	// GetNodeByID fetches one node, ErrNotFound when absent
	GetNodeByID(ctx context.Context, id uuid.UUID) (types.RemoteNode, error)

	// ListChildrenByName returns all children of parentID with exactly
	// the given name
	ListChildrenByName(ctx context.Context, parentID uuid.UUID, name string) ([]types.RemoteNode, error)

	// CreateCollection creates a collection node under the given parent
	CreateCollection(ctx context.Context, parentID uuid.UUID, name string, tags []string) (types.RemoteNode, error)

	// CreateItemsBulk creates item records in bulk, preserving input order
	CreateItemsBulk(ctx context.Context, parentID uuid.UUID, specs []types.ItemSpec) ([]types.RemoteNode, error)

	// UploadContent attaches file content to an existing item record
	UploadContent(ctx context.Context, itemID uuid.UUID, r io.Reader, filename, mimeType string, size int64) error
}

// Factory builds a client bound to one user's credentials.
type Factory func(login, password string) Client
