package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/types"
)

// HTTPClient implements Client against the service's JSON API using basic
// auth. Calls are fail-fast with a bounded timeout; retry policy, if any,
// belongs to the caller's configuration of the service, not here.
type HTTPClient struct {
	baseURL  string
	login    string
	password string
	client   *http.Client
	logger   logging.Logger
}

// NewHTTPClient creates a client bound to one user's credentials.
func NewHTTPClient(baseURL, login, password string, timeout time.Duration, logger logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		login:    login,
		password: password,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// NewFactory returns a Factory producing HTTP clients for the given service.
func NewFactory(baseURL string, timeout time.Duration, logger logging.Logger) Factory {
	return func(login, password string) Client {
		return NewHTTPClient(baseURL, login, password, timeout, logger)
	}
}

func (c *HTTPClient) GetUser(ctx context.Context) (types.RemoteUser, error) {
	var user types.RemoteUser
	if err := c.getJSON(ctx, "/v1/info/whoami", nil, &user); err != nil {
		return types.RemoteUser{}, classify("whoami", err)
	}
	return user, nil
}

func (c *HTTPClient) GetNodeByID(ctx context.Context, id uuid.UUID) (types.RemoteNode, error) {
	var node types.RemoteNode
	if err := c.getJSON(ctx, "/v1/items/"+id.String(), nil, &node); err != nil {
		return types.RemoteNode{}, classify("get item", err)
	}
	return node, nil
}

func (c *HTTPClient) ListChildrenByName(ctx context.Context, parentID uuid.UUID, name string) ([]types.RemoteNode, error) {
	query := url.Values{}
	query.Set("parent_uuid", parentID.String())
	query.Set("name", name)

	var result struct {
		Items []types.RemoteNode `json:"items"`
	}
	if err := c.getJSON(ctx, "/v1/items", query, &result); err != nil {
		return nil, classify("list children", err)
	}
	return result.Items, nil
}

func (c *HTTPClient) CreateCollection(ctx context.Context, parentID uuid.UUID, name string, tags []string) (types.RemoteNode, error) {
	payload := map[string]interface{}{
		"parent_uuid":   parentID.String(),
		"name":          name,
		"is_collection": true,
		"tags":          tags,
	}

	var node types.RemoteNode
	if err := c.postJSON(ctx, "/v1/items", payload, &node); err != nil {
		return types.RemoteNode{}, classify("create collection", err)
	}
	c.logger.Info("Created remote collection",
		logging.F("name", name),
		logging.F("id", node.ID.String()),
		logging.F("parentId", parentID.String()),
	)
	return node, nil
}

func (c *HTTPClient) CreateItemsBulk(ctx context.Context, parentID uuid.UUID, specs []types.ItemSpec) ([]types.RemoteNode, error) {
	payload := map[string]interface{}{
		"parent_uuid": parentID.String(),
		"items":       specs,
	}

	var result struct {
		Items []types.RemoteNode `json:"items"`
	}
	if err := c.postJSON(ctx, "/v1/items/bulk", payload, &result); err != nil {
		return nil, classify("bulk create", err)
	}
	if len(result.Items) != len(specs) {
		return nil, classify("bulk create", &statusError{
			status: http.StatusBadGateway,
			body:   fmt.Sprintf("expected %d created items, got %d", len(specs), len(result.Items)),
		})
	}
	return result.Items, nil
}

func (c *HTTPClient) UploadContent(ctx context.Context, itemID uuid.UUID, r io.Reader, filename, mimeType string, size int64) error {
	endpoint := fmt.Sprintf("%s/v1/items/%s/content?filename=%s",
		c.baseURL, itemID.String(), url.QueryEscape(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, r)
	if err != nil {
		return classify("upload content", err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", mimeType)
	req.ContentLength = size

	resp, err := c.client.Do(req)
	if err != nil {
		return classify("upload content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classify("upload content", &statusError{status: resp.StatusCode, body: string(body)})
	}
	return nil
}

// statusError carries an HTTP failure until classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.login, c.password)

	return c.do(req, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
