package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, "alice", "secret", 5*time.Second, logging.NewNoOpLogger())
}

func TestGetUser(t *testing.T) {
	userID := uuid.New()
	rootID := uuid.New()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/info/whoami" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		login, password, ok := r.BasicAuth()
		if !ok || login != "alice" || password != "secret" {
			t.Error("Expected basic auth credentials")
		}
		json.NewEncoder(w).Encode(types.RemoteUser{
			ID:               userID,
			Login:            "alice",
			Name:             "alice",
			RootCollectionID: rootID,
		})
	}))

	user, err := client.GetUser(context.Background())
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.ID != userID || user.RootCollectionID != rootID {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestGetUser_BadCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := client.GetUser(context.Background())
	if !utils.HasCode(err, utils.ErrCodeUserError) {
		t.Errorf("Expected USER_ERROR, got %v", err)
	}
}

func TestFactoryBindsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok || login != "bob" || password != "hunter2" {
			t.Errorf("BasicAuth = %q/%q, want bob/hunter2", login, password)
		}
		json.NewEncoder(w).Encode(types.RemoteUser{ID: uuid.New(), Login: "bob"})
	}))
	t.Cleanup(server.Close)

	factory := NewFactory(server.URL, 5*time.Second, logging.NewNoOpLogger())
	client := factory("bob", "hunter2")

	user, err := client.GetUser(context.Background())
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Login != "bob" {
		t.Errorf("Login = %q, want bob", user.Login)
	}
}

func TestGetNodeByID_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.GetNodeByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetNodeByID_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.GetNodeByID(context.Background(), uuid.New())
	if !utils.HasCode(err, utils.ErrCodeNetworkError) {
		t.Errorf("Expected NETWORK_ERROR, got %v", err)
	}
}

func TestListChildrenByName(t *testing.T) {
	parentID := uuid.New()
	childID := uuid.New()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/items" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("parent_uuid"); got != parentID.String() {
			t.Errorf("parent_uuid = %s, want %s", got, parentID)
		}
		if got := r.URL.Query().Get("name"); got != "trip" {
			t.Errorf("name = %s, want trip", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []types.RemoteNode{
				{ID: childID, ParentID: parentID, Name: "trip", IsCollection: true},
			},
		})
	}))

	nodes, err := client.ListChildrenByName(context.Background(), parentID, "trip")
	if err != nil {
		t.Fatalf("ListChildrenByName() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != childID {
		t.Errorf("Unexpected nodes: %+v", nodes)
	}
}

func TestCreateCollection(t *testing.T) {
	parentID := uuid.New()
	newID := uuid.New()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/items" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("Decoding payload: %v", err)
		}
		if payload["name"] != "trip" || payload["is_collection"] != true {
			t.Errorf("Unexpected payload: %v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(types.RemoteNode{
			ID: newID, ParentID: parentID, Name: "trip", IsCollection: true,
		})
	}))

	node, err := client.CreateCollection(context.Background(), parentID, "trip", []string{"beach"})
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if node.ID != newID {
		t.Errorf("Unexpected node: %+v", node)
	}
}

func TestCreateItemsBulk_CountMismatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []types.RemoteNode{{ID: uuid.New()}},
		})
	}))

	specs := []types.ItemSpec{{Name: "a.jpg"}, {Name: "b.jpg"}}
	_, err := client.CreateItemsBulk(context.Background(), uuid.New(), specs)
	if !utils.HasCode(err, utils.ErrCodeNetworkError) {
		t.Errorf("Expected NETWORK_ERROR for count mismatch, got %v", err)
	}
}

func TestUploadContent(t *testing.T) {
	itemID := uuid.New()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/v1/items/" + itemID.String() + "/content"
		if r.Method != http.MethodPut || r.URL.Path != wantPath {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("filename") != "a.jpg" {
			t.Errorf("filename = %s", r.URL.Query().Get("filename"))
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Content-Type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpegdata" {
			t.Errorf("Body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.UploadContent(context.Background(), itemID,
		strings.NewReader("jpegdata"), "a.jpg", "image/jpeg", 8)
	if err != nil {
		t.Fatalf("UploadContent() error = %v", err)
	}
}

func TestUploadContent_Failure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage full", http.StatusInsufficientStorage)
	}))

	err := client.UploadContent(context.Background(), uuid.New(),
		strings.NewReader("x"), "a.jpg", "image/jpeg", 1)
	if !utils.HasCode(err, utils.ErrCodeNetworkError) {
		t.Errorf("Expected NETWORK_ERROR, got %v", err)
	}
}
