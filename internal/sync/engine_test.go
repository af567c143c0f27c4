package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/config"
	"github.com/dl-alexandre/collsync/internal/journal"
	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/testing/mocks"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// captureRecorder keeps run history in memory for assertions.
type captureRecorder struct {
	begun    int
	finished string
	stats    types.SyncStats
	outcomes []journal.Outcome
}

func (r *captureRecorder) BeginRun(ctx context.Context, dryRun bool) (int64, error) {
	r.begun++
	return 42, nil
}

func (r *captureRecorder) FinishRun(ctx context.Context, runID int64, status string, stats types.SyncStats) error {
	r.finished = status
	r.stats = stats
	return nil
}

func (r *captureRecorder) RecordOutcome(ctx context.Context, o journal.Outcome) error {
	r.outcomes = append(r.outcomes, o)
	return nil
}

func testConfig(users ...config.User) *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIURL = "http://remote.test"
	cfg.DataRoot = "/data"
	cfg.ArchiveRoot = "/archive"
	cfg.Users = users
	return cfg
}

func factoryFor(client *mocks.MockClient) remote.Factory {
	return func(login, password string) remote.Client { return client.Bound(login, password) }
}

func seedFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("seeding %s: %v", path, err)
	}
}

func exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	if err != nil {
		t.Fatalf("checking %s: %v", path, err)
	}
	return ok
}

func TestRunSingleFolderWithLimit(t *testing.T) {
	client := mocks.NewMockClient()
	root := client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/trip/setup.yaml", "no_collection: create\nlimit: 1\n")
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "first")
	seedFile(t, fsys, "/data/alice/trip/b.jpg", "second")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	rec := &captureRecorder{}
	engine := New(cfg, fsys, factoryFor(client), rec, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.UploadedFiles != 1 || stats.MovedFiles != 1 {
		t.Errorf("stats = %+v, want 1 uploaded / 1 moved", stats)
	}

	// a.jpg was processed first: archived preserving the relative path
	if exists(t, fsys, "/data/alice/trip/a.jpg") {
		t.Error("a.jpg still in the data root")
	}
	if !exists(t, fsys, "/archive/alice/trip/a.jpg") {
		t.Error("a.jpg not archived")
	}
	// b.jpg hit the folder limit: untouched, folder not retired
	if !exists(t, fsys, "/data/alice/trip/b.jpg") {
		t.Error("b.jpg must stay in place")
	}

	collections := client.ChildrenOf(root.RootCollectionID)
	if len(collections) != 1 || collections[0].Name != "trip" {
		t.Fatalf("remote collections = %+v", collections)
	}
	items := client.ChildrenOf(collections[0].ID)
	if len(items) != 1 || items[0].Name != "a.jpg" {
		t.Errorf("remote items = %+v", items)
	}

	if rec.begun != 1 || rec.finished != journal.StatusOK {
		t.Errorf("journal: begun=%d finished=%q", rec.begun, rec.finished)
	}
}

func TestRunSecondPassRetiresEmptyFolder(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/trip/setup.yaml", "no_collection: create\nlimit: 1\n")
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "first")
	seedFile(t, fsys, "/data/alice/trip/b.jpg", "second")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})

	first := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	second := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})
	stats, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if stats.UploadedFiles != 1 {
		t.Errorf("second run UploadedFiles = %d, want 1", stats.UploadedFiles)
	}
	if stats.MovedFolders != 1 {
		t.Errorf("second run MovedFolders = %d, want 1", stats.MovedFolders)
	}
	if exists(t, fsys, "/data/alice/trip") {
		t.Error("trip folder should be fully retired")
	}
	if !exists(t, fsys, "/archive/alice/trip/b.jpg") {
		t.Error("b.jpg not archived")
	}
	// No duplicate remote collection on the second pass
	if client.CreateCollectionCalls != 1 {
		t.Errorf("CreateCollectionCalls = %d, want 1", client.CreateCollectionCalls)
	}
}

func TestRunGlobalLimitSpansFolders(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/setup.yaml", "no_collection: create\n")
	seedFile(t, fsys, "/data/alice/one/a.jpg", "a")
	seedFile(t, fsys, "/data/alice/two/b.jpg", "b")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	cfg.GlobalLimit = 1

	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})
	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.UploadedFiles != 1 {
		t.Errorf("UploadedFiles = %d, want 1 (run-wide budget)", stats.UploadedFiles)
	}
	if len(client.UploadedFilenames) != 1 {
		t.Errorf("UploadedFilenames = %v, want exactly one", client.UploadedFilenames)
	}
}

func TestRunConflictSkipsSubtreeOnly(t *testing.T) {
	client := mocks.NewMockClient()
	root := client.AddUser("alice", "secret", "alice")
	remoteTrip := client.AddCollection(root.RootCollectionID, "2019 summer", nil)

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/setup.yaml", "no_collection: create\n")
	// Declared id exists remotely under a different name
	seedFile(t, fsys, "/data/alice/"+remoteTrip.ID.String()+" trip/a.jpg", "a")
	seedFile(t, fsys, "/data/alice/zoo/b.jpg", "b")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	rec := &captureRecorder{}
	engine := New(cfg, fsys, factoryFor(client), rec, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v (node-level conflicts must not fail the run)", err)
	}
	// Only the sibling folder uploaded; the conflicted subtree is untouched
	if stats.UploadedFiles != 1 {
		t.Errorf("UploadedFiles = %d, want 1", stats.UploadedFiles)
	}
	if !exists(t, fsys, "/data/alice/"+remoteTrip.ID.String()+" trip/a.jpg") {
		t.Error("conflicted folder's file must stay untouched")
	}

	var conflictRecorded bool
	for _, o := range rec.outcomes {
		if o.Action == journal.ActionFailed && o.Detail == utils.ErrCodeConflict {
			conflictRecorded = true
		}
	}
	if !conflictRecorded {
		t.Error("conflict not recorded in the journal")
	}
}

func TestRunMissingPolicyFailSkipsFolder(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	// Default policy: missing remote collections are an error
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "a")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.UploadedFiles != 0 {
		t.Errorf("UploadedFiles = %d, want 0", stats.UploadedFiles)
	}
	if client.CreateCollectionCalls != 0 {
		t.Errorf("CreateCollectionCalls = %d, want 0", client.CreateCollectionCalls)
	}
}

func TestRunEphemeralFolderAttachesChildrenToParent(t *testing.T) {
	client := mocks.NewMockClient()
	root := client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/setup.yaml", "no_collection: create\n")
	seedFile(t, fsys, "/data/alice/by-year/setup.yaml", "ephemeral: true\n")
	seedFile(t, fsys, "/data/alice/by-year/2024/a.jpg", "a")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.UploadedFiles != 1 {
		t.Errorf("UploadedFiles = %d, want 1", stats.UploadedFiles)
	}

	// No collection named by-year; 2024 hangs directly off the root
	collections := client.ChildrenOf(root.RootCollectionID)
	if len(collections) != 1 || collections[0].Name != "2024" {
		t.Fatalf("root collections = %+v, want only 2024", collections)
	}
}

func TestRunUserIsolation(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")
	// bob is not registered: his credentials are rejected

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/setup.yaml", "no_collection: create\n")
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "a")
	seedFile(t, fsys, "/data/bob/trip/b.jpg", "b")

	cfg := testConfig(
		config.User{Name: "bob", Login: "bob", Password: "wrong"},
		config.User{Name: "alice", Login: "alice", Password: "secret"},
	)
	rec := &captureRecorder{}
	engine := New(cfg, fsys, factoryFor(client), rec, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if !utils.HasCode(err, utils.ErrCodeUserError) {
		t.Fatalf("Run() error = %v, want USER_ERROR from bob", err)
	}
	if stats.UploadedFiles != 1 {
		t.Errorf("UploadedFiles = %d, want 1 (alice still ran)", stats.UploadedFiles)
	}
	if rec.finished != journal.StatusFailed {
		t.Errorf("run status = %q, want failed", rec.finished)
	}
}

func TestRunMissingUserFolderSkipped(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/data", 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want graceful skip", err)
	}
	if !stats.Empty() {
		t.Errorf("stats = %+v, want empty", stats)
	}
}

func TestRunRootCollectionMismatch(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "a")

	cfg := testConfig(config.User{
		Name:             "alice",
		Login:            "alice",
		Password:         "secret",
		RootCollectionID: uuid.NewString(),
	})
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	_, err := engine.Run(context.Background())
	if !utils.HasCode(err, utils.ErrCodeConflict) {
		t.Fatalf("Run() error = %v, want CONFLICT", err)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/trip/setup.yaml", "no_collection: create\n")
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "a")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	cfg.DryRun = true
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	stats, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Counters report the simulated actions
	if stats.UploadedFiles != 1 || stats.MovedFiles != 1 {
		t.Errorf("stats = %+v, want simulated 1 uploaded / 1 moved", stats)
	}
	// Nothing actually changed, locally or remotely
	if !exists(t, fsys, "/data/alice/trip/a.jpg") {
		t.Error("dry run moved a file")
	}
	if client.CreateCollectionCalls != 0 || client.BulkCalls != 0 || client.UploadCalls != 0 {
		t.Errorf("dry run issued writes: create=%d bulk=%d upload=%d",
			client.CreateCollectionCalls, client.BulkCalls, client.UploadCalls)
	}
}

func TestRunCancelledBetweenUsers(t *testing.T) {
	client := mocks.NewMockClient()
	client.AddUser("alice", "secret", "alice")

	fsys := afero.NewMemMapFs()
	seedFile(t, fsys, "/data/alice/trip/a.jpg", "a")

	cfg := testConfig(config.User{Name: "alice", Login: "alice", Password: "secret"})
	engine := New(cfg, fsys, factoryFor(client), nil, &logging.NoOpLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Run(ctx)
	if err != context.Canceled {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if client.GetUserCalls != 0 {
		t.Errorf("GetUserCalls = %d, want 0 after cancellation", client.GetUserCalls)
	}
}
