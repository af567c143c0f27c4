package journal

import (
	"time"

	"github.com/dl-alexandre/collsync/internal/types"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Outcome kinds
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// Outcome actions
const (
	ActionUploaded = "uploaded"
	ActionMoved    = "moved"
	ActionDeleted  = "deleted"
	ActionSkipped  = "skipped"
	ActionFailed   = "failed"
)

// Run is one recorded sync invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Status     string
	Stats      types.SyncStats
}

// Outcome is one recorded per-entry result within a run.
type Outcome struct {
	RunID   int64
	User    string
	RelPath string
	Kind    string
	Action  string
	Detail  string
	At      time.Time
}
