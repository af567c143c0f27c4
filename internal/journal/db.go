// Package journal persists run history in a local sqlite database so past
// syncs can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

type DB struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open creates or opens the journal database at path.
func Open(path string) (*DB, error) {
	return OpenWithClock(path, clockwork.NewRealClock())
}

// OpenWithClock opens the journal with an injected clock.
func OpenWithClock(path string, clock clockwork.Clock) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &DB{db: db, clock: clock}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return instance, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	dry_run INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	uploaded_files INTEGER NOT NULL DEFAULT 0,
	uploaded_bytes INTEGER NOT NULL DEFAULT 0,
	moved_files INTEGER NOT NULL DEFAULT 0,
	moved_bytes INTEGER NOT NULL DEFAULT 0,
	deleted_files INTEGER NOT NULL DEFAULT 0,
	deleted_bytes INTEGER NOT NULL DEFAULT 0,
	moved_folders INTEGER NOT NULL DEFAULT 0,
	deleted_folders INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id INTEGER NOT NULL,
	user TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT,
	recorded_at INTEGER NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
`
