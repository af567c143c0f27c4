package journal

import (
	"context"
	"time"

	"github.com/dl-alexandre/collsync/internal/types"
)

// BeginRun records the start of a sync invocation and returns its id.
func (d *DB) BeginRun(ctx context.Context, dryRun bool) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, dry_run, status) VALUES (?, ?, ?)
	`, d.clock.Now().Unix(), boolToInt(dryRun), StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun records the final status and counters of a run.
func (d *DB) FinishRun(ctx context.Context, runID int64, status string, stats types.SyncStats) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at=?,
			status=?,
			uploaded_files=?, uploaded_bytes=?,
			moved_files=?, moved_bytes=?,
			deleted_files=?, deleted_bytes=?,
			moved_folders=?, deleted_folders=?
		WHERE id=?
	`, d.clock.Now().Unix(), status,
		stats.UploadedFiles, stats.UploadedBytes,
		stats.MovedFiles, stats.MovedBytes,
		stats.DeletedFiles, stats.DeletedBytes,
		stats.MovedFolders, stats.DeletedFolders,
		runID)
	return err
}

// RecordOutcome appends one per-entry result to a run.
func (d *DB) RecordOutcome(ctx context.Context, o Outcome) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, user, relative_path, kind, action, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.User, o.RelPath, o.Kind, o.Action, o.Detail, d.clock.Now().Unix())
	return err
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, status,
		       uploaded_files, uploaded_bytes, moved_files, moved_bytes,
		       deleted_files, deleted_bytes, moved_folders, deleted_folders
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var r Run
		var started int64
		var finished *int64
		var dryRun int
		if err := rows.Scan(&r.ID, &started, &finished, &dryRun, &r.Status,
			&r.Stats.UploadedFiles, &r.Stats.UploadedBytes,
			&r.Stats.MovedFiles, &r.Stats.MovedBytes,
			&r.Stats.DeletedFiles, &r.Stats.DeletedBytes,
			&r.Stats.MovedFolders, &r.Stats.DeletedFolders); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished != nil {
			r.FinishedAt = time.Unix(*finished, 0)
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListOutcomes returns all recorded entries of one run in insertion order.
func (d *DB) ListOutcomes(ctx context.Context, runID int64) (outcomes []Outcome, err error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id, user, relative_path, kind, action, detail, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var o Outcome
		var at int64
		var detail *string
		if err := rows.Scan(&o.RunID, &o.User, &o.RelPath, &o.Kind, &o.Action, &detail, &at); err != nil {
			return nil, err
		}
		if detail != nil {
			o.Detail = *detail
		}
		o.At = time.Unix(at, 0)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
