// Package sync drives a whole run: per-user scan, resolution, upload and
// retirement, with run history recorded in the journal.
package sync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/config"
	"github.com/dl-alexandre/collsync/internal/journal"
	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/resolver"
	"github.com/dl-alexandre/collsync/internal/scanner"
	"github.com/dl-alexandre/collsync/internal/setup"
	"github.com/dl-alexandre/collsync/internal/storage"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/uploader"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// Recorder persists run history. *journal.DB satisfies it.
type Recorder interface {
	BeginRun(ctx context.Context, dryRun bool) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string, stats types.SyncStats) error
	RecordOutcome(ctx context.Context, o journal.Outcome) error
}

// NoopRecorder discards history when no journal is configured.
type NoopRecorder struct{}

func (NoopRecorder) BeginRun(ctx context.Context, dryRun bool) (int64, error) { return 0, nil }
func (NoopRecorder) FinishRun(ctx context.Context, runID int64, status string, stats types.SyncStats) error {
	return nil
}
func (NoopRecorder) RecordOutcome(ctx context.Context, o journal.Outcome) error { return nil }

// Engine runs one sync invocation. All run-scoped state (resolution caches,
// quota counters) lives inside Run; an Engine may be reused but each Run is
// independent.
type Engine struct {
	cfg      *config.Config
	fsys     afero.Fs
	factory  remote.Factory
	recorder Recorder
	logger   logging.Logger
}

// New creates a sync engine.
func New(cfg *config.Config, fsys afero.Fs, factory remote.Factory, recorder Recorder, logger logging.Logger) *Engine {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &Engine{
		cfg:      cfg,
		fsys:     fsys,
		factory:  factory,
		recorder: recorder,
		logger:   logger,
	}
}

// Run processes each configured user in order. One user's unrecoverable
// error is logged and recorded; the remaining users still run. The first
// such error is returned after all users were attempted.
func (e *Engine) Run(ctx context.Context) (types.SyncStats, error) {
	var stats types.SyncStats

	runID, err := e.recorder.BeginRun(ctx, e.cfg.DryRun)
	if err != nil {
		return stats, utils.NewAppError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to start run journal: %s", err)).
			Build()
	}
	logger := e.logger.WithTraceID(fmt.Sprintf("run-%d", runID))

	up := uploader.New(nil, e.fsys, e.cfg.GlobalLimit, e.cfg.DryRun, logger)
	store := storage.NewManager(e.fsys, e.cfg.ArchiveRoot, e.cfg.DryRun, logger)

	var firstErr error
	for _, user := range e.cfg.Users {
		if err := ctx.Err(); err != nil {
			_ = e.recorder.FinishRun(ctx, runID, journal.StatusFailed, stats)
			return stats, err
		}
		if err := e.syncUser(ctx, runID, user, up, store, &stats, logger); err != nil {
			logger.Error("User sync failed",
				logging.F("user", user.Login),
				logging.F("error", err.Error()),
			)
			e.record(ctx, logger, journal.Outcome{
				RunID:   runID,
				User:    user.Login,
				RelPath: user.Name,
				Kind:    journal.KindFolder,
				Action:  journal.ActionFailed,
				Detail:  utils.CodeOf(err),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	status := journal.StatusOK
	if firstErr != nil {
		status = journal.StatusFailed
	}
	if err := e.recorder.FinishRun(ctx, runID, status, stats); err != nil {
		logger.Warn("Failed to finish run journal", logging.F("error", err.Error()))
	}
	return stats, firstErr
}

func (e *Engine) syncUser(ctx context.Context, runID int64, user config.User, up *uploader.Uploader, store *storage.Manager, stats *types.SyncStats, logger logging.Logger) error {
	client := e.factory(user.Login, user.Password)

	account, err := client.GetUser(ctx)
	if err != nil {
		return err
	}
	if user.RootCollectionID != "" {
		declared, err := uuid.Parse(user.RootCollectionID)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeConfigInvalid,
				fmt.Sprintf("Invalid root collection id for %q", user.Login)).
				Build()
		}
		if declared != account.RootCollectionID {
			return utils.NewAppError(utils.ErrCodeConflict,
				fmt.Sprintf("Configured root collection %s does not match account %s", declared, account.RootCollectionID)).
				WithContext("user", user.Login).
				Build()
		}
	}

	userDir := filepath.Join(e.cfg.DataRoot, user.Name)
	exists, err := afero.DirExists(e.fsys, userDir)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeUserError,
			fmt.Sprintf("Cannot inspect %s", userDir)).
			WithContext("cause", err.Error()).
			Build()
	}
	if !exists {
		logger.Warn("User folder missing, skipping user",
			logging.F("user", user.Login),
			logging.F("path", userDir),
		)
		return nil
	}

	rootSetup, err := setup.Resolve(e.fsys, e.cfg.DataRoot, setup.Default())
	if err != nil {
		return err
	}
	userSetup, err := setup.Resolve(e.fsys, userDir, rootSetup)
	if err != nil {
		return err
	}

	tree, err := scanner.Scan(ctx, e.fsys, userDir, userSetup, scanner.Options{
		Formats:      e.cfg.SupportedFormats,
		SkipPrefixes: e.cfg.SkipPrefixes,
		BaseRel:      user.Name,
		Spacer:       utils.NameSpacer,
	})
	if err != nil {
		return err
	}
	for _, w := range tree.Warnings {
		logger.Warn("Subtree skipped during scan", logging.F("reason", w))
	}

	up.SetClient(client)
	s := &userSync{
		engine:  e,
		runID:   runID,
		login:   user.Login,
		account: account,
		tree:    tree,
		res:     resolver.New(client, account, e.cfg.DryRun, logger),
		up:      up,
		store:   store,
		stats:   stats,
		logger:  logger,
	}
	_, err = s.processFolder(ctx, tree.Root(), account.RootCollectionID, true)
	return err
}

func (e *Engine) record(ctx context.Context, logger logging.Logger, o journal.Outcome) {
	if err := e.recorder.RecordOutcome(ctx, o); err != nil {
		logger.Warn("Journal write failed", logging.F("error", err.Error()))
	}
}

// userSync bundles one user's run state.
type userSync struct {
	engine  *Engine
	runID   int64
	login   string
	account types.RemoteUser
	tree    *scanner.Tree
	res     *resolver.Resolver
	up      *uploader.Uploader
	store   *storage.Manager
	stats   *types.SyncStats
	logger  logging.Logger
}

// nodeLevel reports whether an error aborts only the current node's subtree,
// leaving siblings and other users to continue.
func nodeLevel(err error) bool {
	switch utils.CodeOf(err) {
	case utils.ErrCodeConflict, utils.ErrCodeAmbiguousName, utils.ErrCodeNodeMissing, utils.ErrCodeConfigInvalid:
		return true
	}
	return false
}

// processFolder handles one folder depth-first and reports whether it ended
// clean: every eligible file uploaded and retired, every child clean, and
// its own retirement not refused. Only clean non-root folders retire.
func (s *userSync) processFolder(ctx context.Context, folder int, parentRemoteID uuid.UUID, isRoot bool) (bool, error) {
	node := &s.tree.Nodes[folder]
	ephemeral := node.Setup.Ephemeral && !isRoot

	var remoteID uuid.UUID
	switch {
	case isRoot:
		// The user folder binds to the pre-existing root collection
		remoteID = s.account.RootCollectionID
	case ephemeral:
		// Organizational only: children attach to the parent's collection
		remoteID = parentRemoteID
	default:
		bound, err := s.res.Resolve(ctx, node, parentRemoteID)
		if err != nil {
			if nodeLevel(err) {
				s.logger.Error("Skipping folder subtree",
					logging.F("path", node.Path),
					logging.F("error", err.Error()),
				)
				s.record(ctx, node.RelPath, journal.KindFolder, journal.ActionFailed, utils.CodeOf(err))
				return false, nil
			}
			return false, err
		}
		remoteID = bound.ID
	}

	clean := true

	if !ephemeral {
		out, err := s.up.UploadFolder(ctx, s.tree, folder, remoteID, s.stats)
		if err != nil {
			return false, err
		}
		if !out.Clean() {
			clean = false
		}
		for _, idx := range out.Failed {
			s.record(ctx, s.tree.Nodes[idx].RelPath, journal.KindFile, journal.ActionFailed, utils.ErrCodeNetworkError)
		}
		for _, idx := range out.Uploaded {
			file := s.tree.Nodes[idx]
			s.record(ctx, file.RelPath, journal.KindFile, journal.ActionUploaded, "")
			if !s.retireFile(ctx, file) {
				clean = false
			}
		}
	}

	for _, child := range s.tree.FolderChildren(folder) {
		childClean, err := s.processFolder(ctx, child, remoteID, false)
		if err != nil {
			return false, err
		}
		if !childClean {
			clean = false
		}
	}

	if isRoot || !clean {
		return clean, nil
	}
	return s.retireFolder(ctx, folder), nil
}

// retireFile applies the post-upload policy to one uploaded file and reports
// whether the file is off the books (retired or deliberately kept).
func (s *userSync) retireFile(ctx context.Context, file scanner.Node) bool {
	policy := file.Setup.AfterItem
	if err := s.store.RetireFile(file.Path, file.RelPath, policy, s.stats); err != nil {
		s.logger.Error("File retirement failed",
			logging.F("path", file.Path),
			logging.F("error", err.Error()),
		)
		s.record(ctx, file.RelPath, journal.KindFile, journal.ActionFailed, utils.CodeOf(err))
		return false
	}
	switch policy {
	case setup.PolicyMove:
		s.record(ctx, file.RelPath, journal.KindFile, journal.ActionMoved, "")
	case setup.PolicyDelete:
		s.record(ctx, file.RelPath, journal.KindFile, journal.ActionDeleted, "")
	}
	return true
}

// retireFolder applies the folder policy and reports whether the folder
// ended clean. A refused deletion is reported, not escalated.
func (s *userSync) retireFolder(ctx context.Context, folder int) bool {
	node := s.tree.Nodes[folder]
	policy := node.Setup.AfterCollection
	if policy == setup.PolicyNothing {
		return true
	}
	if err := s.store.RetireFolder(node.Path, node.RelPath, policy, s.stats); err != nil {
		s.logger.Warn("Folder retirement refused",
			logging.F("path", node.Path),
			logging.F("error", err.Error()),
		)
		s.record(ctx, node.RelPath, journal.KindFolder, journal.ActionFailed, utils.CodeOf(err))
		return false
	}
	switch policy {
	case setup.PolicyMove:
		s.record(ctx, node.RelPath, journal.KindFolder, journal.ActionMoved, "")
	case setup.PolicyDelete:
		s.record(ctx, node.RelPath, journal.KindFolder, journal.ActionDeleted, "")
	}
	return true
}

func (s *userSync) record(ctx context.Context, relPath, kind, action, detail string) {
	s.engine.record(ctx, s.logger, journal.Outcome{
		RunID:   s.runID,
		User:    s.login,
		RelPath: relPath,
		Kind:    kind,
		Action:  action,
		Detail:  detail,
	})
}
