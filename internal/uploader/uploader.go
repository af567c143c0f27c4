// Package uploader pushes one folder's files to its bound remote collection,
// enforcing the per-folder and subtree upload quotas.
package uploader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/remote"
	"github.com/dl-alexandre/collsync/internal/scanner"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// Outcome reports what happened to one folder's files.
type Outcome struct {
	// Uploaded are the indexes of file nodes whose content reached the
	// service, in scan order
	Uploaded []int

	// Failed are the indexes of file nodes whose content upload failed
	Failed []int

	// Truncated counts files skipped because a quota ran out
	Truncated int
}

// Clean reports whether every eligible file made it to the service.
func (o Outcome) Clean() bool {
	return len(o.Failed) == 0 && o.Truncated == 0
}

// Uploader carries the run-wide upload budget. One instance serves a whole
// run; the budget is shared across all users and folders.
type Uploader struct {
	client remote.Client
	fsys   afero.Fs
	logger logging.Logger
	dryRun bool

	// remaining run-wide uploads, -1 means unbounded
	budget int
}

// New creates an uploader with the run-wide limit from the configuration.
func New(client remote.Client, fsys afero.Fs, globalLimit int, dryRun bool, logger logging.Logger) *Uploader {
	return &Uploader{
		client: client,
		fsys:   fsys,
		logger: logger,
		dryRun: dryRun,
		budget: globalLimit,
	}
}

// SetClient rebinds the uploader to another user's client. The budget
// position is kept: the run-wide limit spans users.
func (u *Uploader) SetClient(client remote.Client) {
	u.client = client
}

// UploadFolder uploads the folder's direct files to the remote collection,
// applying quotas in order: the folder's own limit first, then the tightest
// subtree and run-wide budget. Skipped files stay local and untouched.
func (u *Uploader) UploadFolder(ctx context.Context, tree *scanner.Tree, folder int, remoteID uuid.UUID, stats *types.SyncStats) (Outcome, error) {
	var out Outcome

	files := tree.FileChildren(folder)
	if len(files) == 0 {
		return out, nil
	}

	folderSetup := tree.Nodes[folder].Setup
	if limit := folderSetup.FolderLimit; limit >= 0 && len(files) > limit {
		out.Truncated += len(files) - limit
		u.logger.Info("Folder limit reached, skipping remaining files",
			logging.F("folder", tree.Nodes[folder].Path),
			logging.F("limit", limit),
			logging.F("skipped", len(files)-limit),
		)
		files = files[:limit]
	}

	if allowed := u.allowance(tree, folder); allowed >= 0 && len(files) > allowed {
		out.Truncated += len(files) - allowed
		u.logger.Info("Upload budget reached, skipping remaining files",
			logging.F("folder", tree.Nodes[folder].Path),
			logging.F("allowed", allowed),
			logging.F("skipped", len(files)-allowed),
		)
		files = files[:allowed]
	}

	if len(files) == 0 {
		return out, nil
	}

	if u.dryRun {
		for _, idx := range files {
			u.logger.Info("Would upload file",
				logging.F("path", tree.Nodes[idx].Path),
				logging.F("collection", remoteID.String()),
			)
			u.charge(tree, folder)
			out.Uploaded = append(out.Uploaded, idx)
			stats.UploadedFiles++
			stats.UploadedBytes += tree.Nodes[idx].Size
		}
		return out, nil
	}

	specs := make([]types.ItemSpec, 0, len(files))
	for _, idx := range files {
		specs = append(specs, types.ItemSpec{
			Name: filepath.Base(tree.Nodes[idx].Path),
			Tags: folderSetup.Tags,
		})
	}

	items, err := u.client.CreateItemsBulk(ctx, remoteID, specs)
	if err != nil {
		return out, err
	}
	if len(items) != len(files) {
		return out, utils.NewAppError(utils.ErrCodeNetworkError,
			fmt.Sprintf("Created %d remote items for %d files", len(items), len(files))).
			WithContext("folder", tree.Nodes[folder].Path).
			Build()
	}

	for i, idx := range files {
		if err := u.uploadContent(ctx, tree, idx, items[i].ID); err != nil {
			u.logger.Error("File upload failed",
				logging.F("path", tree.Nodes[idx].Path),
				logging.F("error", err.Error()),
			)
			out.Failed = append(out.Failed, idx)
			continue
		}
		u.charge(tree, folder)
		out.Uploaded = append(out.Uploaded, idx)
		stats.UploadedFiles++
		stats.UploadedBytes += tree.Nodes[idx].Size
	}
	return out, nil
}

func (u *Uploader) uploadContent(ctx context.Context, tree *scanner.Tree, idx int, itemID uuid.UUID) error {
	node := tree.Nodes[idx]
	f, err := u.fsys.Open(node.Path)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeStorageRefused,
			fmt.Sprintf("Cannot read %s", node.Path)).
			WithContext("cause", err.Error()).
			Build()
	}
	defer f.Close()

	filename := filepath.Base(node.Path)
	return u.client.UploadContent(ctx, itemID, f, filename, utils.MimeTypeFor(filename), node.Size)
}

// allowance returns how many more files may be uploaded from this folder
// under the subtree quotas and the run budget, -1 when unbounded.
func (u *Uploader) allowance(tree *scanner.Tree, folder int) int {
	allowed := u.budget

	chain := append([]int{folder}, tree.Ancestors(folder)...)
	for _, a := range chain {
		limit := tree.Nodes[a].Setup.GlobalLimit
		if limit < 0 {
			continue
		}
		remaining := limit - tree.Nodes[a].SubtreeUploaded
		if remaining < 0 {
			remaining = 0
		}
		if allowed < 0 || remaining < allowed {
			allowed = remaining
		}
	}
	return allowed
}

// charge records one upload against every quota covering the folder.
func (u *Uploader) charge(tree *scanner.Tree, folder int) {
	tree.Nodes[folder].Uploaded++
	tree.Nodes[folder].SubtreeUploaded++
	for _, a := range tree.Ancestors(folder) {
		tree.Nodes[a].SubtreeUploaded++
	}
	if u.budget > 0 {
		u.budget--
	}
}
