// Package storage retires local content after upload: moving it into the
// archive mirror, deleting it, or leaving it alone, per folder policy.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/logging"
	"github.com/dl-alexandre/collsync/internal/setup"
	"github.com/dl-alexandre/collsync/internal/types"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// Manager applies retirement policies on the local filesystem. Moves mirror
// the path relative to the data root under the archive root, so the archive
// reproduces the original layout.
type Manager struct {
	fsys        afero.Fs
	archiveRoot string
	dryRun      bool
	logger      logging.Logger
}

// NewManager creates a storage manager rooted at the archive directory.
func NewManager(fsys afero.Fs, archiveRoot string, dryRun bool, logger logging.Logger) *Manager {
	return &Manager{
		fsys:        fsys,
		archiveRoot: archiveRoot,
		dryRun:      dryRun,
		logger:      logger,
	}
}

// RetireFile applies the post-upload policy to one uploaded file.
func (m *Manager) RetireFile(path, relPath string, policy setup.Policy, stats *types.SyncStats) error {
	switch policy {
	case setup.PolicyNothing:
		return nil
	case setup.PolicyMove:
		return m.moveFile(path, relPath, stats)
	case setup.PolicyDelete:
		return m.deleteFile(path, stats)
	default:
		return utils.NewAppError(utils.ErrCodeInternalError,
			fmt.Sprintf("Unknown retirement policy %q", policy)).
			Build()
	}
}

// RetireFolder applies the policy to a fully processed folder. Deletion is
// guarded: a folder still holding anything besides its own config files is
// refused rather than destroyed.
func (m *Manager) RetireFolder(path, relPath string, policy setup.Policy, stats *types.SyncStats) error {
	switch policy {
	case setup.PolicyNothing:
		return nil
	case setup.PolicyMove:
		return m.moveFolder(path, relPath, stats)
	case setup.PolicyDelete:
		return m.deleteFolder(path, stats)
	default:
		return utils.NewAppError(utils.ErrCodeInternalError,
			fmt.Sprintf("Unknown retirement policy %q", policy)).
			Build()
	}
}

func (m *Manager) moveFile(path, relPath string, stats *types.SyncStats) error {
	info, err := m.fsys.Stat(path)
	if err != nil {
		return m.refused("stat", path, err)
	}
	target := filepath.Join(m.archiveRoot, relPath)

	if m.dryRun {
		m.logger.Info("Would move file",
			logging.F("from", path),
			logging.F("to", target),
		)
		stats.MovedFiles++
		stats.MovedBytes += info.Size()
		return nil
	}

	if err := m.fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return m.refused("prepare archive", target, err)
	}
	if err := m.fsys.Rename(path, target); err != nil {
		// Rename fails across filesystems; fall back to copy and remove
		if err := m.copyFile(path, target, info.Mode()); err != nil {
			return err
		}
		if err := m.fsys.Remove(path); err != nil {
			return m.refused("remove after copy", path, err)
		}
	}
	m.logger.Debug("Moved file",
		logging.F("from", path),
		logging.F("to", target),
	)
	stats.MovedFiles++
	stats.MovedBytes += info.Size()
	return nil
}

func (m *Manager) deleteFile(path string, stats *types.SyncStats) error {
	info, err := m.fsys.Stat(path)
	if err != nil {
		return m.refused("stat", path, err)
	}

	if m.dryRun {
		m.logger.Info("Would delete file", logging.F("path", path))
		stats.DeletedFiles++
		stats.DeletedBytes += info.Size()
		return nil
	}

	if err := m.fsys.Remove(path); err != nil {
		return m.refused("delete", path, err)
	}
	m.logger.Debug("Deleted file", logging.F("path", path))
	stats.DeletedFiles++
	stats.DeletedBytes += info.Size()
	return nil
}

func (m *Manager) moveFolder(path, relPath string, stats *types.SyncStats) error {
	target := filepath.Join(m.archiveRoot, relPath)

	if m.dryRun {
		m.logger.Info("Would move folder",
			logging.F("from", path),
			logging.F("to", target),
		)
		stats.MovedFolders++
		return nil
	}

	// Copy first, delete only once the whole subtree landed in the archive
	if err := m.copyTree(path, target); err != nil {
		return err
	}
	if err := m.fsys.RemoveAll(path); err != nil {
		return m.refused("remove after copy", path, err)
	}
	m.logger.Debug("Moved folder",
		logging.F("from", path),
		logging.F("to", target),
	)
	stats.MovedFolders++
	return nil
}

func (m *Manager) deleteFolder(path string, stats *types.SyncStats) error {
	leftovers, err := m.unexpectedFiles(path)
	if err != nil {
		return err
	}
	if len(leftovers) > 0 {
		return utils.NewAppError(utils.ErrCodeStorageRefused,
			fmt.Sprintf("Refusing to delete %s: %d unexpected files remain", path, len(leftovers))).
			WithContext("files", strings.Join(leftovers, ", ")).
			Build()
	}

	if m.dryRun {
		m.logger.Info("Would delete folder", logging.F("path", path))
		stats.DeletedFolders++
		return nil
	}

	if err := m.fsys.RemoveAll(path); err != nil {
		return m.refused("delete", path, err)
	}
	m.logger.Debug("Deleted folder", logging.F("path", path))
	stats.DeletedFolders++
	return nil
}

// unexpectedFiles returns all files under the folder that are not per-folder
// config files, sorted for stable reporting.
func (m *Manager) unexpectedFiles(path string) ([]string, error) {
	var out []string
	err := afero.Walk(m.fsys, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if utils.IsSetupFilename(filepath.Base(p)) {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, m.refused("inspect", path, err)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) copyTree(src, dst string) error {
	return afero.Walk(m.fsys, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return m.refused("inspect", p, err)
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return m.refused("inspect", p, err)
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			if err := m.fsys.MkdirAll(target, 0o755); err != nil {
				return m.refused("prepare archive", target, err)
			}
			return nil
		}
		return m.copyFile(p, target, info.Mode())
	})
}

func (m *Manager) copyFile(src, dst string, mode os.FileMode) error {
	in, err := m.fsys.Open(src)
	if err != nil {
		return m.refused("read", src, err)
	}
	defer in.Close()

	if err := m.fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return m.refused("prepare archive", dst, err)
	}
	out, err := m.fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return m.refused("write", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return m.refused("write", dst, err)
	}
	return out.Close()
}

func (m *Manager) refused(operation, path string, cause error) error {
	return utils.NewAppError(utils.ErrCodeStorageRefused,
		fmt.Sprintf("Storage operation failed: %s %s", operation, path)).
		WithContext("cause", cause.Error()).
		Build()
}
