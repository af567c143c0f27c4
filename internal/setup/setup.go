package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/utils"
)

// Policy describes what happens to local content after upload.
type Policy string

const (
	PolicyMove    Policy = "move"
	PolicyDelete  Policy = "delete"
	PolicyNothing Policy = "nothing"
)

// MissingPolicy describes what to do when a remote collection is absent.
type MissingPolicy string

const (
	MissingCreate MissingPolicy = "create"
	MissingFail   MissingPolicy = "fail"
)

// Setup is the per-folder policy. A folder's Setup is computed once during
// the scan by merging the parent's Setup with the folder's own config file
// and is immutable afterward.
type Setup struct {
	AfterCollection   Policy
	AfterItem         Policy
	MissingCollection MissingPolicy
	Ephemeral         bool
	Tags              []string

	// FolderLimit caps uploads from one folder, -1 means unbounded
	FolderLimit int

	// GlobalLimit caps uploads across the folder's whole subtree, -1 means
	// unbounded
	GlobalLimit int
}

// Default returns the Setup used when no ancestor declares anything.
func Default() Setup {
	return Setup{
		AfterCollection:   PolicyMove,
		AfterItem:         PolicyMove,
		MissingCollection: MissingFail,
		FolderLimit:       -1,
		GlobalLimit:       -1,
	}
}

// fileSetup mirrors the per-folder config document. Pointer fields
// distinguish "explicitly declared" from "inherit from parent".
type fileSetup struct {
	AfterCollection   *string  `json:"after_collection"`
	AfterItem         *string  `json:"after_item"`
	MissingCollection *string  `json:"no_collection"`
	Ephemeral         *bool    `json:"ephemeral"`
	Tags              []string `json:"tags"`
	FolderLimit       *int     `json:"limit"`
	GlobalLimit       *int     `json:"global_limit"`
}

// Resolve loads the folder's config file (first recognized filename wins) and
// merges it with the parent Setup. A missing file yields the parent's Setup
// verbatim, so re-resolving a folder with no local file is idempotent.
func Resolve(fsys afero.Fs, dir string, parent Setup) (Setup, error) {
	raw, path, err := readSetupFile(fsys, dir)
	if err != nil {
		return Setup{}, err
	}
	if raw == nil {
		return clone(parent), nil
	}

	var file fileSetup
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Setup{}, utils.NewAppError(utils.ErrCodeConfigInvalid,
			fmt.Sprintf("Malformed setup file: %s", err)).
			WithContext("path", path).
			Build()
	}

	merged := clone(parent)
	if file.AfterCollection != nil {
		policy, err := parsePolicy(*file.AfterCollection, path, "after_collection")
		if err != nil {
			return Setup{}, err
		}
		merged.AfterCollection = policy
	}
	if file.AfterItem != nil {
		policy, err := parsePolicy(*file.AfterItem, path, "after_item")
		if err != nil {
			return Setup{}, err
		}
		merged.AfterItem = policy
	}
	if file.MissingCollection != nil {
		policy, err := parseMissingPolicy(*file.MissingCollection, path)
		if err != nil {
			return Setup{}, err
		}
		merged.MissingCollection = policy
	}
	if file.Ephemeral != nil {
		merged.Ephemeral = *file.Ephemeral
	}
	if file.FolderLimit != nil {
		merged.FolderLimit = *file.FolderLimit
	}
	if file.GlobalLimit != nil {
		merged.GlobalLimit = *file.GlobalLimit
	}
	merged.Tags = unionTags(parent.Tags, file.Tags)

	return merged, nil
}

// readSetupFile returns the first recognized setup file's content, or nil
// when the folder has none.
func readSetupFile(fsys afero.Fs, dir string) ([]byte, string, error) {
	for _, filename := range utils.SetupFilenames {
		path := filepath.Join(dir, filename)
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", utils.NewAppError(utils.ErrCodeConfigInvalid,
				fmt.Sprintf("Failed to read setup file: %s", err)).
				WithContext("path", path).
				Build()
		}
		return data, path, nil
	}
	return nil, "", nil
}

func parsePolicy(value, path, key string) (Policy, error) {
	switch Policy(value) {
	case PolicyMove, PolicyDelete, PolicyNothing:
		return Policy(value), nil
	}
	return "", utils.NewAppError(utils.ErrCodeConfigInvalid,
		fmt.Sprintf("Unknown %s policy %q", key, value)).
		WithContext("path", path).
		Build()
}

func parseMissingPolicy(value, path string) (MissingPolicy, error) {
	switch MissingPolicy(value) {
	case MissingCreate, MissingFail:
		return MissingPolicy(value), nil
	}
	return "", utils.NewAppError(utils.ErrCodeConfigInvalid,
		fmt.Sprintf("Unknown no_collection policy %q", value)).
		WithContext("path", path).
		Build()
}

// unionTags merges parent and local tags into a sorted, deduplicated set.
func unionTags(parent, local []string) []string {
	if len(parent) == 0 && len(local) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(parent)+len(local))
	for _, tag := range parent {
		seen[tag] = struct{}{}
	}
	for _, tag := range local {
		seen[tag] = struct{}{}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func clone(s Setup) Setup {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	if len(out.Tags) == 0 {
		out.Tags = nil
	}
	return out
}
