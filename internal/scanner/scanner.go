package scanner

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dl-alexandre/collsync/internal/setup"
	"github.com/dl-alexandre/collsync/internal/utils"
)

// Options configures a scan.
type Options struct {
	// Formats are the uploadable file extensions, lowercased, with dot
	Formats []string

	// SkipPrefixes mark entries to ignore entirely
	SkipPrefixes []string

	// BaseRel is the relative path of the root node under the data root,
	// normally the user's folder name
	BaseRel string

	// Spacer separates an embedded UUID from the visible folder name
	Spacer string
}

type walker struct {
	fsys    afero.Fs
	opts    Options
	formats map[string]struct{}
	tree    *Tree
}

// Scan walks the local tree rooted at root depth-first and returns it as an
// arena-indexed Tree. Setup is resolved for each folder before its children
// are visited, so children inherit it. Children are processed in
// lexicographic order to keep output and quota consumption reproducible.
// An unreadable subdirectory drops only that subtree and is reported via
// Tree.Warnings; sibling subtrees continue.
func Scan(ctx context.Context, fsys afero.Fs, root string, rootSetup setup.Setup, opts Options) (*Tree, error) {
	if opts.Spacer == "" {
		opts.Spacer = utils.NameSpacer
	}

	w := &walker{
		fsys:    fsys,
		opts:    opts,
		formats: make(map[string]struct{}, len(opts.Formats)),
		tree:    &Tree{},
	}
	for _, format := range opts.Formats {
		w.formats[strings.ToLower(format)] = struct{}{}
	}

	id, name := SplitName(filepath.Base(root), opts.Spacer)
	w.tree.Nodes = append(w.tree.Nodes, Node{
		Path:         root,
		RelPath:      opts.BaseRel,
		DeclaredID:   id,
		DeclaredName: name,
		Parent:       -1,
		Setup:        rootSetup,
	})

	if err := w.walk(ctx, 0); err != nil {
		return nil, err
	}
	return w.tree, nil
}

// walk reads one directory and recurses into its subdirectories. The parent
// node must already exist in the arena with its Setup resolved.
func (w *walker) walk(ctx context.Context, parent int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := w.tree.Nodes[parent].Path
	entries, err := afero.ReadDir(w.fsys, dir)
	if err != nil {
		if parent == w.tree.Root() {
			return utils.NewAppError(utils.ErrCodeUserError,
				fmt.Sprintf("Failed to read root directory: %s", err)).
				WithContext("path", dir).
				Build()
		}
		// Drop this subtree only
		w.drop(parent, fmt.Sprintf("unreadable directory %s: %s", dir, err))
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if w.skip(entry.Name()) {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())
		relPath := path.Join(w.tree.Nodes[parent].RelPath, entry.Name())

		if entry.IsDir() {
			folderSetup, err := setup.Resolve(w.fsys, entryPath, w.tree.Nodes[parent].Setup)
			if err != nil {
				// ConfigError aborts this subtree only
				w.tree.Warnings = append(w.tree.Warnings,
					fmt.Sprintf("skipping %s: %s", entryPath, err))
				continue
			}

			id, name := SplitName(entry.Name(), w.opts.Spacer)
			idx := w.add(Node{
				Path:         entryPath,
				RelPath:      relPath,
				DeclaredID:   id,
				DeclaredName: name,
				Parent:       parent,
				Setup:        folderSetup,
			})
			if err := w.walk(ctx, idx); err != nil {
				return err
			}
			continue
		}

		if !entry.Mode().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := w.formats[ext]; !ok {
			continue
		}
		w.add(Node{
			Path:         entryPath,
			RelPath:      relPath,
			DeclaredName: entry.Name(),
			IsFile:       true,
			Size:         entry.Size(),
			Parent:       parent,
			Setup:        w.tree.Nodes[parent].Setup,
		})
	}

	return nil
}

func (w *walker) add(node Node) int {
	idx := len(w.tree.Nodes)
	w.tree.Nodes = append(w.tree.Nodes, node)
	w.tree.Nodes[node.Parent].Children = append(w.tree.Nodes[node.Parent].Children, idx)
	return idx
}

// drop removes an already-added node from its parent's child list and records
// a warning. The arena slot stays but nothing references it.
func (w *walker) drop(idx int, warning string) {
	parent := w.tree.Nodes[idx].Parent
	children := w.tree.Nodes[parent].Children
	for i, c := range children {
		if c == idx {
			w.tree.Nodes[parent].Children = append(children[:i], children[i+1:]...)
			break
		}
	}
	w.tree.Warnings = append(w.tree.Warnings, warning)
}

func (w *walker) skip(name string) bool {
	for _, prefix := range w.opts.SkipPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
