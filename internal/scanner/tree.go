package scanner

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dl-alexandre/collsync/internal/setup"
)

// Node is one filesystem entry. Nodes live in the Tree's arena and refer to
// each other by index, root at index 0.
type Node struct {
	// Path is the entry's location on the local filesystem
	Path string

	// RelPath is the path relative to the data root, user folder included.
	// Archive mirroring preserves it.
	RelPath string

	// DeclaredID is the UUID embedded in the folder name, uuid.Nil when absent
	DeclaredID uuid.UUID

	// DeclaredName is the folder name with any embedded UUID stripped
	DeclaredName string

	IsFile bool
	Size   int64

	Parent   int // -1 for the root node
	Children []int

	Setup setup.Setup

	// Uploaded counts files uploaded from this folder during the run
	Uploaded int

	// SubtreeUploaded counts uploads anywhere in this folder's subtree,
	// maintained by the ancestor chain walk
	SubtreeUploaded int
}

// Tree is the scanned local hierarchy. Read-only after the scan except for
// the quota counters.
type Tree struct {
	Nodes []Node

	// Warnings lists subtrees dropped during the scan
	Warnings []string
}

// Root returns the index of the root node.
func (t *Tree) Root() int { return 0 }

// Ancestors returns the indexes of node i's ancestors, nearest first.
func (t *Tree) Ancestors(i int) []int {
	var out []int
	for p := t.Nodes[i].Parent; p >= 0; p = t.Nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// FileChildren returns the indexes of node i's direct file children in scan
// order.
func (t *Tree) FileChildren(i int) []int {
	var out []int
	for _, c := range t.Nodes[i].Children {
		if t.Nodes[c].IsFile {
			out = append(out, c)
		}
	}
	return out
}

// FolderChildren returns the indexes of node i's direct sub-collections in
// scan order.
func (t *Tree) FolderChildren(i int) []int {
	var out []int
	for _, c := range t.Nodes[i].Children {
		if !t.Nodes[c].IsFile {
			out = append(out, c)
		}
	}
	return out
}

// SplitName extracts an embedded UUID from an entry name. The UUID must be
// the leading token, separated from the rest by the spacer; anything else is
// part of the visible name.
func SplitName(name, spacer string) (uuid.UUID, string) {
	parts := strings.SplitN(name, spacer, 2)
	if len(parts) == 2 {
		if id, err := uuid.Parse(parts[0]); err == nil {
			return id, parts[1]
		}
	}
	return uuid.Nil, name
}
