package filetree

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/state"
)

// Row is one visible line of the rendered tree.
type Row struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Kind     Kind   `json:"type"`
	Level    int    `json:"level"`
	Expanded bool   `json:"expanded,omitempty"`
}

// Patch describes the targeted re-render after a toggle: starting at
// Index+1 in the previous rows, remove Remove rows and insert Insert.
// Index is -1 when the toggled directory is not currently visible.
type Patch struct {
	Path     string `json:"path"`
	Index    int    `json:"index"`
	Expanded bool   `json:"expanded"`
	Remove   int    `json:"remove"`
	Insert   []Row  `json:"insert,omitempty"`
}

// Apply returns rows with the patch applied. rows is not modified.
func (p Patch) Apply(rows []Row) []Row {
	if p.Index < 0 || p.Index >= len(rows) {
		return append([]Row(nil), rows...)
	}
	out := make([]Row, 0, len(rows)-p.Remove+len(p.Insert))
	out = append(out, rows[:p.Index]...)
	head := rows[p.Index]
	head.Expanded = p.Expanded
	out = append(out, head)
	out = append(out, p.Insert...)
	out = append(out, rows[p.Index+1+p.Remove:]...)
	return out
}

// Tree holds the current listing and the expanded-directory set.
// It is not safe for concurrent use; the owner serializes access.
type Tree struct {
	nodes    []*Node
	expanded map[string]bool
	store    state.Store
	log      *zap.Logger
}

// New creates an empty tree persisting expansion state to store. A nil
// store keeps state in memory.
func New(store state.Store, log *zap.Logger) *Tree {
	if store == nil {
		store = state.NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tree{
		expanded: make(map[string]bool),
		store:    store,
		log:      log,
	}
}

// Restore loads the expanded-directory set from the store. A corrupt value
// is logged and leaves the set empty.
func (t *Tree) Restore() {
	dirs, err := state.GetStrings(t.store, state.KeyExpandedDirs)
	if err != nil {
		t.log.Warn("restore expanded directories", zap.Error(err))
		return
	}
	t.expanded = make(map[string]bool, len(dirs))
	for _, d := range dirs {
		t.expanded[d] = true
	}
}

// Load replaces the listing wholesale.
func (t *Tree) Load(nodes []*Node) {
	t.nodes = nodes
}

// Nodes returns the top-level nodes.
func (t *Tree) Nodes() []*Node {
	return t.nodes
}

// Count returns the number of nodes in the forest.
func (t *Tree) Count() int {
	n := 0
	walk(t.nodes, func(*Node) bool {
		n++
		return true
	})
	return n
}

// Find returns the first node whose path equals path in depth-first
// pre-order, or nil.
func (t *Tree) Find(path string) *Node {
	var found *Node
	walk(t.nodes, func(n *Node) bool {
		if n.Path == path {
			found = n
			return false
		}
		return true
	})
	return found
}

// Exists reports whether a file (not a directory) with exactly path is
// present.
func (t *Tree) Exists(path string) bool {
	found := false
	walk(t.nodes, func(n *Node) bool {
		if n.Path == path && n.Kind == KindFile {
			found = true
			return false
		}
		return true
	})
	return found
}

// walk visits nodes depth-first in pre-order until fn returns false.
func walk(nodes []*Node, fn func(*Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) {
			return false
		}
		if len(n.Children) > 0 && !walk(n.Children, fn) {
			return false
		}
	}
	return true
}

// IsExpanded reports whether path is in the expanded set.
func (t *Tree) IsExpanded(path string) bool {
	return t.expanded[path]
}

// Expanded returns the expanded-directory set, sorted.
func (t *Tree) Expanded() []string {
	out := make([]string, 0, len(t.expanded))
	for p := range t.expanded {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Rows projects the listing and expansion state into visible rows.
func (t *Tree) Rows() []Row {
	var rows []Row
	for _, n := range t.nodes {
		rows = t.appendRows(rows, n, 0)
	}
	return rows
}

func (t *Tree) appendRows(rows []Row, n *Node, level int) []Row {
	row := Row{Path: n.Path, Name: n.Name, Kind: n.Kind, Level: level}
	if n.Kind != KindDirectory {
		return append(rows, row)
	}
	row.Expanded = t.expanded[n.Path]
	rows = append(rows, row)
	if row.Expanded {
		for _, c := range n.Children {
			rows = t.appendRows(rows, c, level+1)
		}
	}
	return rows
}

// Toggle flips the expansion of path, persists the set, and returns the
// patch that brings the previously visible rows up to date.
func (t *Tree) Toggle(path string) Patch {
	before := t.Rows()

	expanded := !t.expanded[path]
	if expanded {
		t.expanded[path] = true
	} else {
		delete(t.expanded, path)
	}
	t.persist()

	p := Patch{Path: path, Index: -1, Expanded: expanded}
	idx := -1
	for i, r := range before {
		if r.Path == path && r.Kind == KindDirectory {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p
	}
	p.Index = idx
	dirLevel := before[idx].Level
	for i := idx + 1; i < len(before); i++ {
		if !IsDescendant(before[i].Path, before[i].Level, path, dirLevel) {
			break
		}
		p.Remove++
	}
	if expanded {
		if dir := t.Find(path); dir != nil {
			for _, c := range dir.Children {
				p.Insert = t.appendRows(p.Insert, c, dirLevel+1)
			}
		}
	}
	return p
}

// ExpandAncestors marks every proper-prefix directory of path expanded and
// persists once.
func (t *Tree) ExpandAncestors(path string) {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		t.expanded[strings.Join(parts[:i], "/")] = true
	}
	t.persist()
}

// persist writes the expanded set. Storage failures are logged and
// otherwise ignored.
func (t *Tree) persist() {
	if err := state.SetStrings(t.store, state.KeyExpandedDirs, t.Expanded()); err != nil {
		t.log.Warn("persist expanded directories", zap.Error(err))
	}
}
