// Package filetree models the configuration directory listing: an ordered
// forest of nodes plus the set of expanded directories, projected into the
// visible rows a sidebar renders.
package filetree

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Node is one entry of the listing. Only directories carry Children.
type Node struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Kind     Kind       `json:"type"`
	Size     *int64     `json:"size,omitempty"`
	Modified *Timestamp `json:"modified,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// MarshalJSON always emits children for directories, as an empty array
// when there are none, and never for files.
func (n Node) MarshalJSON() ([]byte, error) {
	type wire Node
	w := wire(n)
	if n.Kind != KindDirectory {
		w.Children = nil
		return json.Marshal(w)
	}
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	return json.Marshal(struct {
		wire
		Children []*Node `json:"children"`
	}{wire: w, Children: children})
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// timestampLayout matches the naive ISO-8601 form the add-on backend emits
// (no zone, microseconds only when non-zero).
const timestampLayout = "2006-01-02T15:04:05.999999"

// Timestamp is a modification time on the wire.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	// The seconds-only layout also accepts a fractional part when parsing.
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("filetree: bad timestamp %q", s)
}

// IsDescendant reports whether a row at (path, level) belongs to directory
// dir rendered at dirLevel.
func IsDescendant(path string, level int, dir string, dirLevel int) bool {
	if level <= dirLevel {
		return false
	}
	return strings.HasPrefix(path, dir+"/")
}
