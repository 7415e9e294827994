package filetree

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
)

// IgnoreFile, when present at the scan root, holds gitignore-style
// patterns for entries to leave out of the listing.
const IgnoreFile = ".confeditignore"

func shouldSkip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "__pycache__", "node_modules":
		return true
	default:
		return false
	}
}

// IsConfigFile reports whether name has a YAML extension.
func IsConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Scan builds a listing of root. Directories are listed before files and
// each group is sorted by name; only YAML files appear. A directory that
// cannot be read contributes no children. Symlinks are followed when their
// target stays inside root; broken links, links leaving root and links
// back to a directory already being scanned are dropped. Entries matched
// by IgnoreFile are dropped; an unreadable ignore file counts as absent.
// Scan fails only when root itself cannot be read.
func Scan(root string) ([]*Node, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	if realRoot, err = filepath.Abs(realRoot); err != nil {
		return nil, err
	}
	sc := &scanner{root: root, realRoot: realRoot, active: map[string]bool{realRoot: true}}
	if m, err := gitignore.NewGitIgnore(filepath.Join(root, IgnoreFile)); err == nil {
		sc.ignore = m
	}
	return sc.scan("", realRoot, entries), nil
}

type scanner struct {
	root     string
	realRoot string
	ignore   gitignore.IgnoreMatcher
	// active holds the resolved paths of the directories on the current
	// descent, so a link to one of them is not followed again.
	active map[string]bool
}

type scanEntry struct {
	name  string
	isDir bool
	real  string // resolved location on disk
}

// resolve classifies e, following a symlink when it stays inside the
// root. ok is false when the entry must be dropped.
func (sc *scanner) resolve(e os.DirEntry, abs, realDir string) (scanEntry, bool) {
	se := scanEntry{name: e.Name(), isDir: e.IsDir()}
	if e.Type()&fs.ModeSymlink == 0 {
		se.real = filepath.Join(realDir, se.name)
		return se, true
	}
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return se, false
	}
	if target, err = filepath.Abs(target); err != nil || !sc.inside(target) {
		return se, false
	}
	info, err := os.Stat(target)
	if err != nil {
		return se, false
	}
	se.isDir = info.IsDir()
	se.real = target
	return se, true
}

func (sc *scanner) inside(p string) bool {
	rel, err := filepath.Rel(sc.realRoot, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (sc *scanner) scan(rel, realDir string, dirEntries []os.DirEntry) []*Node {
	entries := make([]scanEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		if shouldSkip(e.Name()) {
			continue
		}
		abs := filepath.Join(sc.root, filepath.FromSlash(path.Join(rel, e.Name())))
		if se, ok := sc.resolve(e, abs, realDir); ok {
			entries = append(entries, se)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].name < entries[j].name
	})

	nodes := []*Node{}
	for _, e := range entries {
		p := path.Join(rel, e.name)
		abs := filepath.Join(sc.root, filepath.FromSlash(p))
		if sc.ignore != nil && sc.ignore.Match(abs, e.isDir) {
			continue
		}

		if e.isDir {
			if sc.active[e.real] {
				continue
			}
			children := []*Node{}
			if sub, err := os.ReadDir(abs); err == nil {
				sc.active[e.real] = true
				children = sc.scan(p, e.real, sub)
				delete(sc.active, e.real)
			} else if !errors.Is(err, fs.ErrPermission) {
				continue
			}
			nodes = append(nodes, &Node{
				Name:     e.name,
				Path:     p,
				Kind:     KindDirectory,
				Children: children,
			})
			continue
		}
		if !IsConfigFile(e.name) {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		size := info.Size()
		nodes = append(nodes, &Node{
			Name:     e.name,
			Path:     p,
			Kind:     KindFile,
			Size:     &size,
			Modified: &Timestamp{Time: info.ModTime()},
		})
	}
	return nodes
}
