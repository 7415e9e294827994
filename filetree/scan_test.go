package filetree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestShouldSkip(t *testing.T) {
	cases := []struct {
		name string
		skip bool
	}{
		{name: ".storage", skip: true},
		{name: ".git", skip: true},
		{name: "__pycache__", skip: true},
		{name: "node_modules", skip: true},
		{name: "packages", skip: false},
	}
	for _, tc := range cases {
		if got := shouldSkip(tc.name); got != tc.skip {
			t.Errorf("shouldSkip(%q) = %v, want %v", tc.name, got, tc.skip)
		}
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	write("configuration.yaml", "homeassistant:\n")
	write("scripts.YML", "")
	write("notes.txt", "ignored")
	write("automations/lights.yaml", "- id: a\n")
	write("automations/readme.md", "ignored")
	write(".storage/core.yaml", "hidden")
	write("node_modules/x.yaml", "skipped")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir empty: %v", err)
	}

	nodes, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var got []string
	walk(nodes, func(n *Node) bool {
		got = append(got, string(n.Kind)+":"+n.Path)
		return true
	})
	want := []string{
		"directory:automations",
		"file:automations/lights.yaml",
		"directory:empty",
		"file:configuration.yaml",
		"file:scripts.YML",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}

	cfg := nodes[2]
	if cfg.Size == nil || *cfg.Size != int64(len("homeassistant:\n")) {
		t.Errorf("size = %v", cfg.Size)
	}
	if cfg.Modified == nil || cfg.Modified.IsZero() {
		t.Error("file node missing modification time")
	}
	if nodes[1].Children == nil {
		t.Error("empty directory should carry an empty children list")
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestScanIgnoreFile(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"configuration.yaml", "secrets.yaml", "blueprints/a.yaml", "packages/b.yaml"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, IgnoreFile), []byte("secrets.yaml\nblueprints/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	nodes, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []string
	walk(nodes, func(n *Node) bool {
		got = append(got, n.Path)
		return true
	})
	want := []string{"packages", "packages/b.yaml", "configuration.yaml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "packages"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{filepath.Join(root, "packages", "a.yaml"), filepath.Join(outside, "x.yaml")} {
		if err := os.WriteFile(p, []byte("a: 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	links := map[string]string{
		"linked":      "packages",
		"alias.yaml":  filepath.Join("packages", "a.yaml"),
		"loop":        ".",
		"packages/up": "..",
		"out":         outside,
		"broken.yaml": "missing.yaml",
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(root, filepath.FromSlash(name))); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	nodes, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []string
	walk(nodes, func(n *Node) bool {
		got = append(got, string(n.Kind)+":"+n.Path)
		return true
	})
	want := []string{
		"directory:linked",
		"file:linked/a.yaml",
		"directory:packages",
		"file:packages/a.yaml",
		"file:alias.yaml",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}
}
