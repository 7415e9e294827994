package editor

import "testing"

func TestNewBuffer(t *testing.T) {
	b := NewBuffer()
	if b == nil {
		t.Fatal("NewBuffer returned nil")
	}
	if b.Text() != "" {
		t.Errorf("new buffer text = %q, want empty", b.Text())
	}
	if b.UndoDepth() != 0 || b.RedoDepth() != 0 {
		t.Errorf("new buffer depths = %d/%d, want 0/0", b.UndoDepth(), b.RedoDepth())
	}
}

func TestBufferUndoRedo(t *testing.T) {
	b := NewBuffer()
	b.Reset("hello world")

	// Replace "world" (offset 6, len 5) with "Go".
	if !b.ApplyEdit(6, "world", "Go") {
		t.Fatal("ApplyEdit returned false")
	}
	if b.Text() != "hello Go" {
		t.Fatalf("after edit text = %q, want %q", b.Text(), "hello Go")
	}

	if !b.Undo() {
		t.Fatal("Undo returned false, expected true")
	}
	if b.Text() != "hello world" {
		t.Fatalf("after undo text = %q, want %q", b.Text(), "hello world")
	}
	if b.Undo() {
		t.Fatal("Undo returned true on empty stack")
	}

	if !b.Redo() {
		t.Fatal("Redo returned false, expected true")
	}
	if b.Text() != "hello Go" {
		t.Fatalf("after redo text = %q, want %q", b.Text(), "hello Go")
	}
	if b.Redo() {
		t.Fatal("Redo returned true on empty stack")
	}

	// New edit after undo should clear redo stack.
	b.Undo()
	b.ApplyEdit(6, "world", "YAML")
	if b.Text() != "hello YAML" {
		t.Fatalf("after second edit text = %q, want %q", b.Text(), "hello YAML")
	}
	if b.Redo() {
		t.Fatal("Redo should return false after new edit clears redo stack")
	}
}

func TestBufferResetClearsHistory(t *testing.T) {
	b := NewBuffer()
	b.ApplyEdit(0, "", "first file")
	b.ApplyEdit(0, "first", "1st")
	b.Undo()
	if b.UndoDepth() == 0 || b.RedoDepth() == 0 {
		t.Fatal("setup: expected history on both stacks")
	}

	b.Reset("second file")
	if b.UndoDepth() != 0 || b.RedoDepth() != 0 {
		t.Errorf("depths after Reset = %d/%d, want 0/0", b.UndoDepth(), b.RedoDepth())
	}
	if b.Undo() {
		t.Error("Undo after Reset should be a no-op")
	}
	if b.Text() != "second file" {
		t.Errorf("text = %q, want %q", b.Text(), "second file")
	}
}

func TestBufferRejectsMismatchedEdit(t *testing.T) {
	b := NewBuffer()
	b.Reset("abc")
	if b.ApplyEdit(1, "x", "y") {
		t.Error("edit with wrong oldText applied")
	}
	if b.ApplyEdit(2, "cd", "") {
		t.Error("edit past end applied")
	}
	if b.ApplyEdit(1, "b", "b") {
		t.Error("no-op edit recorded")
	}
	if b.Text() != "abc" || b.UndoDepth() != 0 {
		t.Errorf("buffer changed: %q depth %d", b.Text(), b.UndoDepth())
	}
}

func TestBufferMultiOpStepUndoesAtOnce(t *testing.T) {
	b := NewBuffer()
	b.Reset("a\nb\nc")
	if !b.applyStep(indentEdits(b.Text(), 0, b.Len())) {
		t.Fatal("applyStep returned false")
	}
	if b.Text() != "  a\n  b\n  c" {
		t.Fatalf("text = %q", b.Text())
	}
	if b.UndoDepth() != 1 {
		t.Errorf("undo depth = %d, want 1", b.UndoDepth())
	}
	b.Undo()
	if b.Text() != "a\nb\nc" {
		t.Errorf("after undo text = %q", b.Text())
	}
	b.Redo()
	if b.Text() != "  a\n  b\n  c" {
		t.Errorf("after redo text = %q", b.Text())
	}
}

func TestBufferReplaceClamps(t *testing.T) {
	b := NewBuffer()
	b.Reset("hello")
	if !b.Replace(Range{Start: 3, End: 99}, "p!") {
		t.Fatal("Replace returned false")
	}
	if b.Text() != "help!" {
		t.Errorf("text = %q, want %q", b.Text(), "help!")
	}
}

func TestLineAt(t *testing.T) {
	text := "one\ntwo\n\nfour"
	cases := []struct {
		offset int
		want   Range
	}{
		{0, Range{0, 3}},
		{3, Range{0, 3}},
		{4, Range{4, 7}},
		{8, Range{8, 8}},
		{9, Range{9, 13}},
		{100, Range{9, 13}},
	}
	for _, tc := range cases {
		if got := lineAt(text, tc.offset); got != tc.want {
			t.Errorf("lineAt(%d) = %+v, want %+v", tc.offset, got, tc.want)
		}
	}
}
