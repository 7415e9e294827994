package editor

import "strings"

// Range represents a byte range [Start, End) within buffer text.
type Range struct {
	Start, End int
}

// editOp records a single replacement: the text at [offset,
// offset+len(oldText)) became newText.
type editOp struct {
	offset  int
	oldText string
	newText string
}

// step is one undoable unit. Ops are applied in order and reverted in
// reverse order.
type step []editOp

// Buffer holds the document text and its undo/redo history.
type Buffer struct {
	text      string
	undoStack []step
	redoStack []step
}

// NewBuffer creates a new empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Text returns the current text content of the buffer.
func (b *Buffer) Text() string {
	return b.text
}

// Len returns the length of the text in bytes.
func (b *Buffer) Len() int {
	return len(b.text)
}

// Reset replaces the text and discards all history, so the new content
// starts with nothing to undo or redo.
func (b *Buffer) Reset(text string) {
	b.text = text
	b.undoStack = nil
	b.redoStack = nil
}

// ApplyEdit replaces [offset, offset+len(oldText)) with newText as one
// undoable step and clears the redo stack. It reports false, leaving the
// buffer untouched, when the range is out of bounds or does not hold
// oldText.
func (b *Buffer) ApplyEdit(offset int, oldText, newText string) bool {
	return b.applyStep(step{{offset: offset, oldText: oldText, newText: newText}})
}

// Replace replaces the byte range r with text as one undoable step.
func (b *Buffer) Replace(r Range, text string) bool {
	start, end := clampRange(r, len(b.text))
	return b.ApplyEdit(start, b.text[start:end], text)
}

// applyStep applies the ops in order as a single undo step. Ops whose old
// and new text are equal are dropped; a step that changes nothing is not
// recorded.
func (b *Buffer) applyStep(s step) bool {
	text := b.text
	kept := s[:0:0]
	for _, op := range s {
		if op.offset < 0 || op.offset+len(op.oldText) > len(text) {
			return false
		}
		if text[op.offset:op.offset+len(op.oldText)] != op.oldText {
			return false
		}
		if op.oldText == op.newText {
			continue
		}
		text = text[:op.offset] + op.newText + text[op.offset+len(op.oldText):]
		kept = append(kept, op)
	}
	if len(kept) == 0 {
		return false
	}
	b.text = text
	b.undoStack = append(b.undoStack, kept)
	b.redoStack = nil
	return true
}

// Undo reverses the last step. Returns true if a step was undone, false if
// the undo stack is empty.
func (b *Buffer) Undo() bool {
	if len(b.undoStack) == 0 {
		return false
	}
	s := b.undoStack[len(b.undoStack)-1]
	b.undoStack = b.undoStack[:len(b.undoStack)-1]
	for i := len(s) - 1; i >= 0; i-- {
		op := s[i]
		b.text = b.text[:op.offset] + op.oldText + b.text[op.offset+len(op.newText):]
	}
	b.redoStack = append(b.redoStack, s)
	return true
}

// Redo reapplies the last undone step. Returns true if a step was redone,
// false if the redo stack is empty.
func (b *Buffer) Redo() bool {
	if len(b.redoStack) == 0 {
		return false
	}
	s := b.redoStack[len(b.redoStack)-1]
	b.redoStack = b.redoStack[:len(b.redoStack)-1]
	for _, op := range s {
		b.text = b.text[:op.offset] + op.newText + b.text[op.offset+len(op.oldText):]
	}
	b.undoStack = append(b.undoStack, s)
	return true
}

// UndoDepth returns the number of undoable steps.
func (b *Buffer) UndoDepth() int {
	return len(b.undoStack)
}

// RedoDepth returns the number of redoable steps.
func (b *Buffer) RedoDepth() int {
	return len(b.redoStack)
}

// LineAt returns the byte range of the line containing offset, excluding
// the trailing newline.
func (b *Buffer) LineAt(offset int) Range {
	return lineAt(b.text, offset)
}

func lineAt(text string, offset int) Range {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	return Range{Start: start, End: end}
}

func clampRange(r Range, n int) (int, int) {
	start, end := r.Start, r.End
	if start > end {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}
