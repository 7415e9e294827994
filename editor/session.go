package editor

import (
	"github.com/odvcencio/confedit/commands"
)

// EventKind identifies a session notification.
type EventKind int

const (
	// EventChanged fires once per discrete document change.
	EventChanged EventKind = iota
	// EventTheme fires after a theme switch.
	EventTheme
)

// Event is delivered to subscribers.
type Event struct {
	Kind    EventKind
	Dark    bool
	CanUndo bool
	CanRedo bool
}

// Session is one editing surface: buffer, history, viewport, theme and
// the derived decorations, diagnostics and highlight spans.
// A Session is not safe for concurrent use.
type Session struct {
	buf     *Buffer
	hl      *Highlighter
	palette Palette

	visible []Range // nil means the whole document

	decos       *Decorations
	diags       []Diagnostic
	diagsStale  bool
	folds       *FoldState
	foldsStale  bool
	subscribers map[int]func(Event)
	nextSub     int
	onSave      func()
}

// NewSession creates an empty session rendering the light or dark theme.
func NewSession(dark bool) *Session {
	p := PaletteFor(dark)
	return &Session{
		buf:         NewBuffer(),
		hl:          NewHighlighter(p.SyntaxStyle),
		palette:     p,
		diagsStale:  true,
		folds:       NewFoldState(),
		foldsStale:  true,
		subscribers: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for session events and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(Event)) func() {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

func (s *Session) emit(kind EventKind) {
	ev := Event{Kind: kind, Dark: s.palette.Dark, CanUndo: s.CanUndo(), CanRedo: s.CanRedo()}
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

// changed invalidates derived state and, when notify is set, tells
// subscribers.
func (s *Session) changed(notify bool) {
	s.decos = nil
	s.diagsStale = true
	s.foldsStale = true
	if notify {
		s.emit(EventChanged)
	}
}

// Content returns the exact buffer text.
func (s *Session) Content() string {
	return s.buf.Text()
}

// SetContent replaces the whole buffer. With skipHistory the replacement
// cannot be undone, both history stacks start empty and no change event
// fires; this is how files are loaded. Otherwise the replacement is one
// undoable edit.
func (s *Session) SetContent(text string, skipHistory bool) {
	if skipHistory {
		s.buf.Reset(text)
		s.folds.UnfoldAll()
		s.changed(false)
		return
	}
	if s.buf.ApplyEdit(0, s.buf.Text(), text) {
		s.changed(true)
	}
}

// Edit replaces [from, to) with insert as one user edit. It reports
// whether the document changed.
func (s *Session) Edit(from, to int, insert string) bool {
	if !s.buf.Replace(Range{Start: from, End: to}, insert) {
		return false
	}
	s.changed(true)
	return true
}

// Undo reverts the last edit.
func (s *Session) Undo() bool {
	if !s.buf.Undo() {
		return false
	}
	s.changed(true)
	return true
}

// Redo reapplies the last undone edit.
func (s *Session) Redo() bool {
	if !s.buf.Redo() {
		return false
	}
	s.changed(true)
	return true
}

// CanUndo reports whether Undo would change the document.
func (s *Session) CanUndo() bool { return s.buf.UndoDepth() > 0 }

// CanRedo reports whether Redo would change the document.
func (s *Session) CanRedo() bool { return s.buf.RedoDepth() > 0 }

// UndoDepth returns the number of undoable edits.
func (s *Session) UndoDepth() int { return s.buf.UndoDepth() }

// RedoDepth returns the number of redoable edits.
func (s *Session) RedoDepth() int { return s.buf.RedoDepth() }

// Indent inserts one indent unit at the cursor, or indents every line of
// a non-empty selection.
func (s *Session) Indent(sel Selection) bool {
	sel = sel.clamp(s.buf.Len())
	start, end := sel.Ordered()
	var ok bool
	if !sel.Active() {
		ok = s.buf.ApplyEdit(start, "", IndentUnit)
	} else {
		ok = s.buf.applyStep(indentEdits(s.buf.Text(), start, end))
	}
	if ok {
		s.changed(true)
	}
	return ok
}

// Dedent removes up to one indent unit from every line the selection
// touches.
func (s *Session) Dedent(sel Selection) bool {
	sel = sel.clamp(s.buf.Len())
	start, end := sel.Ordered()
	if !s.buf.applyStep(dedentEdits(s.buf.Text(), start, end)) {
		return false
	}
	s.changed(true)
	return true
}

// DeleteLines removes every line the selection touches.
func (s *Session) DeleteLines(sel Selection) bool {
	sel = sel.clamp(s.buf.Len())
	start, end := sel.Ordered()
	return s.applyLineStep(deleteLinesEdit(s.buf.Text(), start, end))
}

// DuplicateLines copies the touched lines below themselves.
func (s *Session) DuplicateLines(sel Selection) bool {
	sel = sel.clamp(s.buf.Len())
	start, end := sel.Ordered()
	return s.applyLineStep(duplicateLinesEdit(s.buf.Text(), start, end))
}

// MoveLines moves the touched lines one line up (delta < 0) or down.
func (s *Session) MoveLines(sel Selection, delta int) bool {
	sel = sel.clamp(s.buf.Len())
	start, end := sel.Ordered()
	return s.applyLineStep(moveLinesEdit(s.buf.Text(), start, end, delta))
}

func (s *Session) applyLineStep(st step) bool {
	if len(st) == 0 || !s.buf.applyStep(st) {
		return false
	}
	s.changed(true)
	return true
}

// Folds returns the fold regions of the current document. Fold state
// survives edits for regions that still start on the same line.
func (s *Session) Folds() []FoldRegion {
	if s.foldsStale {
		s.folds.SetRegions(DetectFoldRegions(s.buf.Text()))
		s.foldsStale = false
	}
	return s.folds.Regions()
}

// ToggleFold folds or unfolds the region starting at line.
func (s *Session) ToggleFold(line int) bool {
	s.Folds()
	return s.folds.Toggle(line)
}

// LineHidden reports whether line is inside a folded region.
func (s *Session) LineHidden(line int) bool {
	s.Folds()
	return s.folds.IsLineHidden(line)
}

// MatchBracket returns the offset of the bracket matching the one at pos.
func (s *Session) MatchBracket(pos int) (int, bool) {
	return FindMatchingBracket(s.buf.Text(), pos)
}

// SetViewport sets the visible ranges. Nil means the whole document.
func (s *Session) SetViewport(visible []Range) {
	if visible == nil {
		s.visible = nil
	} else {
		s.visible = append(make([]Range, 0, len(visible)), visible...)
	}
	s.decos = nil
}

func (s *Session) viewport() []Range {
	if s.visible == nil {
		return []Range{{Start: 0, End: s.buf.Len()}}
	}
	return s.visible
}

// Decorations returns the bracket and indentation decorations for the
// current viewport, recomputing them only after the document or viewport
// changed.
func (s *Session) Decorations() Decorations {
	if s.decos == nil {
		d := computeDecorations(s.buf.Text(), s.viewport())
		s.decos = &d
	}
	return *s.decos
}

// Diagnostics returns the linter result for the current document.
func (s *Session) Diagnostics() []Diagnostic {
	if s.diagsStale {
		s.diags = Lint(s.buf.Text())
		s.diagsStale = false
	}
	return s.diags
}

// Highlight returns syntax spans for the current viewport.
func (s *Session) Highlight() ([]Span, error) {
	return s.hl.Highlight(s.buf.Text(), s.viewport())
}

// Palette returns the active presentation palette.
func (s *Session) Palette() Palette {
	return s.palette
}

// SetTheme switches presentation only. Content, history and viewport are
// left alone.
func (s *Session) SetTheme(dark bool) {
	if s.palette.Dark == dark {
		return
	}
	s.palette = PaletteFor(dark)
	s.hl.SetStyle(s.palette.SyntaxStyle)
	s.emit(EventTheme)
}

// OnSave registers the save callback, replacing any previous one.
func (s *Session) OnSave(fn func()) {
	s.onSave = fn
}

// HandleKey runs the command bound to ev. It reports whether the key was
// consumed, in which case the host must suppress the native action (for
// example the browser's save dialog).
func (s *Session) HandleKey(ev commands.KeyEvent, sel Selection) bool {
	switch commands.Match(ev) {
	case commands.Save:
		if s.onSave != nil {
			s.onSave()
		}
		return true
	case commands.Undo:
		s.Undo()
		return true
	case commands.Redo:
		s.Redo()
		return true
	case commands.Indent:
		s.Indent(sel)
		return true
	case commands.Dedent:
		s.Dedent(sel)
		return true
	case commands.DeleteLine:
		s.DeleteLines(sel)
		return true
	case commands.DuplicateLine:
		s.DuplicateLines(sel)
		return true
	case commands.MoveLineUp:
		s.MoveLines(sel, -1)
		return true
	case commands.MoveLineDown:
		s.MoveLines(sel, 1)
		return true
	default:
		return false
	}
}
