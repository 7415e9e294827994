// Package commands maps keyboard shortcuts to editor commands.
package commands

import "strings"

// Command IDs.
const (
	Save            = "file.save"
	Undo            = "edit.undo"
	Redo            = "edit.redo"
	Indent          = "edit.indent"
	Dedent          = "edit.dedent"
	DeleteLine      = "edit.deleteLine"
	DuplicateLine   = "edit.duplicateLine"
	MoveLineUp      = "edit.moveLineUp"
	MoveLineDown    = "edit.moveLineDown"
	RefreshEntities = "entities.refresh"
)

// KeyEvent is a key press as reported by the presentation layer. Key is
// the DOM key value ("s", "Tab", "z").
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
}

// Binding ties a shortcut to a command. Mod matches either Ctrl or Meta
// so one binding covers Ctrl+S and Cmd+S. AnyAlt matches with or without
// Alt held.
type Binding struct {
	Key    string
	Mod    bool
	Shift  bool
	Alt    bool
	AnyAlt bool
}

// Command is one entry of the registry.
type Command struct {
	ID       string
	Label    string
	Shortcut string
	Category string
	Bindings []Binding
}

// AllCommands returns the full command list.
func AllCommands() []Command {
	return []Command{
		{ID: Save, Label: "Save File", Shortcut: "Ctrl+S", Category: "File", Bindings: []Binding{{Key: "s", Mod: true, AnyAlt: true}}},
		{ID: Undo, Label: "Undo", Shortcut: "Ctrl+Z", Category: "Edit", Bindings: []Binding{{Key: "z", Mod: true}}},
		{ID: Redo, Label: "Redo", Shortcut: "Ctrl+Shift+Z", Category: "Edit", Bindings: []Binding{{Key: "z", Mod: true, Shift: true}, {Key: "y", Mod: true}}},
		{ID: Indent, Label: "Indent", Shortcut: "Tab", Category: "Edit", Bindings: []Binding{{Key: "Tab"}}},
		{ID: Dedent, Label: "Dedent", Shortcut: "Shift+Tab", Category: "Edit", Bindings: []Binding{{Key: "Tab", Shift: true}}},
		{ID: DeleteLine, Label: "Delete Line", Shortcut: "Ctrl+Shift+K", Category: "Edit", Bindings: []Binding{{Key: "k", Mod: true, Shift: true}}},
		{ID: DuplicateLine, Label: "Duplicate Line", Shortcut: "Shift+Alt+Down", Category: "Edit", Bindings: []Binding{{Key: "ArrowDown", Shift: true, Alt: true}}},
		{ID: MoveLineUp, Label: "Move Line Up", Shortcut: "Alt+Up", Category: "Edit", Bindings: []Binding{{Key: "ArrowUp", Alt: true}}},
		{ID: MoveLineDown, Label: "Move Line Down", Shortcut: "Alt+Down", Category: "Edit", Bindings: []Binding{{Key: "ArrowDown", Alt: true}}},
		{ID: RefreshEntities, Label: "Refresh Entities", Category: "Entities"},
	}
}

// Match returns the command bound to ev, or "" when none is.
func Match(ev KeyEvent) string {
	key := ev.Key
	if len(key) == 1 {
		key = strings.ToLower(key)
	}
	mod := ev.Ctrl || ev.Meta
	for _, c := range AllCommands() {
		for _, b := range c.Bindings {
			if b.Key == key && b.Mod == mod && b.Shift == ev.Shift && (b.AnyAlt || b.Alt == ev.Alt) {
				return c.ID
			}
		}
	}
	return ""
}
