// Package editor holds the editing core used by the web host: the text
// buffer with undo history, the decoration passes, the YAML linter, syntax
// highlighting and the session that ties them to a viewport and a theme.
// It has no UI dependency.
package editor

// Decoration marks [From, To) with a presentation class.
type Decoration struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Level int    `json:"level"`
	Class string `json:"class"`
}

// Decorations bundles the results of both passes for one viewport.
type Decorations struct {
	Brackets []Decoration `json:"brackets"`
	Indent   []Decoration `json:"indent"`
}

func computeDecorations(text string, visible []Range) Decorations {
	return Decorations{
		Brackets: BracketDecorations(text, visible),
		Indent:   IndentDecorations(text, visible),
	}
}
