package editor

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Span is one highlighted token. Color is a #rrggbb string or empty when
// the style leaves the token at its default color.
type Span struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Token  string `json:"token"`
	Color  string `json:"color,omitempty"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
}

// Highlighter tokenizes YAML with chroma and colors tokens from a style.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// NewHighlighter creates a YAML highlighter using the named chroma style.
// Unknown style names fall back to chroma's default style.
func NewHighlighter(style string) *Highlighter {
	lexer := lexers.Get("yaml")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &Highlighter{
		lexer: chroma.Coalesce(lexer),
		style: styles.Get(style),
	}
}

// SetStyle switches the color style.
func (h *Highlighter) SetStyle(style string) {
	h.style = styles.Get(style)
}

// Highlight returns the spans of text that intersect the visible ranges.
// Whitespace-only tokens are skipped.
func (h *Highlighter) Highlight(text string, visible []Range) ([]Span, error) {
	// Keep CRLF intact so token offsets line up with buffer offsets.
	it, err := h.lexer.Tokenise(&chroma.TokeniseOptions{State: "root"}, text)
	if err != nil {
		return nil, err
	}

	var spans []Span
	pos := 0
	for tok := it(); tok != chroma.EOF; tok = it() {
		from, to := pos, min(pos+len(tok.Value), len(text))
		pos += len(tok.Value)
		if from >= to {
			continue
		}
		if tok.Type == chroma.Text || tok.Type == chroma.TextWhitespace {
			continue
		}
		if !intersects(from, to, visible) {
			continue
		}
		entry := h.style.Get(tok.Type)
		s := Span{
			From:   from,
			To:     to,
			Token:  tok.Type.String(),
			Bold:   entry.Bold == chroma.Yes,
			Italic: entry.Italic == chroma.Yes,
		}
		if entry.Colour.IsSet() {
			s.Color = entry.Colour.String()
		}
		spans = append(spans, s)
	}
	return spans, nil
}

func intersects(from, to int, ranges []Range) bool {
	for _, r := range ranges {
		if from < r.End && to > r.Start {
			return true
		}
	}
	return false
}
