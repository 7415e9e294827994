package autocomplete

import "fmt"

// MaxResults caps the number of suggestions in one result.
const MaxResults = 50

// Context is the cursor position within the buffer text. Pos is a byte
// offset.
type Context struct {
	Text string
	Pos  int
}

// Suggestion is one completion option.
type Suggestion struct {
	Label  string `json:"label"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Info   string `json:"info,omitempty"`
}

// Result replaces buffer bytes [From, To) with the chosen suggestion.
type Result struct {
	From    int          `json:"from"`
	To      int          `json:"to"`
	Options []Suggestion `json:"options"`
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '.'
}

// WordBefore returns the start offset and text of the run of
// [A-Za-z0-9._] ending at pos.
func WordBefore(text string, pos int) (int, string) {
	if pos > len(text) {
		pos = len(text)
	}
	if pos < 0 {
		pos = 0
	}
	start := pos
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	return start, text[start:pos]
}

// Complete returns entity suggestions for the word before the cursor, or
// nil when there is no word or nothing matches.
func (ix *Index) Complete(ctx Context) *Result {
	from, word := WordBefore(ctx.Text, ctx.Pos)
	if word == "" {
		return nil
	}
	matches := ix.Match(word, MaxResults)
	if len(matches) == 0 {
		return nil
	}

	res := &Result{From: from, To: from + len(word), Options: make([]Suggestion, 0, len(matches))}
	for _, e := range matches {
		detail := e.FriendlyName
		if detail == "" {
			detail = e.Domain
		}
		res.Options = append(res.Options, Suggestion{
			Label:  e.EntityID,
			Type:   "variable",
			Detail: detail,
			Info:   fmt.Sprintf("Domain: %s\nState: %s", e.Domain, e.State),
		})
	}
	return res
}
