package editor

// Selection represents a text selection as two byte offsets into buffer text.
// Anchor is where the selection started, Cursor is where it currently extends to.
type Selection struct {
	Anchor int `json:"anchor"`
	Cursor int `json:"cursor"`
}

// Active reports whether the selection covers a non-empty range.
func (s Selection) Active() bool {
	return s.Anchor != s.Cursor
}

// Ordered returns the selection bounds in ascending order (start, end).
func (s Selection) Ordered() (start, end int) {
	if s.Anchor <= s.Cursor {
		return s.Anchor, s.Cursor
	}
	return s.Cursor, s.Anchor
}

// clamp limits both offsets to [0, n].
func (s Selection) clamp(n int) Selection {
	return Selection{Anchor: max(0, min(s.Anchor, n)), Cursor: max(0, min(s.Cursor, n))}
}
