package editor

import "fmt"

// bracketPairs maps each bracket character to its matching partner.
var bracketPairs = map[byte]byte{
	'(': ')',
	')': '(',
	'{': '}',
	'}': '{',
	'[': ']',
	']': '[',
}

func isOpenBracket(c byte) bool {
	return c == '(' || c == '{' || c == '['
}

func isCloseBracket(c byte) bool {
	return c == ')' || c == '}' || c == ']'
}

// paletteSize is the number of colors the decoration passes cycle through.
const paletteSize = 4

// BracketDecorations colors brackets in the given ranges of text with one
// left-to-right scan that shares a single stack across ranges. An opening
// bracket takes the depth before it is pushed; a closing bracket takes the
// depth after the pop. A close with nothing open stays at depth 0.
func BracketDecorations(text string, ranges []Range) []Decoration {
	var out []Decoration
	depth := 0
	for _, r := range ranges {
		start, end := clampRange(r, len(text))
		for i := start; i < end; i++ {
			c := text[i]
			switch {
			case isOpenBracket(c):
				out = append(out, bracketMark(i, depth))
				depth++
			case isCloseBracket(c):
				if depth > 0 {
					depth--
				}
				out = append(out, bracketMark(i, depth))
			}
		}
	}
	return out
}

func bracketMark(pos, depth int) Decoration {
	level := depth % paletteSize
	return Decoration{
		From:  pos,
		To:    pos + 1,
		Level: level,
		Class: fmt.Sprintf("rainbow-bracket-%d", level+1),
	}
}

// FindMatchingBracket finds the matching bracket for the bracket at byte
// offset pos. Returns the offset of the match and true, or 0 and false if
// no match is found or pos is not a bracket.
// Supports: () {} []
func FindMatchingBracket(text string, pos int) (int, bool) {
	if pos < 0 || pos >= len(text) {
		return 0, false
	}

	ch := text[pos]
	partner, isBracket := bracketPairs[ch]
	if !isBracket {
		return 0, false
	}

	step := 1
	if !isOpenBracket(ch) {
		step = -1
	}
	depth := 1
	for i := pos + step; i >= 0 && i < len(text); i += step {
		switch text[i] {
		case ch:
			depth++
		case partner:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
