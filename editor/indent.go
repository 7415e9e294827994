package editor

import (
	"fmt"
	"strings"
)

// IndentUnit is the text one indentation level inserts.
const IndentUnit = "  "

// leadingSpaces counts literal spaces at the start of line. Tabs end the
// run.
func leadingSpaces(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

// IndentDecorations colors the leading spaces of every line that
// intersects the given ranges, two spaces per level. A trailing odd space
// shares the level of the pair before it.
func IndentDecorations(text string, ranges []Range) []Decoration {
	var out []Decoration
	lastLine := -1
	for _, r := range ranges {
		start, end := clampRange(r, len(text))
		for pos := start; pos <= end; {
			line := lineAt(text, pos)
			if line.Start > lastLine {
				out = appendIndentMarks(out, text, line)
				lastLine = line.Start
			}
			pos = line.End + 1
		}
	}
	return out
}

func appendIndentMarks(out []Decoration, text string, line Range) []Decoration {
	spaces := leadingSpaces(text[line.Start:line.End])
	for i := 0; i < spaces; i += 2 {
		level := (i / 2) % paletteSize
		out = append(out, Decoration{
			From:  line.Start + i,
			To:    line.Start + min(i+2, spaces),
			Level: level,
			Class: fmt.Sprintf("indent-rainbow-%d", level),
		})
	}
	return out
}

// indentEdits returns the ops that add one indent unit at the start of
// every line touched by [start, end).
func indentEdits(text string, start, end int) step {
	var s step
	shift := 0
	for _, ls := range lineStarts(text, start, end) {
		s = append(s, editOp{offset: ls + shift, newText: IndentUnit})
		shift += len(IndentUnit)
	}
	return s
}

// dedentEdits returns the ops that remove up to one indent unit of leading
// spaces from every line touched by [start, end).
func dedentEdits(text string, start, end int) step {
	var s step
	shift := 0
	for _, ls := range lineStarts(text, start, end) {
		line := lineAt(text, ls)
		n := min(leadingSpaces(text[line.Start:line.End]), len(IndentUnit))
		if n == 0 {
			continue
		}
		s = append(s, editOp{offset: ls - shift, oldText: text[ls : ls+n]})
		shift += n
	}
	return s
}

// lineStarts returns the start offset of every line intersecting
// [start, end). A selection ending exactly at a line start does not touch
// that line, unless the selection is empty.
func lineStarts(text string, start, end int) []int {
	if end > start && end > 0 && text[end-1] == '\n' {
		end--
	}
	var out []int
	pos := lineAt(text, start).Start
	for {
		out = append(out, pos)
		next := strings.IndexByte(text[pos:], '\n')
		if next < 0 {
			break
		}
		pos += next + 1
		if pos > end {
			break
		}
	}
	return out
}
