package editor

// lineBlock returns the range covering every whole line touched by
// [start, end), without the final newline.
func lineBlock(text string, start, end int) Range {
	starts := lineStarts(text, start, end)
	first := starts[0]
	last := lineAt(text, starts[len(starts)-1])
	return Range{Start: first, End: last.End}
}

// deleteLinesEdit removes the touched lines together with one adjoining
// newline.
func deleteLinesEdit(text string, start, end int) step {
	b := lineBlock(text, start, end)
	switch {
	case b.End < len(text):
		b.End++
	case b.Start > 0:
		b.Start--
	}
	if b.Start == b.End {
		return nil
	}
	return step{{offset: b.Start, oldText: text[b.Start:b.End]}}
}

// duplicateLinesEdit inserts a copy of the touched lines below them.
func duplicateLinesEdit(text string, start, end int) step {
	b := lineBlock(text, start, end)
	return step{{offset: b.End, newText: "\n" + text[b.Start:b.End]}}
}

// moveLinesEdit swaps the touched lines with the line above (delta < 0)
// or below (delta > 0). Nil when the block is already at that edge.
func moveLinesEdit(text string, start, end, delta int) step {
	b := lineBlock(text, start, end)
	block := text[b.Start:b.End]
	switch {
	case delta < 0:
		if b.Start == 0 {
			return nil
		}
		prev := lineAt(text, b.Start-1)
		old := text[prev.Start:b.End]
		return step{{offset: prev.Start, oldText: old, newText: block + "\n" + text[prev.Start:prev.End]}}
	case delta > 0:
		if b.End >= len(text) {
			return nil
		}
		next := lineAt(text, b.End+1)
		old := text[b.Start:next.End]
		return step{{offset: b.Start, oldText: old, newText: text[next.Start:next.End] + "\n" + block}}
	}
	return nil
}
