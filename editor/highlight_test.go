package editor

import (
	"strings"
	"testing"
)

func TestHighlightSpans(t *testing.T) {
	h := NewHighlighter("github")
	text := "key: value\n# note\nlist:\n  - 1\n"
	spans, err := h.Highlight(text, []Range{{0, len(text)}})
	if err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if len(spans) == 0 {
		t.Fatal("no spans")
	}
	if spans[0].From != 0 || !strings.HasPrefix(text[spans[0].From:spans[0].To], "key") {
		t.Errorf("first span = %+v, want it to start with the key", spans[0])
	}
	prev := 0
	for _, s := range spans {
		if s.From < prev || s.From >= s.To || s.To > len(text) {
			t.Fatalf("span %+v out of order or bounds", s)
		}
		if s.Token == "" {
			t.Errorf("span %+v has no token name", s)
		}
		prev = s.To
	}
}

func TestHighlightVisibleOnly(t *testing.T) {
	h := NewHighlighter("onedark")
	text := "a: 1\nb: 2\nc: 3\n"
	visible := []Range{{5, 9}}
	spans, err := h.Highlight(text, visible)
	if err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if len(spans) == 0 {
		t.Fatal("no spans for visible line")
	}
	for _, s := range spans {
		if s.To <= 5 || s.From >= 9 {
			t.Errorf("span %+v outside the visible range", s)
		}
	}
}

func TestHighlightUnknownStyle(t *testing.T) {
	h := NewHighlighter("no-such-style")
	spans, err := h.Highlight("a: b", []Range{{0, 4}})
	if err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if len(spans) == 0 {
		t.Error("fallback style produced no spans")
	}
}
