package editor

import "strings"

// FoldRegion is a block of lines that can be collapsed onto StartLine.
// Lines are 0-based and EndLine is inclusive.
type FoldRegion struct {
	StartLine int  `json:"startLine"`
	EndLine   int  `json:"endLine"`
	Folded    bool `json:"folded"`
}

// FoldState tracks which regions are folded.
type FoldState struct {
	regions []FoldRegion
}

// NewFoldState creates an empty fold state.
func NewFoldState() *FoldState {
	return &FoldState{}
}

// SetRegions replaces the fold regions, keeping regions folded whose start
// line was folded before.
func (fs *FoldState) SetRegions(regions []FoldRegion) {
	oldFolded := make(map[int]bool)
	for _, r := range fs.regions {
		if r.Folded {
			oldFolded[r.StartLine] = true
		}
	}
	for i := range regions {
		if oldFolded[regions[i].StartLine] {
			regions[i].Folded = true
		}
	}
	fs.regions = regions
}

// Toggle folds or unfolds the region starting at line.
func (fs *FoldState) Toggle(line int) bool {
	for i, r := range fs.regions {
		if r.StartLine == line {
			fs.regions[i].Folded = !fs.regions[i].Folded
			return true
		}
	}
	return false
}

// UnfoldAll unfolds every region.
func (fs *FoldState) UnfoldAll() {
	for i := range fs.regions {
		fs.regions[i].Folded = false
	}
}

// IsLineHidden reports whether line sits inside a folded region. The start
// line of a region stays visible.
func (fs *FoldState) IsLineHidden(line int) bool {
	for _, r := range fs.regions {
		if r.Folded && line > r.StartLine && line <= r.EndLine {
			return true
		}
	}
	return false
}

// Regions returns all fold regions.
func (fs *FoldState) Regions() []FoldRegion {
	return fs.regions
}

// DetectFoldRegions returns one region per line whose following lines are
// indented deeper, such as a mapping key with nested children. Blank and
// comment-only lines never start a region and do not end one.
func DetectFoldRegions(text string) []FoldRegion {
	lines := strings.Split(text, "\n")
	indents := make([]int, len(lines))
	for i, line := range lines {
		indents[i] = -1
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indents[i] = len(line) - len(trimmed)
	}

	var regions []FoldRegion
	for i := range lines {
		if indents[i] < 0 {
			continue
		}
		end := i
		for j := i + 1; j < len(lines); j++ {
			if indents[j] < 0 {
				continue
			}
			if indents[j] <= indents[i] {
				break
			}
			end = j
		}
		if end > i {
			regions = append(regions, FoldRegion{StartLine: i, EndLine: end})
		}
	}
	return regions
}
