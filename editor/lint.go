package editor

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Diagnostic reports a problem at [From, To). Line and Column are 1-based;
// both are 0 when the parser gave no position.
type Diagnostic struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// diagnosticSpan is how many bytes a diagnostic highlights at most.
const diagnosticSpan = 10

var yamlErrPos = regexp.MustCompile(`^yaml: line (\d+):(?: column (\d+):)?`)

// Lint parses every YAML document in text and reports the first failure:
// a syntax error or a mapping key repeated within one mapping. Nodes are
// decoded without a target type, so custom tags such as !include or
// !secret are accepted.
func Lint(text string) []Diagnostic {
	dec := yaml.NewDecoder(strings.NewReader(text))
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return []Diagnostic{diagnosticFor(text, err)}
		}
		if key, first := duplicateKey(&n); key != nil {
			msg := fmt.Sprintf("mapping key %q already defined at line %d", key.Value, first.Line)
			return []Diagnostic{diagnosticAt(text, key.Line, key.Column, msg)}
		}
	}
}

// duplicateKey returns the first scalar key that repeats an earlier key of
// the same mapping, along with that earlier key. Merge keys and aliases
// are not followed.
func duplicateKey(n *yaml.Node) (dup, first *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		seen := make(map[string]*yaml.Node, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode || k.Value == "<<" {
				continue
			}
			if prev, ok := seen[k.Value]; ok {
				return k, prev
			}
			seen[k.Value] = k
		}
	}
	if n.Kind == yaml.AliasNode {
		return nil, nil
	}
	for _, c := range n.Content {
		if dup, first := duplicateKey(c); dup != nil {
			return dup, first
		}
	}
	return nil, nil
}

func diagnosticFor(text string, err error) Diagnostic {
	d := Diagnostic{Severity: "error", Message: err.Error()}
	if d.Message == "" {
		d.Message = "YAML syntax error"
	}

	m := yamlErrPos.FindStringSubmatch(d.Message)
	if m == nil {
		d.From = 0
		d.To = min(diagnosticSpan, len(text))
		return d
	}

	lineNo, _ := strconv.Atoi(m[1])
	col := 1
	if m[2] != "" {
		col, _ = strconv.Atoi(m[2])
	}
	return diagnosticAt(text, lineNo, col, d.Message)
}

// diagnosticAt builds an error diagnostic at the 1-based line and column,
// clamped to that line.
func diagnosticAt(text string, lineNo, col int, msg string) Diagnostic {
	col = max(col, 1)
	line := lineRange(text, lineNo)
	from := min(line.Start+col-1, line.End)
	return Diagnostic{
		From:     from,
		To:       min(from+diagnosticSpan, line.End),
		Line:     lineNo,
		Column:   col,
		Severity: "error",
		Message:  msg,
	}
}

// lineRange returns the byte range of the 1-based line n, clamped to the
// last line.
func lineRange(text string, n int) Range {
	start := 0
	for i := 1; i < n; i++ {
		next := strings.IndexByte(text[start:], '\n')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return lineAt(text, start)
}
