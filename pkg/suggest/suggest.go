// Package suggest turns syntax errors into user-facing faults and proposes
// corrections for misspelled operation names.
package suggest

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/parser"
	"github.com/visionscript/vscript/pkg/vocab"
)

// MaxDistance is the largest edit distance at which a word is suggested.
const MaxDistance = 2

// Candidates returns the vocabulary words closest to word, in their
// original spelling. Only words at the smallest distance found are kept,
// and nothing further than MaxDistance is returned.
func Candidates(word string) []string {
	lower := strings.ToLower(word)
	best := MaxDistance + 1
	var out []string
	for _, w := range vocab.Words() {
		d := fuzzy.LevenshteinDistance(lower, strings.ToLower(w))
		switch {
		case d < best:
			best = d
			out = []string{w}
		case d == best:
			out = append(out, w)
		}
	}
	return out
}

// Explain converts a syntax error into a fault. An unknown word gets
// spelling suggestions; a known word in a malformed line is reported as a
// plain syntax error with its position.
func Explain(source string, err *parser.SyntaxError) *fault.Fault {
	span := err.Diag.Span
	if span == nil {
		span = &ast.Span{StartLine: err.Line, StartCol: err.Col, EndLine: err.Line, EndCol: err.Col}
	}
	if err.Class == parser.UnexpectedToken {
		return &fault.Fault{
			Kind:    fault.Syntax,
			Code:    diagnostics.ESyntax,
			Message: fmt.Sprintf("Syntax error on line %d, column %d. Unexpected token: %s", err.Line, err.Col, err.Token),
			Span:    span,
			Err:     err,
		}
	}

	word := offendingWord(source, err.Line, err.Col)
	if word == "" || vocab.Has(word) {
		return &fault.Fault{
			Kind:    fault.Syntax,
			Code:    diagnostics.ESyntax,
			Message: fmt.Sprintf("Syntax error on line %d, column %d.", err.Line, err.Col),
			Span:    span,
			Err:     err,
		}
	}
	f := fault.Unknown(word, Candidates(word))
	f.Span = span
	f.Err = err
	return f
}

// offendingWord returns the identifier starting at col on the given line,
// or failing that the identifier the line starts with. Columns count bytes.
func offendingWord(source string, line, col int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	text := strings.TrimRight(lines[line-1], "\r")
	if col >= 1 && col <= len(text) {
		if w := identAt(text, col-1); w != "" {
			return w
		}
	}
	i := 0
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return identAt(text, i)
}

func identAt(text string, i int) string {
	if i >= len(text) || !isAlpha(text[i]) {
		return ""
	}
	j := i
	for j < len(text) && (isAlpha(text[j]) || (text[j] >= '0' && text[j] <= '9')) {
		j++
	}
	return text[i:j]
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}
