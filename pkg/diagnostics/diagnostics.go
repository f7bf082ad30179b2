// Package diagnostics defines VisionScript diagnostic types for syntax and runtime faults.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visionscript/vscript/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex         = "E_LEX"
	ESyntax      = "E_SYNTAX"
	EUnknownFn   = "E_UNKNOWN_FN"
	EUndefinedFn = "E_UNDEFINED_FN"
	EMissing     = "E_MISSING"
	EOp          = "E_OP"
	EIO          = "E_IO"
	EConfig      = "E_CONFIG"
	EArity       = "E_ARITY"
	EFnDup       = "E_FN_DUP"
	ELoopDir     = "E_LOOP_DIR"
)

// Diagnostic represents a syntax or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
