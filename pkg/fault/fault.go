// Package fault defines the typed faults raised while running a VisionScript
// program. A Fault is an ordinary error; hosts decide whether it ends the
// session.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
)

// Kind classifies a fault.
type Kind int

const (
	Syntax Kind = iota
	UnknownFunction
	UndefinedFunction
	MissingResource
	ExternalOperation
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "SyntaxFault"
	case UnknownFunction:
		return "UnknownFunctionFault"
	case UndefinedFunction:
		return "UndefinedFunctionFault"
	case MissingResource:
		return "MissingResourceFault"
	case ExternalOperation:
		return "ExternalOperationFault"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fault is an abnormal outcome of parsing or evaluation.
type Fault struct {
	Kind        Kind
	Code        string
	Message     string
	Span        *ast.Span
	Suggestions []string
	Err         error
}

func (f *Fault) Error() string {
	return f.Message
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Diagnostic converts the fault to a diagnostic for display.
func (f *Fault) Diagnostic() diagnostics.Diagnostic {
	hint := ""
	if len(f.Suggestions) > 0 {
		hint = "did you mean " + strings.Join(f.Suggestions, ", ") + "?"
	}
	return diagnostics.MakeDiag(f.Code, f.Message, f.Span, hint)
}

// WithSpan returns f with its span set, unless one is already recorded.
func (f *Fault) WithSpan(span ast.Span) *Fault {
	if f.Span == nil {
		f.Span = &span
	}
	return f
}

// As extracts a *Fault from err.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Missing reports a resource that an operation needed but did not find.
func Missing(format string, args ...any) *Fault {
	return &Fault{
		Kind:    MissingResource,
		Code:    diagnostics.EMissing,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unknown reports an operation name with no handler.
func Unknown(name string, suggestions []string) *Fault {
	msg := fmt.Sprintf("Function %s does not exist.", name)
	if len(suggestions) > 0 {
		msg += " Did you mean: " + strings.Join(suggestions, ", ") + "?"
	}
	return &Fault{
		Kind:        UnknownFunction,
		Code:        diagnostics.EUnknownFn,
		Message:     msg,
		Suggestions: suggestions,
	}
}

// Undefined reports a reference to a user function that was never made.
func Undefined(name string) *Fault {
	return &Fault{
		Kind:    UndefinedFunction,
		Code:    diagnostics.EUndefinedFn,
		Message: fmt.Sprintf("Function %s does not exist.", name),
	}
}

// External wraps an error raised inside an operation handler.
func External(op string, err error) *Fault {
	return &Fault{
		Kind:    ExternalOperation,
		Code:    diagnostics.EOp,
		Message: fmt.Sprintf("%s: %s", op, err),
		Err:     err,
	}
}
