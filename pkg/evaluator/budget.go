package evaluator

import (
	"fmt"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/fault"
)

// DefaultMaxCallDepth bounds nested user function calls when
// ExecOptions.MaxCallDepth is zero.
const DefaultMaxCallDepth = 512

// callBudget tracks the function call depth of one run. Nested evaluators
// created by Import share it.
type callBudget struct {
	depth int
	max   int
}

func newCallBudget(limit int) *callBudget {
	if limit <= 0 {
		limit = DefaultMaxCallDepth
	}
	return &callBudget{max: limit}
}

// enter records one more active call, failing once the limit is reached.
func (b *callBudget) enter(name string, span ast.Span) error {
	if b.depth >= b.max {
		return &fault.Fault{
			Kind:    fault.ExternalOperation,
			Code:    diagnostics.EOp,
			Message: fmt.Sprintf("Function %s exceeded the maximum call depth of %d.", name, b.max),
			Span:    &span,
		}
	}
	b.depth++
	return nil
}

func (b *callBudget) leave() {
	b.depth--
}
