// Package runtime provides the top-level VisionScript runtime orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/backend"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/evaluator"
	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/formatter"
	"github.com/visionscript/vscript/pkg/ops"
	"github.com/visionscript/vscript/pkg/parser"
	"github.com/visionscript/vscript/pkg/session"
	"github.com/visionscript/vscript/pkg/suggest"
	"github.com/visionscript/vscript/pkg/validator"
	"github.com/visionscript/vscript/pkg/value"
)

// Result holds the outcome of a program execution.
type Result struct {
	Value  value.Value
	Output value.Value
	Halted bool
	Exited bool
	State  *session.State
}

// Runtime wires together all VisionScript components for program execution.
type Runtime struct {
	registry *ops.Registry
	backend  backend.Backend
	out      io.Writer
	display  ops.Display
	inputs   map[string]value.Value
	indexDSN string
	model    string
	rand     *rand.Rand
	runID    string
	trace    func(event evaluator.TraceEvent)
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithRegistry replaces the default operation registry.
func WithRegistry(r *ops.Registry) Option {
	return func(rt *Runtime) {
		rt.registry = r
	}
}

// WithBackend sets the inference backend.
func WithBackend(b backend.Backend) Option {
	return func(rt *Runtime) {
		rt.backend = b
	}
}

// WithOutput sets where Say[] and friends write.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.out = w
	}
}

// WithDisplay sets the sink for Show[].
func WithDisplay(d ops.Display) Option {
	return func(rt *Runtime) {
		rt.display = d
	}
}

// WithInputs sets the bindings read by Input["key"].
func WithInputs(in map[string]value.Value) Option {
	return func(rt *Runtime) {
		rt.inputs = in
	}
}

// WithIndexDSN sets where search indexes are stored.
func WithIndexDSN(dsn string) Option {
	return func(rt *Runtime) {
		rt.indexDSN = dsn
	}
}

// WithModel sets the model new sessions start with, as if by Use[].
func WithModel(model string) Option {
	return func(rt *Runtime) {
		rt.model = model
	}
}

// WithSeed makes PasteRandom[] deterministic.
func WithSeed(seed int64) Option {
	return func(rt *Runtime) {
		rt.rand = rand.New(rand.NewSource(seed))
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// New creates a new Runtime with the given options.
// By default every built-in operation is registered and no inference
// backend is configured.
func New(opts ...Option) *Runtime {
	reg := ops.NewRegistry()
	ops.RegisterDefaults(reg)

	rt := &Runtime{
		registry: reg,
		backend:  backend.Unavailable{},
		out:      io.Discard,
		inputs:   map[string]value.Value{},
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		runID:    "cli",
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Run parses and executes a program against a fresh session.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	return rt.NewSession().Run(ctx, source, filename)
}

// Check parses and statically validates a program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, err := parse(source, filename)
	if err != nil {
		var de *DiagnosticError
		if errors.As(err, &de) {
			return de.Diagnostics
		}
		return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ESyntax, err.Error(), nil, "")}
	}
	return validator.Validate(program)
}

// Format parses and formats a program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, err := parse(source, filename)
	if err != nil {
		return "", err
	}
	return formatter.Format(program), nil
}

// Session is a persistent evaluation session. State carries over between
// calls to Run, and a fault in one call does not end the session.
type Session struct {
	rt    *Runtime
	state *session.State
}

// NewSession starts a session with an empty state.
func (rt *Runtime) NewSession() *Session {
	state := session.New()
	state.DefaultModel = rt.model
	state.ActiveModel = rt.model
	return &Session{rt: rt, state: state}
}

// State returns the session's state.
func (s *Session) State() *session.State {
	return s.state
}

// Run parses and executes source in the session.
func (s *Session) Run(ctx context.Context, source, filename string) (*Result, error) {
	program, err := parse(source, filename)
	if err != nil {
		return &Result{State: s.state}, err
	}

	res, err := evaluator.Execute(ctx, program, s.state, s.rt.execOptions())
	out := &Result{State: s.state}
	if res != nil {
		out.Value = res.Value
		out.Output = res.Output
		out.Halted = res.Halted
		out.Exited = res.Exited
	}
	return out, err
}

// Close releases the session's search indexes.
func (s *Session) Close() error {
	return s.state.Reset()
}

func (rt *Runtime) execOptions() evaluator.ExecOptions {
	return evaluator.ExecOptions{
		Registry: rt.registry,
		Backend:  rt.backend,
		Out:      rt.out,
		Display:  rt.display,
		Inputs:   rt.inputs,
		IndexDSN: rt.indexDSN,
		Rand:     rt.rand,
		Trace:    rt.trace,
		RunID:    rt.runID,
	}
}

// parse runs the parser on source with the trailing newline the grammar
// expects, and turns syntax errors into explained faults.
func parse(source, filename string) (*ast.Program, error) {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	program, err := parser.Parse(source, filename)
	if err != nil {
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			f := suggest.Explain(source, se)
			if f.Span != nil && f.Span.File == "" {
				f.Span.File = filename
			}
			return nil, &DiagnosticError{
				Diagnostics: []diagnostics.Diagnostic{f.Diagnostic()},
				Fault:       f,
			}
		}
		return nil, err
	}
	return program, nil
}

// DiagnosticError reports a program that failed before evaluation began.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
	Fault       *fault.Fault
}

func (e *DiagnosticError) Error() string {
	if e.Fault != nil {
		return e.Fault.Message
	}
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *DiagnosticError) Unwrap() error {
	if e.Fault == nil {
		return nil
	}
	return e.Fault
}
