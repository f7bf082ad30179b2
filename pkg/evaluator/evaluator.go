// Package evaluator implements the VisionScript tree evaluator.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/visionscript/vscript/pkg/alias"
	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/backend"
	"github.com/visionscript/vscript/pkg/diagnostics"
	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/ops"
	"github.com/visionscript/vscript/pkg/parser"
	"github.com/visionscript/vscript/pkg/session"
	"github.com/visionscript/vscript/pkg/suggest"
	"github.com/visionscript/vscript/pkg/value"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart    TraceEventType = "run_start"
	TraceRunEnd      TraceEventType = "run_end"
	TraceStmtStart   TraceEventType = "stmt_start"
	TraceStmtEnd     TraceEventType = "stmt_end"
	TraceOpStart     TraceEventType = "op_start"
	TraceOpEnd       TraceEventType = "op_end"
	TraceLoopStart   TraceEventType = "loop_start"
	TraceLoopEnd     TraceEventType = "loop_end"
	TraceFnCallStart TraceEventType = "fn_call_start"
	TraceFnCallEnd   TraceEventType = "fn_call_end"
	TraceHalt        TraceEventType = "halt"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	RunID     string            `json:"runId"`
	Event     TraceEventType    `json:"event"`
	Span      *ast.Span         `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// ExecOptions configures program execution.
type ExecOptions struct {
	Registry *ops.Registry
	Backend  backend.Backend
	Out      io.Writer
	Display  ops.Display
	// Inputs are the external bindings read by Input["key"].
	Inputs   map[string]value.Value
	IndexDSN string
	Rand     *rand.Rand
	Trace    func(event TraceEvent)
	RunID    string
	// MaxCallDepth bounds nested user function calls. Zero means
	// DefaultMaxCallDepth.
	MaxCallDepth int
}

// ExecResult holds the outcome of a program execution.
type ExecResult struct {
	Value  value.Value
	Output value.Value
	// Halted is set when a conditional guard was False and the rest of the
	// program was skipped.
	Halted bool
	// Exited is set when the program called Exit[].
	Exited bool
}

type evaluator struct {
	ctx    context.Context
	opts   ExecOptions
	state  *session.State
	opctx  *ops.Context
	file   string
	halted bool
	// loop is the innermost active directory loop.
	loop *session.LoopContext
	// importing holds the files currently being imported, shared with
	// nested evaluators.
	importing map[string]bool
	calls     *callBudget
}

func (ev *evaluator) emit(event TraceEventType, span *ast.Span) {
	ev.emitWithData(event, span, nil)
}

func (ev *evaluator) emitWithData(event TraceEventType, span *ast.Span, data map[string]string) {
	if ev.opts.Trace != nil {
		ev.opts.Trace(TraceEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			RunID:     ev.opts.RunID,
			Event:     event,
			Span:      span,
			Data:      data,
		})
	}
}

// Execute runs program against state. A nil state starts a fresh session.
// Faults are returned as errors; the caller decides whether they end the
// session.
func Execute(ctx context.Context, program *ast.Program, state *session.State, opts ExecOptions) (*ExecResult, error) {
	if state == nil {
		state = session.New()
	}
	if opts.Registry == nil {
		opts.Registry = ops.NewRegistry()
		ops.RegisterDefaults(opts.Registry)
	}
	ev := newEvaluator(ctx, state, opts, program.Span.File, make(map[string]bool), newCallBudget(opts.MaxCallDepth))

	span := program.Span
	ev.emit(TraceRunStart, &span)
	_, err := ev.executeBlock(program.Statements)
	ev.emit(TraceRunEnd, &span)

	res := &ExecResult{Value: state.Last, Output: state.Output, Halted: ev.halted}
	if errors.Is(err, ops.ErrExit) {
		res.Exited = true
		return res, nil
	}
	return res, err
}

// callFunction runs a stored function body within the call depth limit.
func (ev *evaluator) callFunction(name string, body []ast.Node, span ast.Span) (value.Value, error) {
	if err := ev.calls.enter(name, span); err != nil {
		return nil, err
	}
	defer ev.calls.leave()
	ev.emitWithData(TraceFnCallStart, &span, map[string]string{"fn": name})
	v, err := ev.executeBlock(body)
	ev.emitWithData(TraceFnCallEnd, &span, map[string]string{"fn": name})
	return v, err
}

func newEvaluator(ctx context.Context, state *session.State, opts ExecOptions, file string, importing map[string]bool, calls *callBudget) *evaluator {
	ev := &evaluator{
		ctx:       ctx,
		opts:      opts,
		state:     state,
		file:      file,
		importing: importing,
		calls:     calls,
	}
	ev.opctx = &ops.Context{
		Ctx:      ctx,
		State:    state,
		Backend:  opts.Backend,
		Out:      opts.Out,
		Display:  opts.Display,
		Import:   ev.importFile,
		IndexDSN: opts.IndexDSN,
		Rand:     opts.Rand,
	}
	return ev
}

// executeBlock evaluates statements in order and returns the value of the
// last one. It stops early once the program has halted.
func (ev *evaluator) executeBlock(stmts []ast.Node) (value.Value, error) {
	var lastVal value.Value
	for _, stmt := range stmts {
		if ev.halted {
			break
		}
		if _, ok := stmt.(*ast.Comment); ok {
			continue
		}
		span := stmt.NodeSpan()
		ev.emit(TraceStmtStart, &span)
		val, err := ev.evalExpr(stmt)
		if err != nil {
			return nil, err
		}
		lastVal = val
		ev.emit(TraceStmtEnd, &span)
	}
	return lastVal, nil
}

func (ev *evaluator) evalExpr(node ast.Node) (value.Value, error) {
	switch n := node.(type) {
	case *ast.IntLiteral:
		return value.NewInt(n.Value), nil

	case *ast.FloatLiteral:
		return value.NewFloat(n.Value), nil

	case *ast.BoolLiteral:
		return value.NewBool(n.Value), nil

	case *ast.StrLiteral:
		return value.NewString(n.Value), nil

	case *ast.Comment:
		return nil, nil

	case *ast.InputRef:
		v, ok := ev.opts.Inputs[n.Key]
		if !ok {
			return nil, fault.Missing("Input %s does not exist.", n.Key).WithSpan(n.Span)
		}
		return v, nil

	case *ast.ListExpr:
		items := make([]value.Value, 0, len(n.Elements))
		for _, elem := range n.Elements {
			v, err := ev.evalExpr(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return value.NewList(items), nil

	case *ast.Assignment:
		v, err := ev.evalExpr(n.Value)
		if err != nil {
			return nil, err
		}
		ev.state.Variables[n.Name] = v
		ev.state.Last = v
		return v, nil

	case *ast.Equality:
		left, err := ev.evalExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return value.NewBool(value.Equal(left, right)), nil

	case *ast.Negate:
		return ev.evalNegate(n)

	case *ast.Conditional:
		return ev.evalConditional(n)

	case *ast.Loop:
		return ev.evalLoop(n)

	case *ast.FunctionDef:
		ev.state.Functions[n.Name] = n.Body
		return nil, nil

	case *ast.FunctionCall:
		body, ok := ev.state.Functions[n.Name]
		if !ok {
			return nil, fault.Undefined(n.Name).WithSpan(n.Span)
		}
		return ev.callFunction(n.Name, body, n.Span)

	case *ast.Identifier:
		if v, ok := ev.state.Variables[n.Name]; ok {
			return v, nil
		}
		if body, ok := ev.state.Functions[n.Name]; ok {
			return ev.callFunction(n.Name, body, n.Span)
		}
		return nil, fault.Undefined(n.Name).WithSpan(n.Span)

	case *ast.OperationCall:
		return ev.evalOperation(n)
	}

	span := node.NodeSpan()
	return nil, &fault.Fault{
		Kind:    fault.ExternalOperation,
		Code:    diagnostics.EOp,
		Message: fmt.Sprintf("unsupported node: %s", node.Kind()),
		Span:    &span,
	}
}

func (ev *evaluator) evalNegate(n *ast.Negate) (value.Value, error) {
	v, err := ev.evalExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case nil:
		return value.NewBool(true), nil
	case value.Bool:
		return value.NewBool(!b.Value), nil
	}
	return nil, fault.External("not", fmt.Errorf("expected a boolean, got %s", value.TypeName(v))).WithSpan(n.Span)
}

// evalConditional runs the body when the guard holds. A False or absent
// guard halts the whole program, not just the body.
func (ev *evaluator) evalConditional(n *ast.Conditional) (value.Value, error) {
	prev := ev.state.Conditional
	cc := &session.ConditionalContext{Saved: ev.state.Last}
	ev.state.Conditional = cc
	defer func() { ev.state.Conditional = prev }()

	guard, err := ev.evalExpr(n.Guard)
	if err != nil {
		return nil, err
	}
	cc.Guard = guard
	if b, ok := guard.(value.Bool); guard == nil || (ok && !b.Value) {
		ev.halted = true
		span := n.Span
		ev.emit(TraceHalt, &span)
		return nil, nil
	}
	ev.state.Last = cc.Saved
	return ev.executeBlock(n.Body)
}

func (ev *evaluator) evalLoop(n *ast.Loop) (value.Value, error) {
	dirVal, err := ev.evalExpr(n.Dir)
	if err != nil {
		return nil, err
	}
	dir, ok := dirVal.(value.String)
	if !ok {
		return nil, fault.External("in", fmt.Errorf("expected a folder name, got %s", value.TypeName(dirVal))).WithSpan(n.Span)
	}
	files, err := ops.ListImages(dir.Value)
	if err != nil {
		if f, ok := fault.As(err); ok {
			return nil, f.WithSpan(n.Span)
		}
		return nil, fault.External("in", err).WithSpan(n.Span)
	}

	span := n.Span
	ev.emitWithData(TraceLoopStart, &span, map[string]string{"dir": dir.Value, "files": strconv.Itoa(len(files))})
	prev, prevLoop := ev.state.Loop, ev.loop
	lc := &session.LoopContext{Dir: dir.Value}
	ev.loop = lc
	var last value.Value
	for i, f := range files {
		if ev.halted {
			break
		}
		lc.Active = f
		lc.Remaining = files[i+1:]
		ev.state.Loop = lc
		last, err = ev.executeBlock(n.Body)
		if err != nil {
			break
		}
	}
	ev.state.Loop, ev.loop = prev, prevLoop
	ev.emit(TraceLoopEnd, &span)
	return last, err
}

func (ev *evaluator) evalOperation(n *ast.OperationCall) (value.Value, error) {
	name := alias.Resolve(n.Name)
	args := make(ops.Args, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := ev.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	ev.state.History = append(ev.state.History, name)
	span := n.Span
	ev.emitWithData(TraceOpStart, &span, map[string]string{"op": name})
	result, err := ev.opts.Registry.Dispatch(ev.opctx, name, args)
	ev.emitWithData(TraceOpEnd, &span, map[string]string{"op": name, "result": value.TypeName(result)})
	// Reset[] replaces the state, loop context included.
	if ev.loop != nil && ev.state.Loop == nil {
		ev.state.Loop = ev.loop
	}

	if err != nil {
		if errors.Is(err, ops.ErrExit) {
			return nil, err
		}
		if f, ok := fault.As(err); ok {
			if f.Kind == fault.UnknownFunction && f.Span == nil {
				surface := n.Surface
				if surface == "" {
					surface = n.Name
				}
				f = fault.Unknown(surface, suggest.Candidates(surface))
			}
			return nil, f.WithSpan(n.Span)
		}
		return nil, fault.External(name, err).WithSpan(n.Span)
	}

	if result != nil {
		ev.state.Last = result
		ev.state.Output = result
	}
	ev.state.LastFunctionType = name
	ev.state.LastFunctionArgs = args
	return result, nil
}

// importFile evaluates another source file against the same state. A halt
// inside the imported file ends that file only.
func (ev *evaluator) importFile(path string) error {
	if !filepath.IsAbs(path) && ev.file != "" {
		path = filepath.Join(filepath.Dir(ev.file), path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if ev.importing[abs] {
		return fmt.Errorf("import cycle through %s", path)
	}
	src, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fault.Missing("File %s does not exist.", path)
	}
	if err != nil {
		return err
	}
	prog, err := parser.Parse(string(src)+"\n", path)
	if err != nil {
		var se *parser.SyntaxError
		if errors.As(err, &se) {
			return suggest.Explain(string(src), se)
		}
		return err
	}

	ev.importing[abs] = true
	defer delete(ev.importing, abs)
	child := newEvaluator(ev.ctx, ev.state, ev.opts, path, ev.importing, ev.calls)
	child.loop = ev.loop
	_, err = child.executeBlock(prog.Statements)
	return err
}
