package ops

import (
	"context"
	"errors"
	"io"
	"math/rand"

	"github.com/visionscript/vscript/pkg/backend"
	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/session"
	"github.com/visionscript/vscript/pkg/value"
)

// ErrExit is returned by the exit handler to request the end of the session.
var ErrExit = errors.New("exit requested")

// Handler implements one operation.
type Handler interface {
	Call(c *Context, args Args) (value.Value, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(c *Context, args Args) (value.Value, error)

// Call calls f(c, args).
func (f HandlerFunc) Call(c *Context, args Args) (value.Value, error) {
	return f(c, args)
}

// Context is what a handler sees of the running session.
type Context struct {
	Ctx     context.Context
	State   *session.State
	Backend backend.Backend
	Out     io.Writer
	Display Display
	// Import evaluates another source file in the same session.
	Import func(path string) error
	// IndexDSN is where search indexes are created; empty means in memory.
	IndexDSN string
	Rand     *rand.Rand
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return io.Discard
	}
	return c.Out
}

func (c *Context) backend() backend.Backend {
	if c.Backend == nil {
		return backend.Unavailable{}
	}
	return c.Backend
}

// Registry maps operations to handlers.
type Registry struct {
	handlers map[Op]Handler
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Op]Handler)}
}

// Register installs h for op, replacing any previous handler.
func (r *Registry) Register(op Op, h Handler) {
	r.handlers[op] = h
}

// Get retrieves the handler for op.
func (r *Registry) Get(op Op) Handler {
	return r.handlers[op]
}

// All returns all registered handlers.
func (r *Registry) All() map[Op]Handler {
	return r.handlers
}

// Dispatch runs the handler registered under the canonical name.
func (r *Registry) Dispatch(c *Context, name string, args Args) (value.Value, error) {
	op, ok := Parse(name)
	if !ok || op.IsControl() || r.handlers[op] == nil {
		return nil, fault.Unknown(name, nil)
	}
	return r.handlers[op].Call(c, args)
}

// RegisterDefaults adds every built-in operation.
func RegisterDefaults(r *Registry) {
	r.Register(OpLoad, HandlerFunc(load))
	r.Register(OpSave, HandlerFunc(save))
	r.Register(OpClassify, HandlerFunc(classify))
	r.Register(OpDetect, HandlerFunc(detect))
	r.Register(OpSegment, HandlerFunc(segment))
	r.Register(OpCutout, HandlerFunc(cutout))
	r.Register(OpCount, HandlerFunc(count))
	r.Register(OpCountInRegion, HandlerFunc(countInRegion))
	r.Register(OpReplace, HandlerFunc(replace))
	r.Register(OpShow, HandlerFunc(show))
	r.Register(OpTrain, HandlerFunc(train))
	r.Register(OpRead, HandlerFunc(read))
	r.Register(OpLabel, HandlerFunc(label))
	r.Register(OpCaption, HandlerFunc(caption))
	r.Register(OpContains, HandlerFunc(contains))
	r.Register(OpImport, HandlerFunc(importFile))
	r.Register(OpRotate, HandlerFunc(rotate))
	r.Register(OpGetColours, HandlerFunc(getColours))
	r.Register(OpGetText, HandlerFunc(getText))
	r.Register(OpGreyscale, HandlerFunc(greyscale))
	r.Register(OpSelect, HandlerFunc(selectDetection))
	r.Register(OpPaste, HandlerFunc(paste))
	r.Register(OpPasteRandom, HandlerFunc(pasteRandom))
	r.Register(OpResize, HandlerFunc(resize))
	r.Register(OpBlur, HandlerFunc(blur))
	r.Register(OpSetBrightness, HandlerFunc(setBrightness))
	r.Register(OpSearch, HandlerFunc(search))
	r.Register(OpSimilarity, HandlerFunc(similarity))
	r.Register(OpReadQR, HandlerFunc(readQR))
	r.Register(OpReset, HandlerFunc(reset))
	r.Register(OpUse, HandlerFunc(use))
	r.Register(OpHelp, HandlerFunc(help))
	r.Register(OpExit, HandlerFunc(exit))
}
