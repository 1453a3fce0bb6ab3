package bridge

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/marshal"
)

// Context is the single entry point to one script engine instance. It owns
// the interpreter, the codec registry and the pending async queue, and
// serializes every operation: the engine underneath is single threaded.
//
// All methods except Close return a bridge_state error once the context is
// closed.
type Context struct {
	eng  engine.Engine
	reg  *marshal.Registry
	root *engine.Scope
	log  *zap.Logger

	mu     sync.Mutex
	closed bool

	queue pendingQueue
}

// pendingQueue holds deferred completions until the next drain. Settling
// goroutines append from outside the execution context, so it carries its
// own lock.
type pendingQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *pendingQueue) Enqueue(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *pendingQueue) take() []func() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	return fns
}

// Option configures a Context.
type Option func(*Context)

// WithLogger routes bridge diagnostics to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.log = l
	}
}

// New creates a bridge context owning eng. Closing the context closes the
// engine.
func New(eng engine.Engine, opts ...Option) *Context {
	c := &Context{
		eng:  eng,
		root: engine.NewScope(eng),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reg = marshal.NewRegistry(eng, &c.queue, c.root)
	return c
}

// Engine returns the underlying engine.
func (c *Context) Engine() engine.Engine {
	return c.eng
}

// logger resolves per call so a late engine.SetLogger reaches the context's
// own diagnostics too, not only the codec layer. WithLogger pins it instead.
func (c *Context) logger() *zap.Logger {
	if c.log != nil {
		return c.log
	}
	return engine.Logger()
}

func (c *Context) ensureOpen(op string) error {
	if c.closed {
		return errors.ContextClosed(op)
	}
	return nil
}

// Run evaluates src and discards the completion value.
func (c *Context) Run(src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("run"); err != nil {
		return err
	}

	v, err := c.eng.Eval(src)
	if err != nil {
		return err
	}
	c.eng.Release(v)
	return nil
}

// Evaluate runs src and converts the completion value to T.
func Evaluate[T any](c *Context, src string) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("evaluate"); err != nil {
		return zero, err
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()

	v, err := c.eng.Eval(src)
	if err != nil {
		return zero, err
	}
	sc.Track(v)

	t := reflect.TypeOf((*T)(nil)).Elem()
	codec, err := c.reg.ForType(t)
	if err != nil {
		return zero, err
	}
	goVal, err := codec.Read(sc, v, []string{"eval"})
	if err != nil {
		return zero, err
	}

	out := reflect.New(t).Elem()
	if err := marshal.Assign(out, goVal); err != nil {
		return zero, err
	}
	return out.Interface().(T), nil
}

// Assign marshals v and stores it under the global name.
func (c *Context) Assign(name string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("assign"); err != nil {
		return err
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()

	codec, err := c.reg.ForValue(v)
	if err != nil {
		return err
	}
	val, err := codec.Write(sc, v, []string{name})
	if err != nil {
		return err
	}
	return c.eng.SetGlobal(name, val)
}

// AssignScript evaluates src and stores its result under the global name.
// Unlike Assign the value never crosses into Go; it stays a script value.
func (c *Context) AssignScript(name, src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("assign script"); err != nil {
		return err
	}

	v, err := c.eng.Eval(src)
	if err != nil {
		return err
	}
	err = c.eng.SetGlobal(name, v)
	c.eng.Release(v)
	return err
}

// ConvertHostValue marshals v into its script representation without
// publishing it anywhere. The caller owns the returned handle and releases
// it through the engine when done.
func (c *Context) ConvertHostValue(v any) (engine.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("convert host value"); err != nil {
		return nil, err
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()

	codec, err := c.reg.ForValue(v)
	if err != nil {
		return nil, err
	}
	val, err := codec.Write(sc, v, []string{"value"})
	if err != nil {
		return nil, err
	}
	sc.Forget(val)
	return val, nil
}

// Delete removes the global name.
func (c *Context) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("delete"); err != nil {
		return err
	}
	return c.eng.DeleteGlobal(name)
}

// Copy aliases the global src under dst. Both names refer to the same
// script value afterwards.
func (c *Context) Copy(dst, src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("copy"); err != nil {
		return err
	}

	v, ok := c.eng.Global(src)
	if !ok {
		return errors.NotFound(errors.PhaseRuntime, "global", src)
	}
	err := c.eng.SetGlobal(dst, v)
	c.eng.Release(v)
	return err
}

// DrainPendingAsyncQueue runs the engine's internal job queue and the
// bridge's pending completions until both are empty. Nothing asynchronous
// progresses outside this call.
func (c *Context) DrainPendingAsyncQueue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("drain"); err != nil {
		return err
	}
	return c.drainLocked()
}

func (c *Context) drainLocked() error {
	for {
		if err := c.eng.DrainMicrotasks(); err != nil {
			return err
		}
		fns := c.queue.take()
		if len(fns) == 0 {
			return nil
		}
		for _, fn := range fns {
			fn()
		}
	}
}

// Close drains outstanding completions, releases every bridge-held value
// and shuts the engine down. Closing twice is harmless.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	if err := c.drainLocked(); err != nil {
		c.logger().Warn("drain during close failed", zap.Error(err))
	}

	c.closed = true
	c.root.Release()

	if n := c.eng.LiveHandles(); n != 0 {
		c.logger().Warn("engine handles still live at close",
			zap.Int64("count", n))
	}
	return c.eng.Close()
}
