package marshal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/values"
)

// asyncCodec bridges asynchronous results. Script-side the representation is
// the continuation protocol: an object whose "then" property accepts a
// fulfillment and a rejection callback. Host-side it is *values.Future.
//
// Completions never run inline. Settling a future enqueues the delivery on
// the scheduler, so both callbacks and marshalling execute on the bridge's
// execution context during the next pending-queue drain.
type asyncCodec struct {
	reg  *Registry
	elem Codec
}

func (c *asyncCodec) Kind() descriptor.Kind { return descriptor.KindAsyncResult }

// Read converts a script result into a future. A value that does not follow
// the continuation protocol resolves the future immediately with the value
// itself.
func (c *asyncCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	fut := values.NewFuture()

	if !eng.IsThenable(v) {
		if eng.IsNull(v) || eng.IsUndefined(v) {
			fut.Complete(nil)
			return fut, nil
		}
		goVal, err := c.elem.Read(sc, v, path)
		if err != nil {
			return nil, err
		}
		fut.Complete(goVal)
		return fut, nil
	}

	then, err := eng.GetProperty(v, "then")
	if err != nil {
		return nil, err
	}
	sc.Track(then)

	onFulfilled := eng.NewGoFunction("", func(this engine.Value, args []engine.Value) (engine.Value, error) {
		cbScope := engine.NewScope(eng)
		defer cbScope.Release()

		var result engine.Value
		if len(args) > 0 {
			result = args[0]
		} else {
			result = cbScope.Track(eng.Undefined())
		}
		goVal, err := c.elem.Read(cbScope, result, path)
		if err != nil {
			fut.Fail(err)
			return nil, nil
		}
		fut.Complete(goVal)
		return nil, nil
	})
	sc.Track(onFulfilled)

	onRejected := eng.NewGoFunction("", func(this engine.Value, args []engine.Value) (engine.Value, error) {
		msg := "rejected"
		var raw any
		if len(args) > 0 {
			raw = describeRejection(eng, args[0], &msg)
		}
		fut.Fail(errors.NewScriptError(msg, "", raw))
		return nil, nil
	})
	sc.Track(onRejected)

	res, err := eng.Call(then, v, []engine.Value{onFulfilled, onRejected})
	if err != nil {
		return nil, errors.ForeignInvocation(append(path, "then"), err)
	}
	sc.Track(res)
	return fut, nil
}

// Write converts a future into a script object following the continuation
// protocol. Callbacks registered before settlement are delivered on the
// drain that follows settlement; callbacks registered after are delivered on
// the next drain.
func (c *asyncCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	fut, ok := v.(*values.Future)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), "AsyncResult")
	}

	eng := sc.Engine()
	b := &futureBinding{reg: c.reg, elem: c.elem, fut: fut, path: path}

	obj := sc.Track(eng.NewObject())
	then := sc.Track(eng.NewGoFunction("then", func(this engine.Value, args []engine.Value) (engine.Value, error) {
		var onOK, onErr engine.Value
		if len(args) > 0 && eng.IsCallable(args[0]) {
			onOK = c.reg.root.Track(eng.Acquire(args[0]))
		}
		if len(args) > 1 && eng.IsCallable(args[1]) {
			onErr = c.reg.root.Track(eng.Acquire(args[1]))
		}
		b.register(onOK, onErr)
		return nil, nil
	}))
	if err := eng.SetProperty(obj, "then", then); err != nil {
		return nil, err
	}

	go func() {
		<-fut.Done()
		c.reg.sched.Enqueue(b.deliver)
	}()

	return obj, nil
}

type thenCallbacks struct {
	onOK  engine.Value
	onErr engine.Value
}

// futureBinding connects one written future to the callbacks scripts attach
// to it. deliver runs on the execution context during a drain.
type futureBinding struct {
	reg  *Registry
	elem Codec
	fut  *values.Future
	path []string

	mu        sync.Mutex
	cbs       []thenCallbacks
	delivered bool
}

func (b *futureBinding) register(onOK, onErr engine.Value) {
	b.mu.Lock()
	b.cbs = append(b.cbs, thenCallbacks{onOK: onOK, onErr: onErr})
	late := b.delivered
	b.mu.Unlock()

	// Registration after delivery gets its own deferred completion.
	if late {
		b.reg.sched.Enqueue(b.deliver)
	}
}

func (b *futureBinding) deliver() {
	val, futErr, settled := b.fut.Result()
	if !settled {
		return
	}

	b.mu.Lock()
	cbs := b.cbs
	b.cbs = nil
	b.delivered = true
	b.mu.Unlock()

	eng := b.reg.eng
	sc := engine.NewScope(eng)
	defer sc.Release()

	for _, cb := range cbs {
		if futErr == nil && cb.onOK != nil {
			out, err := b.elem.Write(sc, val, b.path)
			if err != nil {
				engine.Logger().Warn("async result value could not be marshalled",
					zap.Error(err))
				continue
			}
			if res, err := eng.Call(cb.onOK, nil, []engine.Value{out}); err != nil {
				engine.Logger().Warn("async fulfillment callback failed", zap.Error(err))
			} else {
				sc.Track(res)
			}
		}
		if futErr != nil && cb.onErr != nil {
			msg := sc.Track(eng.String(futErr.Error()))
			if res, err := eng.Call(cb.onErr, nil, []engine.Value{msg}); err != nil {
				engine.Logger().Warn("async rejection callback failed", zap.Error(err))
			} else {
				sc.Track(res)
			}
		}
		b.releaseCallbacks(cb)
	}
}

func (b *futureBinding) releaseCallbacks(cb thenCallbacks) {
	if cb.onOK != nil {
		b.reg.root.Forget(cb.onOK)
		b.reg.eng.Release(cb.onOK)
	}
	if cb.onErr != nil {
		b.reg.root.Forget(cb.onErr)
		b.reg.eng.Release(cb.onErr)
	}
}

func describeRejection(eng engine.Engine, v engine.Value, msg *string) any {
	if eng.IsObject(v) {
		if m, err := eng.GetProperty(v, "message"); err == nil {
			if s, err := eng.ToString(m); err == nil {
				*msg = s
			}
			eng.Release(m)
		}
	} else if s, err := eng.ToString(v); err == nil {
		*msg = s
	}
	if text, err := eng.EncodeJSON(v); err == nil {
		return text
	}
	return nil
}
