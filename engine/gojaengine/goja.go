package gojaengine

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// Engine is the handle-based backend on goja. Script values are first-class
// goja.Value handles; invocation goes through goja callables rather than an
// argument stack.
type Engine struct {
	vm     *goja.Runtime
	live   atomic.Int64
	closed bool

	jsonStringify goja.Callable
	jsonParse     goja.Callable
}

type config struct {
	console bool
}

// Option configures the backend.
type Option func(*config)

// WithConsole installs a console object whose output is routed through the
// bridge logger.
func WithConsole() Option {
	return func(c *config) {
		c.console = true
	}
}

// New creates a goja-backed engine.
func New(opts ...Option) *Engine {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if cfg.console {
		registry := require.NewRegistry()
		registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(zapPrinter{}))
		registry.Enable(vm)
		console.Enable(vm)
	}

	e := &Engine{vm: vm}

	jsonObj := vm.Get("JSON").(*goja.Object)
	e.jsonStringify, _ = goja.AssertFunction(jsonObj.Get("stringify"))
	e.jsonParse, _ = goja.AssertFunction(jsonObj.Get("parse"))

	return e
}

type zapPrinter struct{}

func (zapPrinter) Log(s string)   { engine.Logger().Info(s, zap.String("source", "console")) }
func (zapPrinter) Warn(s string)  { engine.Logger().Warn(s, zap.String("source", "console")) }
func (zapPrinter) Error(s string) { engine.Logger().Error(s, zap.String("source", "console")) }

// Runtime exposes the underlying goja runtime for host code that needs
// backend-specific features. The bridge core never calls this.
func (e *Engine) Runtime() *goja.Runtime {
	return e.vm
}

func (e *Engine) Name() string { return "goja" }

func (e *Engine) Eval(src string) (engine.Value, error) {
	res, err := e.vm.RunString(src)
	if err != nil {
		return nil, e.translate(err)
	}
	return e.Acquire(res), nil
}

func (e *Engine) Global(name string) (engine.Value, bool) {
	v := e.vm.GlobalObject().Get(name)
	if v == nil {
		return nil, false
	}
	return e.Acquire(v), true
}

func (e *Engine) SetGlobal(name string, v engine.Value) error {
	return e.vm.GlobalObject().Set(name, toGoja(v))
}

func (e *Engine) DeleteGlobal(name string) error {
	return e.vm.GlobalObject().Delete(name)
}

func (e *Engine) NewFunctionValue(paramNames []string, body string) (engine.Value, error) {
	src := "(function(" + strings.Join(paramNames, ", ") + ") {\n" + body + "\n})"
	return e.Eval(src)
}

func (e *Engine) GetProperty(obj engine.Value, key string) (engine.Value, error) {
	o, err := e.object(obj)
	if err != nil {
		return nil, err
	}
	v := o.Get(key)
	if v == nil {
		v = goja.Undefined()
	}
	return e.Acquire(v), nil
}

func (e *Engine) SetProperty(obj engine.Value, key string, v engine.Value) error {
	o, err := e.object(obj)
	if err != nil {
		return err
	}
	return o.Set(key, toGoja(v))
}

func (e *Engine) HasProperty(obj engine.Value, key string) bool {
	o, ok := toGoja(obj).(*goja.Object)
	if !ok {
		return false
	}
	v := o.Get(key)
	return v != nil && !goja.IsUndefined(v)
}

func (e *Engine) Call(fn, this engine.Value, args []engine.Value) (engine.Value, error) {
	callable, ok := goja.AssertFunction(toGoja(fn))
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseInvoke, nil, "goja.Value", "Function")
	}

	gargs := make([]goja.Value, len(args))
	for i, a := range args {
		gargs[i] = toGoja(a)
	}

	thisVal := toGoja(this)
	if thisVal == nil {
		thisVal = goja.Undefined()
	}

	res, err := callable(thisVal, gargs...)
	if err != nil {
		return nil, e.translate(err)
	}
	return e.Acquire(res), nil
}

func (e *Engine) IsCallable(v engine.Value) bool {
	_, ok := goja.AssertFunction(toGoja(v))
	return ok
}

func (e *Engine) NewObject() engine.Value {
	return e.Acquire(e.vm.NewObject())
}

func (e *Engine) NewArray(n int) engine.Value {
	arr := e.vm.NewArray()
	if n > 0 {
		_ = arr.Set("length", n)
	}
	return e.Acquire(arr)
}

func (e *Engine) NewGoFunction(name string, fn engine.GoFunc) engine.Value {
	wrapper := func(call goja.FunctionCall) goja.Value {
		args := make([]engine.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = e.Acquire(a)
		}
		defer func() {
			for _, a := range args {
				e.Release(a)
			}
		}()

		res, err := fn(e.Acquire(call.This), args)
		e.Release(call.This)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		if res == nil {
			return goja.Undefined()
		}
		gv := toGoja(res)
		e.Release(res)
		return gv
	}

	v := e.vm.ToValue(wrapper)
	if name != "" {
		if o, ok := v.(*goja.Object); ok {
			_ = o.Set("name", name)
		}
	}
	return e.Acquire(v)
}

func (e *Engine) Bool(b bool) engine.Value    { return e.Acquire(e.vm.ToValue(b)) }
func (e *Engine) Int(i int64) engine.Value    { return e.Acquire(e.vm.ToValue(i)) }
func (e *Engine) Float(f float64) engine.Value { return e.Acquire(e.vm.ToValue(f)) }
func (e *Engine) String(s string) engine.Value { return e.Acquire(e.vm.ToValue(s)) }
func (e *Engine) Null() engine.Value           { return e.Acquire(goja.Null()) }
func (e *Engine) Undefined() engine.Value      { return e.Acquire(goja.Undefined()) }

func (e *Engine) ArrayGet(arr engine.Value, i int) (engine.Value, error) {
	o, err := e.object(arr)
	if err != nil {
		return nil, err
	}
	v := o.Get(strconv.Itoa(i))
	if v == nil {
		v = goja.Undefined()
	}
	return e.Acquire(v), nil
}

func (e *Engine) ArraySet(arr engine.Value, i int, v engine.Value) error {
	o, err := e.object(arr)
	if err != nil {
		return err
	}
	return o.Set(strconv.Itoa(i), toGoja(v))
}

func (e *Engine) ArrayLen(arr engine.Value) int {
	o, ok := toGoja(arr).(*goja.Object)
	if !ok {
		return 0
	}
	length := o.Get("length")
	if length == nil {
		return 0
	}
	return int(length.ToInteger())
}

func (e *Engine) IsArray(v engine.Value) bool {
	o, ok := toGoja(v).(*goja.Object)
	return ok && o.ClassName() == "Array"
}

func (e *Engine) IsNull(v engine.Value) bool {
	return goja.IsNull(toGoja(v))
}

func (e *Engine) IsUndefined(v engine.Value) bool {
	gv := toGoja(v)
	return gv == nil || goja.IsUndefined(gv)
}

func (e *Engine) IsObject(v engine.Value) bool {
	_, ok := toGoja(v).(*goja.Object)
	return ok
}

func (e *Engine) ToBool(v engine.Value) (bool, error) {
	if b, ok := toGoja(v).Export().(bool); ok {
		return b, nil
	}
	return false, errors.TypeMismatch(errors.PhaseMarshal, nil, exportTypeName(v), "Bool")
}

func (e *Engine) ToInt(v engine.Value) (int64, error) {
	switch x := toGoja(v).Export().(type) {
	case int64:
		return x, nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), nil
		}
		return 0, errors.Overflow(nil, x, "Int")
	default:
		return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, exportTypeName(v), "Int")
	}
}

func (e *Engine) ToFloat(v engine.Value) (float64, error) {
	switch x := toGoja(v).Export().(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, exportTypeName(v), "Double")
	}
}

func (e *Engine) ToString(v engine.Value) (string, error) {
	if s, ok := toGoja(v).Export().(string); ok {
		return s, nil
	}
	return "", errors.TypeMismatch(errors.PhaseMarshal, nil, exportTypeName(v), "String")
}

func (e *Engine) IsThenable(v engine.Value) bool {
	o, ok := toGoja(v).(*goja.Object)
	if !ok {
		return false
	}
	then := o.Get("then")
	if then == nil {
		return false
	}
	_, callable := goja.AssertFunction(then)
	return callable
}

func (e *Engine) EncodeJSON(v engine.Value) (string, error) {
	res, err := e.jsonStringify(goja.Undefined(), toGoja(v))
	if err != nil {
		return "", e.translate(err)
	}
	return res.String(), nil
}

func (e *Engine) DecodeJSON(text string) (engine.Value, error) {
	res, err := e.jsonParse(goja.Undefined(), e.vm.ToValue(text))
	if err != nil {
		return nil, e.translate(err)
	}
	return e.Acquire(res), nil
}

func (e *Engine) Acquire(v engine.Value) engine.Value {
	if v == nil {
		return nil
	}
	e.live.Add(1)
	return v
}

func (e *Engine) Release(v engine.Value) {
	if v == nil {
		return
	}
	e.live.Add(-1)
}

func (e *Engine) LiveHandles() int64 {
	return e.live.Load()
}

// DrainMicrotasks forces the runtime through an empty top-level entry, which
// is when goja runs queued promise reaction jobs.
func (e *Engine) DrainMicrotasks() error {
	_, err := e.vm.RunString("undefined")
	if err != nil {
		return e.translate(err)
	}
	return nil
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.vm = nil
	return nil
}

func (e *Engine) object(v engine.Value) (*goja.Object, error) {
	if o, ok := toGoja(v).(*goja.Object); ok {
		return o, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseMarshal, nil, exportTypeName(v), "Object")
}

// translate converts a goja failure into the bridge's script error carrier,
// preserving message and script stack.
func (e *Engine) translate(err error) error {
	if ex, ok := err.(*goja.Exception); ok {
		msg := exceptionMessage(ex)
		return errors.NewScriptError(msg, ex.String(), ex.Value().Export())
	}
	return err
}

func exceptionMessage(ex *goja.Exception) string {
	if o, ok := ex.Value().(*goja.Object); ok {
		if m := o.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return ex.Value().String()
}

func toGoja(v engine.Value) goja.Value {
	if v == nil {
		return nil
	}
	return v.(goja.Value)
}

func exportTypeName(v engine.Value) string {
	gv := toGoja(v)
	if gv == nil {
		return "<nil>"
	}
	if t := gv.ExportType(); t != nil {
		return t.String()
	}
	return "undefined"
}

var _ engine.Engine = (*Engine)(nil)
