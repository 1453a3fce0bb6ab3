package luaengine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// Engine is the stack-based backend on gopher-lua. Every foreign call runs
// through the Lua argument stack: push callee, push arguments, protected call,
// pop the result. The neutral Value surface hides that discipline from the
// bridge core.
type Engine struct {
	L      *lua.LState
	live   atomic.Int64
	closed bool
}

type config struct {
	safeLibs bool
}

// Option configures the backend.
type Option func(*config)

// WithSafeLibraries opens only the base, table, string and math libraries,
// leaving io and os out of the interpreter.
func WithSafeLibraries() Option {
	return func(c *config) {
		c.safeLibs = true
	}
}

// New creates a gopher-lua backed engine.
func New(opts ...Option) *Engine {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var L *lua.LState
	if cfg.safeLibs {
		L = lua.NewState(lua.Options{SkipOpenLibs: true})
		for _, lib := range []struct {
			name string
			open lua.LGFunction
		}{
			{lua.LoadLibName, lua.OpenPackage},
			{lua.BaseLibName, lua.OpenBase},
			{lua.TabLibName, lua.OpenTable},
			{lua.StringLibName, lua.OpenString},
			{lua.MathLibName, lua.OpenMath},
		} {
			L.Push(L.NewFunction(lib.open))
			L.Push(lua.LString(lib.name))
			L.Call(1, 0)
		}
	} else {
		L = lua.NewState()
	}

	return &Engine{L: L}
}

// State exposes the underlying interpreter for host code that needs
// backend-specific features. The bridge core never calls this.
func (e *Engine) State() *lua.LState {
	return e.L
}

func (e *Engine) Name() string { return "lua" }

// Eval runs src as a chunk. A chunk that wants a completion value ends with
// a return statement, matching Lua convention.
func (e *Engine) Eval(src string) (engine.Value, error) {
	fn, err := e.L.LoadString(src)
	if err != nil {
		return nil, e.translate(err)
	}

	base := e.L.GetTop()
	e.L.Push(fn)
	if err := e.L.PCall(0, lua.MultRet, nil); err != nil {
		e.L.SetTop(base)
		return nil, e.translate(err)
	}

	ret := engine.Value(lua.LNil)
	if e.L.GetTop() > base {
		ret = e.L.Get(base + 1)
	}
	e.L.SetTop(base)
	return e.Acquire(ret), nil
}

func (e *Engine) Global(name string) (engine.Value, bool) {
	v := e.L.GetGlobal(name)
	if v == lua.LNil {
		return nil, false
	}
	return e.Acquire(v), true
}

func (e *Engine) SetGlobal(name string, v engine.Value) error {
	e.L.SetGlobal(name, toLua(v))
	return nil
}

func (e *Engine) DeleteGlobal(name string) error {
	e.L.SetGlobal(name, lua.LNil)
	return nil
}

func (e *Engine) NewFunctionValue(paramNames []string, body string) (engine.Value, error) {
	src := "return function(" + strings.Join(paramNames, ", ") + ")\n" + body + "\nend"
	return e.Eval(src)
}

func (e *Engine) GetProperty(obj engine.Value, key string) (engine.Value, error) {
	t, err := e.table(obj)
	if err != nil {
		return nil, err
	}
	return e.Acquire(e.L.GetField(t, key)), nil
}

func (e *Engine) SetProperty(obj engine.Value, key string, v engine.Value) error {
	t, err := e.table(obj)
	if err != nil {
		return err
	}
	e.L.SetField(t, key, toLua(v))
	return nil
}

func (e *Engine) HasProperty(obj engine.Value, key string) bool {
	t, ok := toLua(obj).(*lua.LTable)
	if !ok {
		return false
	}
	return e.L.GetField(t, key) != lua.LNil
}

// Call pushes fn and args on the interpreter stack and runs a protected
// call. The receiver is ignored: bridged object methods follow the dot
// convention, functions stored in table fields that do not take self.
func (e *Engine) Call(fn, this engine.Value, args []engine.Value) (engine.Value, error) {
	lfn := toLua(fn)
	if lfn == nil || lfn.Type() != lua.LTFunction {
		return nil, errors.TypeMismatch(errors.PhaseInvoke, nil, luaTypeName(fn), "Function")
	}

	base := e.L.GetTop()
	e.L.Push(lfn)
	nargs := 0
	for _, a := range args {
		lv := toLua(a)
		if lv == nil {
			lv = lua.LNil
		}
		e.L.Push(lv)
		nargs++
	}

	if err := e.L.PCall(nargs, 1, nil); err != nil {
		e.L.SetTop(base)
		return nil, e.translate(err)
	}

	ret := e.L.Get(-1)
	e.L.Pop(1)
	return e.Acquire(ret), nil
}

func (e *Engine) IsCallable(v engine.Value) bool {
	lv := toLua(v)
	return lv != nil && lv.Type() == lua.LTFunction
}

func (e *Engine) NewObject() engine.Value {
	return e.Acquire(e.L.NewTable())
}

func (e *Engine) NewArray(n int) engine.Value {
	return e.Acquire(e.L.CreateTable(n, 0))
}

func (e *Engine) NewGoFunction(name string, fn engine.GoFunc) engine.Value {
	wrapper := e.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		args := make([]engine.Value, 0, n)
		for i := 1; i <= n; i++ {
			args = append(args, e.Acquire(L.Get(i)))
		}
		defer func() {
			for _, a := range args {
				e.Release(a)
			}
		}()

		res, err := fn(nil, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if res == nil {
			return 0
		}
		L.Push(toLua(res))
		e.Release(res)
		return 1
	})
	return e.Acquire(wrapper)
}

func (e *Engine) Bool(b bool) engine.Value {
	return e.Acquire(lua.LBool(b))
}

func (e *Engine) Int(i int64) engine.Value {
	return e.Acquire(lua.LNumber(i))
}

func (e *Engine) Float(f float64) engine.Value {
	return e.Acquire(lua.LNumber(f))
}

func (e *Engine) String(s string) engine.Value {
	return e.Acquire(lua.LString(s))
}

func (e *Engine) Null() engine.Value {
	return e.Acquire(lua.LNil)
}

// Undefined maps to nil, Lua's single absent value.
func (e *Engine) Undefined() engine.Value {
	return e.Acquire(lua.LNil)
}

func (e *Engine) ArrayGet(arr engine.Value, i int) (engine.Value, error) {
	t, err := e.table(arr)
	if err != nil {
		return nil, err
	}
	return e.Acquire(e.L.RawGetInt(t, i+1)), nil
}

func (e *Engine) ArraySet(arr engine.Value, i int, v engine.Value) error {
	t, err := e.table(arr)
	if err != nil {
		return err
	}
	e.L.RawSetInt(t, i+1, toLua(v))
	return nil
}

func (e *Engine) ArrayLen(arr engine.Value) int {
	t, ok := toLua(arr).(*lua.LTable)
	if !ok {
		return 0
	}
	return t.Len()
}

func (e *Engine) IsArray(v engine.Value) bool {
	_, ok := toLua(v).(*lua.LTable)
	return ok
}

func (e *Engine) IsNull(v engine.Value) bool {
	lv := toLua(v)
	return lv == nil || lv == lua.LNil
}

// IsUndefined is always false: Lua folds null and undefined into nil,
// which IsNull reports.
func (e *Engine) IsUndefined(v engine.Value) bool {
	return false
}

func (e *Engine) IsObject(v engine.Value) bool {
	_, ok := toLua(v).(*lua.LTable)
	return ok
}

func (e *Engine) ToBool(v engine.Value) (bool, error) {
	if b, ok := toLua(v).(lua.LBool); ok {
		return bool(b), nil
	}
	return false, errors.TypeMismatch(errors.PhaseMarshal, nil, luaTypeName(v), "Bool")
}

func (e *Engine) ToInt(v engine.Value) (int64, error) {
	n, ok := toLua(v).(lua.LNumber)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, luaTypeName(v), "Int")
	}
	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errors.Overflow(nil, f, "Int")
	}
	return int64(f), nil
}

func (e *Engine) ToFloat(v engine.Value) (float64, error) {
	if n, ok := toLua(v).(lua.LNumber); ok {
		return float64(n), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, nil, luaTypeName(v), "Double")
}

func (e *Engine) ToString(v engine.Value) (string, error) {
	if s, ok := toLua(v).(lua.LString); ok {
		return string(s), nil
	}
	return "", errors.TypeMismatch(errors.PhaseMarshal, nil, luaTypeName(v), "String")
}

// IsThenable reports whether v is a table carrying a callable "then" field.
// Lua has no native promises; async bridging uses the same continuation
// protocol as the handle backend, expressed as plain tables.
func (e *Engine) IsThenable(v engine.Value) bool {
	t, ok := toLua(v).(*lua.LTable)
	if !ok {
		return false
	}
	then := e.L.GetField(t, "then")
	return then.Type() == lua.LTFunction
}

func (e *Engine) EncodeJSON(v engine.Value) (string, error) {
	goVal, err := luaToGo(toLua(v), 0)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(goVal)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMarshal, errors.KindArgumentMarshal, err, "json encode")
	}
	return string(raw), nil
}

func (e *Engine) DecodeJSON(text string) (engine.Value, error) {
	var goVal any
	if err := json.Unmarshal([]byte(text), &goVal); err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindArgumentMarshal, err, "json decode")
	}
	return e.Acquire(goToLua(e.L, goVal)), nil
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

// DrainMicrotasks is a no-op: the interpreter has no internal job queue, all
// deferred completions live in the bridge's pending queue.
func (e *Engine) DrainMicrotasks() error {
	return nil
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.L.Close()
	return nil
}

func (e *Engine) table(v engine.Value) (*lua.LTable, error) {
	if t, ok := toLua(v).(*lua.LTable); ok {
		return t, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseMarshal, nil, luaTypeName(v), "Object")
}

func (e *Engine) translate(err error) error {
	if ae, ok := err.(*lua.ApiError); ok {
		msg := ae.Object.String()
		if s, ok := ae.Object.(lua.LString); ok {
			msg = string(s)
		}
		return errors.NewScriptError(msg, ae.StackTrace, msg)
	}
	return err
}

const maxTableDepth = 32

// luaToGo converts a Lua value into the Go shape json.Marshal understands.
// Tables with a positive sequence length become slices, everything else a
// string-keyed map.
func luaToGo(v lua.LValue, depth int) (any, error) {
	if depth > maxTableDepth {
		return nil, errors.InvalidInput(errors.PhaseMarshal, "table nesting too deep")
	}

	switch lv := v.(type) {
	case *lua.LNilType, nil:
		return nil, nil
	case lua.LBool:
		return bool(lv), nil
	case lua.LNumber:
		f := float64(lv)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(lv), nil
	case *lua.LTable:
		if n := lv.Len(); n > 0 {
			out := make([]any, 0, n)
			var convErr error
			for i := 1; i <= n; i++ {
				item, err := luaToGo(lv.RawGetInt(i), depth+1)
				if err != nil {
					convErr = err
					break
				}
				out = append(out, item)
			}
			if convErr != nil {
				return nil, convErr
			}
			return out, nil
		}
		out := make(map[string]any)
		var convErr error
		lv.ForEach(func(k, val lua.LValue) {
			if convErr != nil {
				return
			}
			key, ok := k.(lua.LString)
			if !ok {
				convErr = errors.InvalidInput(errors.PhaseMarshal, fmt.Sprintf("non-string table key %s", k.Type()))
				return
			}
			item, err := luaToGo(val, depth+1)
			if err != nil {
				convErr = err
				return
			}
			out[string(key)] = item
		})
		if convErr != nil {
			return nil, convErr
		}
		return out, nil
	default:
		return nil, errors.InvalidInput(errors.PhaseMarshal, fmt.Sprintf("value of type %s has no JSON form", v.Type()))
	}
}

func goToLua(L *lua.LState, v any) lua.LValue {
	switch gv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(gv)
	case int64:
		return lua.LNumber(gv)
	case float64:
		return lua.LNumber(gv)
	case string:
		return lua.LString(gv)
	case []any:
		t := L.CreateTable(len(gv), 0)
		for i, item := range gv {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(gv))
		for k, item := range gv {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

func toLua(v engine.Value) lua.LValue {
	if v == nil {
		return nil
	}
	return v.(lua.LValue)
}

func luaTypeName(v engine.Value) string {
	lv := toLua(v)
	if lv == nil {
		return "<nil>"
	}
	return lv.Type().String()
}

var _ engine.Engine = (*Engine)(nil)
