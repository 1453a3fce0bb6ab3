package luaengine

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

func TestEval(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.Eval("return 6 * 7")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(v)

	n, err := e.ToInt(v)
	if err != nil {
		t.Fatalf("to int: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
}

func TestEvalNoReturn(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.Eval("x = 1")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !e.IsNull(v) {
		t.Fatal("chunk without return produced a value")
	}
	e.Release(v)
}

func TestEvalScriptError(t *testing.T) {
	e := New()
	defer e.Close()

	_, err := e.Eval(`error("boom")`)
	if err == nil {
		t.Fatal("expected error")
	}

	var se *errors.ScriptError
	if !stderrors.As(err, &se) {
		t.Fatalf("expected ScriptError, got %T", err)
	}
	if !strings.Contains(se.Message, "boom") {
		t.Fatalf("expected message to contain boom, got %q", se.Message)
	}
}

func TestGlobals(t *testing.T) {
	e := New()
	defer e.Close()

	if _, ok := e.Global("missing"); ok {
		t.Fatal("missing global reported present")
	}

	v := e.String("hello")
	if err := e.SetGlobal("greeting", v); err != nil {
		t.Fatalf("set global: %v", err)
	}
	e.Release(v)

	got, ok := e.Global("greeting")
	if !ok {
		t.Fatal("greeting not found")
	}
	s, err := e.ToString(got)
	if err != nil {
		t.Fatalf("to string: %v", err)
	}
	e.Release(got)
	if s != "hello" {
		t.Fatalf("expected hello, got %q", s)
	}

	if err := e.DeleteGlobal("greeting"); err != nil {
		t.Fatalf("delete global: %v", err)
	}
	if _, ok := e.Global("greeting"); ok {
		t.Fatal("greeting still present after delete")
	}
}

func TestCall(t *testing.T) {
	e := New()
	defer e.Close()

	fn, err := e.NewFunctionValue([]string{"a", "b"}, "return a + b")
	if err != nil {
		t.Fatalf("new function: %v", err)
	}
	defer e.Release(fn)

	a, b := e.Int(40), e.Int(2)
	res, err := e.Call(fn, nil, []engine.Value{a, b})
	e.Release(a)
	e.Release(b)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	defer e.Release(res)

	n, err := e.ToInt(res)
	if err != nil {
		t.Fatalf("to int: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
}

func TestCallStackRestoredOnError(t *testing.T) {
	e := New()
	defer e.Close()

	fn, err := e.NewFunctionValue(nil, `error("bad")`)
	if err != nil {
		t.Fatalf("new function: %v", err)
	}
	defer e.Release(fn)

	top := e.L.GetTop()
	if _, err := e.Call(fn, nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if e.L.GetTop() != top {
		t.Fatalf("stack not restored: top %d, want %d", e.L.GetTop(), top)
	}
}

func TestGoFunction(t *testing.T) {
	e := New()
	defer e.Close()

	fn := e.NewGoFunction("double", func(this engine.Value, args []engine.Value) (engine.Value, error) {
		n, err := e.ToInt(args[0])
		if err != nil {
			return nil, err
		}
		return e.Int(n * 2), nil
	})
	if err := e.SetGlobal("double", fn); err != nil {
		t.Fatalf("set global: %v", err)
	}
	e.Release(fn)

	v, err := e.Eval("return double(21)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(v)

	n, _ := e.ToInt(v)
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
}

func TestGoFunctionError(t *testing.T) {
	e := New()
	defer e.Close()

	fn := e.NewGoFunction("fail", func(this engine.Value, args []engine.Value) (engine.Value, error) {
		return nil, fmt.Errorf("broken gadget")
	})
	if err := e.SetGlobal("fail", fn); err != nil {
		t.Fatalf("set global: %v", err)
	}
	e.Release(fn)

	v, err := e.Eval(`local ok, msg = pcall(fail); return tostring(msg)`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(v)

	s, _ := e.ToString(v)
	if !strings.Contains(s, "broken gadget") {
		t.Fatalf("expected host error text in %q", s)
	}
}

func TestObjectProperties(t *testing.T) {
	e := New()
	defer e.Close()

	obj := e.NewObject()
	defer e.Release(obj)

	name := e.String("widget")
	if err := e.SetProperty(obj, "name", name); err != nil {
		t.Fatalf("set property: %v", err)
	}
	e.Release(name)

	if !e.HasProperty(obj, "name") {
		t.Fatal("name not reported present")
	}
	if e.HasProperty(obj, "missing") {
		t.Fatal("missing reported present")
	}

	got, err := e.GetProperty(obj, "name")
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	defer e.Release(got)

	s, _ := e.ToString(got)
	if s != "widget" {
		t.Fatalf("expected widget, got %q", s)
	}
}

func TestArrays(t *testing.T) {
	e := New()
	defer e.Close()

	arr := e.NewArray(3)
	defer e.Release(arr)

	for i := 0; i < 3; i++ {
		v := e.Int(int64(i * 10))
		if err := e.ArraySet(arr, i, v); err != nil {
			t.Fatalf("set [%d]: %v", i, err)
		}
		e.Release(v)
	}
	if n := e.ArrayLen(arr); n != 3 {
		t.Fatalf("expected length 3, got %d", n)
	}

	v, err := e.ArrayGet(arr, 2)
	if err != nil {
		t.Fatalf("get [2]: %v", err)
	}
	defer e.Release(v)
	n, _ := e.ToInt(v)
	if n != 20 {
		t.Fatalf("expected 20, got %d", n)
	}
}

func TestConversionFailures(t *testing.T) {
	e := New()
	defer e.Close()

	s := e.String("nope")
	defer e.Release(s)

	if _, err := e.ToInt(s); err == nil {
		t.Fatal("string converted to int")
	}
	if _, err := e.ToBool(s); err == nil {
		t.Fatal("string converted to bool")
	}

	f := e.Float(1.5)
	defer e.Release(f)
	if _, err := e.ToInt(f); err == nil {
		t.Fatal("fractional number converted to int")
	}
}

func TestThenable(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.Eval(`local t = {}; t["then"] = function(onOk, onErr) onOk(1) end; return t`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(v)
	if !e.IsThenable(v) {
		t.Fatal("table with callable then not reported thenable")
	}

	o := e.NewObject()
	defer e.Release(o)
	if e.IsThenable(o) {
		t.Fatal("plain table reported thenable")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.DecodeJSON(`{"items":[1,2,3]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer e.Release(v)

	text, err := e.EncodeJSON(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `{"items":[1,2,3]}` {
		t.Fatalf("unexpected round trip: %s", text)
	}
}

func TestSafeLibraries(t *testing.T) {
	e := New(WithSafeLibraries())
	defer e.Close()

	if _, ok := e.Global("os"); ok {
		t.Fatal("os library present in safe mode")
	}
	if _, ok := e.Global("io"); ok {
		t.Fatal("io library present in safe mode")
	}
	if _, ok := e.Global("math"); !ok {
		t.Fatal("math library missing in safe mode")
	}
}

func TestHandleBalance(t *testing.T) {
	e := New()
	defer e.Close()

	for i := 0; i < 100; i++ {
		v, err := e.Eval("return {x = 1}")
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		p, err := e.GetProperty(v, "x")
		if err != nil {
			t.Fatalf("get property: %v", err)
		}
		e.Release(p)
		e.Release(v)
	}
	if n := e.LiveHandles(); n != 0 {
		t.Fatalf("expected 0 live handles, got %d", n)
	}
}
