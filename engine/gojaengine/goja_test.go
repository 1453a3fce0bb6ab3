package gojaengine

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

	v, err := e.Eval("6 * 7")
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

func TestEvalScriptError(t *testing.T) {
	e := New()
	defer e.Close()

	_, err := e.Eval(`throw new Error("boom")`)
	if err == nil {
		t.Fatal("expected error")
	}

	var se *errors.ScriptError
	if !stderrors.As(err, &se) {
		t.Fatalf("expected ScriptError, got %T", err)
	}
	if se.Message != "boom" {
		t.Fatalf("expected message boom, got %q", se.Message)
	}
	if se.Stack == "" {
		t.Fatal("expected a stack trace")
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

func TestCallNonCallable(t *testing.T) {
	e := New()
	defer e.Close()

	v := e.Int(1)
	defer e.Release(v)

	if _, err := e.Call(v, nil, nil); err == nil {
		t.Fatal("expected error calling a number")
	}
	if e.IsCallable(v) {
		t.Fatal("number reported callable")
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

	v, err := e.Eval("double(21)")
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

	v, err := e.Eval(`(function() { try { fail(); return "no error" } catch (err) { return String(err.message || err) } })()`)
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

	if !e.IsArray(arr) {
		t.Fatal("array not recognized")
	}
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

	f, err := e.Eval("1.5")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(f)
	if _, err := e.ToInt(f); err == nil {
		t.Fatal("fractional number converted to int")
	}
}

func TestThenable(t *testing.T) {
	e := New()
	defer e.Close()

	p, err := e.Eval("Promise.resolve(1)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(p)
	if !e.IsThenable(p) {
		t.Fatal("promise not reported thenable")
	}

	o := e.NewObject()
	defer e.Release(o)
	if e.IsThenable(o) {
		t.Fatal("plain object reported thenable")
	}
}

func TestDrainMicrotasks(t *testing.T) {
	e := New()
	defer e.Close()

	if _, err := e.Eval("var out = 0; Promise.resolve(42).then(function(v) { out = v })"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if err := e.DrainMicrotasks(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	v, err := e.Eval("out")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	defer e.Release(v)
	n, _ := e.ToInt(v)
	if n != 42 {
		t.Fatalf("expected 42 after drain, got %d", n)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	e := New()
	defer e.Close()

	v, err := e.DecodeJSON(`{"a":[1,2,3],"b":"x"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer e.Release(v)

	text, err := e.EncodeJSON(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `{"a":[1,2,3],"b":"x"}` {
		t.Fatalf("unexpected round trip: %s", text)
	}
}

func TestHandleBalance(t *testing.T) {
	e := New()
	defer e.Close()

	for i := 0; i < 100; i++ {
		v, err := e.Eval("({x: 1})")
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
