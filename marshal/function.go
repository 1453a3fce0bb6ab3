package marshal

import (
	"reflect"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// functionCodec converts callables in both directions. Reading produces a Go
// func value backed by a script invoker; writing wraps a Go callable in a
// host invoker the engine can call.
type functionCodec struct {
	reg    *Registry
	goType reflect.Type
	md     *descriptor.MethodDescriptor
}

func (r *Registry) functionFor(d *descriptor.Descriptor, t reflect.Type) (Codec, error) {
	c := &functionCodec{reg: r, goType: t}
	if t != nil && t.Kind() == reflect.Func {
		md, err := descriptor.DescribeFunc(d.Name, t)
		if err != nil {
			return nil, err
		}
		c.md = md
	}
	return c, nil
}

func (c *functionCodec) Kind() descriptor.Kind { return descriptor.KindFunction }

// Read turns a script function into a Go func of the declared type. The
// function value is retained for the bridge's lifetime so the Go side may
// call it long after the marshalling call returns.
func (c *functionCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	if eng.IsNull(v) || eng.IsUndefined(v) {
		return nil, nil
	}
	if c.goType == nil || c.goType.Kind() != reflect.Func {
		return nil, errors.Unsupported(errors.PhaseMarshal, "reading a callable without a func parameter type")
	}
	if !eng.IsCallable(v) {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, "script value", "Function")
	}

	held := c.reg.root.Track(eng.Acquire(v))
	inv, err := NewScriptInvoker(c.reg, pathTail(path), held, nil, c.md)
	if err != nil {
		return nil, err
	}
	return inv.Bind(c.goType).Interface(), nil
}

// Write turns a Go callable into a script function. Plain func values are
// wrapped directly; any other value is probed for a single callable method
// named Invoke.
func (c *functionCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	eng := sc.Engine()
	if v == nil {
		return sc.Track(eng.Null()), nil
	}

	fn := reflect.ValueOf(v)
	if fn.Kind() != reflect.Func {
		m := fn.MethodByName("Invoke")
		if !m.IsValid() {
			return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), "Function")
		}
		fn = m
	}

	md := c.md
	if md == nil || md.ParamTypes == nil || !sameFuncShape(md, fn.Type()) {
		var err error
		md, err = descriptor.DescribeFunc(pathTail(path), fn.Type())
		if err != nil {
			return nil, err
		}
	}

	inv, err := NewHostInvoker(c.reg, pathTail(path), fn, md)
	if err != nil {
		return nil, err
	}
	return sc.Track(eng.NewGoFunction(inv.Name(), inv.Invoke)), nil
}

func sameFuncShape(md *descriptor.MethodDescriptor, t reflect.Type) bool {
	if len(md.ParamTypes) != t.NumIn() {
		return false
	}
	for i, pt := range md.ParamTypes {
		if pt != t.In(i) {
			return false
		}
	}
	return true
}
