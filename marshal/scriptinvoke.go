package marshal

import (
	"reflect"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// ScriptInvoker adapts one script callable so Go code can call it through a
// plain func value. It marshals Go arguments out, runs the call, and
// marshals the script result back in.
//
// A marshalling failure partway through the argument list releases every
// value already produced before reporting the error; the call never runs.
type ScriptInvoker struct {
	reg     *Registry
	name    string
	fn      engine.Value
	this    engine.Value
	md      *descriptor.MethodDescriptor
	params  []Codec
	varargs *arrayCodec
	ret     Codec
}

// NewScriptInvoker builds an invoker for the callable fn. Both fn and this
// must already be retained by the caller; the invoker borrows them for its
// whole life. Codec resolution happens eagerly.
func NewScriptInvoker(reg *Registry, name string, fn, this engine.Value, md *descriptor.MethodDescriptor) (*ScriptInvoker, error) {
	if !reg.eng.IsCallable(fn) {
		return nil, errors.UnresolvableIdentity("", name)
	}

	inv := &ScriptInvoker{reg: reg, name: name, fn: fn, this: this, md: md}

	fixed := len(md.Params)
	if md.Variadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		c, err := reg.For(md.Params[i], md.ParamTypes[i])
		if err != nil {
			return nil, errors.Registration(name, err)
		}
		inv.params = append(inv.params, c)
	}
	if md.Variadic {
		last := len(md.Params) - 1
		c, err := reg.arrayFor(md.Params[last], md.ParamTypes[last])
		if err != nil {
			return nil, errors.Registration(name, err)
		}
		inv.varargs = c
	}

	retDesc := md.Return
	if retDesc == nil {
		retDesc = descriptor.Primitive(descriptor.KindVoid)
	}
	ret, err := reg.For(retDesc, md.ReturnType)
	if err != nil {
		return nil, errors.Registration(name, err)
	}
	inv.ret = ret
	return inv, nil
}

// Name returns the script-side name of the callable.
func (s *ScriptInvoker) Name() string {
	return s.name
}

// Invoke calls the script function with Go arguments and returns the result
// converted to Go. Script exceptions come back as *errors.ScriptError.
func (s *ScriptInvoker) Invoke(goArgs []reflect.Value) (any, error) {
	eng := s.reg.eng
	sc := engine.NewScope(eng)
	defer sc.Release()

	args := make([]engine.Value, 0, len(goArgs))
	for i, c := range s.params {
		var in any
		if i < len(goArgs) {
			in = goArgs[i].Interface()
		}
		v, err := c.Write(sc, in, []string{s.name, s.md.ParamName(i)})
		if err != nil {
			return nil, errors.ArgumentMarshal([]string{s.name, s.md.ParamName(i)}, c.Kind().String(), err)
		}
		args = append(args, v)
	}

	if s.varargs != nil {
		last := len(s.md.Params) - 1
		if last < len(goArgs) {
			tail, err := s.varargs.WriteExpanded(sc, goArgs[last], []string{s.name, s.md.ParamName(last)}, args)
			if err != nil {
				return nil, err
			}
			args = tail
		}
	}

	res, err := eng.Call(s.fn, s.this, args)
	if err != nil {
		return nil, err
	}
	sc.Track(res)

	if s.ret.Kind() == descriptor.KindVoid {
		return nil, nil
	}
	return s.ret.Read(sc, res, []string{s.name, "return"})
}

// Bind produces a Go func of type ft that forwards to Invoke. When ft ends
// in an error result, script failures surface there; otherwise a failing
// call panics with the bridge error.
func (s *ScriptInvoker) Bind(ft reflect.Type) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		out, err := s.Invoke(in)

		results := make([]reflect.Value, 0, ft.NumOut())
		for i := 0; i < ft.NumOut(); i++ {
			ot := ft.Out(i)
			if s.md.HasErrOut && i == ft.NumOut()-1 {
				if err != nil {
					results = append(results, reflect.ValueOf(&err).Elem())
				} else {
					results = append(results, reflect.Zero(errorType))
				}
				continue
			}
			rv := reflect.New(ot).Elem()
			if err == nil && out != nil {
				if aerr := assign(rv, out); aerr != nil {
					err = aerr
					rv = reflect.Zero(ot)
				}
			}
			results = append(results, rv)
		}

		if err != nil && !s.md.HasErrOut {
			panic(err)
		}
		return results
	})
}
