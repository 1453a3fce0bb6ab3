package marshal

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// HostInvoker adapts one Go callable so scripts can call it. It marshals
// script arguments in, invokes through reflection, and marshals the result
// back out.
//
// Arity rules follow the bridge's calling convention: extra arguments to a
// non-variadic target fail before the call runs, missing trailing arguments
// are tolerated with a warning and arrive as zero values.
type HostInvoker struct {
	reg     *Registry
	name    string
	fn      reflect.Value
	md      *descriptor.MethodDescriptor
	params  []Codec
	varargs *arrayCodec
	ret     Codec
}

// NewHostInvoker builds an invoker for fn, which must match md. Codec
// resolution happens here so registration surfaces unsupported signatures
// eagerly.
func NewHostInvoker(reg *Registry, name string, fn reflect.Value, md *descriptor.MethodDescriptor) (*HostInvoker, error) {
	if fn.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseRegistration, "target is not a function")
	}

	inv := &HostInvoker{reg: reg, name: name, fn: fn, md: md}

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

// Name returns the script-facing name of the callable.
func (h *HostInvoker) Name() string {
	return h.name
}

// Invoke is the engine-facing entry point, shaped to plug into
// Engine.NewGoFunction directly.
func (h *HostInvoker) Invoke(this engine.Value, args []engine.Value) (engine.Value, error) {
	eng := h.reg.eng
	sc := engine.NewScope(eng)
	defer sc.Release()

	if !h.md.Variadic && len(args) > len(h.params) {
		return nil, errors.ArgumentCount(h.name, len(h.params), len(args))
	}
	if len(args) < h.md.MinArgs() {
		engine.Logger().Warn("call with missing arguments, missing values are zero",
			zap.String("method", h.name),
			zap.Int("expected", h.md.MinArgs()),
			zap.Int("received", len(args)))
	}

	goArgs := make([]reflect.Value, 0, len(h.md.Params))
	for i, c := range h.params {
		pt := h.md.ParamTypes[i]
		if i >= len(args) {
			goArgs = append(goArgs, reflect.Zero(pt))
			continue
		}
		goVal, err := c.Read(sc, args[i], []string{h.name, h.md.ParamName(i)})
		if err != nil {
			return nil, err
		}
		arg := reflect.New(pt).Elem()
		if err := assign(arg, goVal); err != nil {
			return nil, err
		}
		// A refined descriptor may marshal through a wider type than the
		// target declares; narrow back before the call.
		if want := h.fn.Type().In(i); arg.Type() != want {
			arg, err = coerce(arg, want)
			if err != nil {
				return nil, errors.ArgumentMarshal([]string{h.name, h.md.ParamName(i)}, c.Kind().String(), err)
			}
		}
		goArgs = append(goArgs, arg)
	}

	if h.varargs != nil {
		last := len(h.md.Params) - 1
		tail, err := h.varargs.ReadExpanded(sc, args, len(h.params), []string{h.name, h.md.ParamName(last)})
		if err != nil {
			return nil, err
		}
		tv := reflect.ValueOf(tail)
		if want := h.fn.Type().In(h.fn.Type().NumIn() - 1); tv.Type() != want {
			tv, err = coerce(tv, want)
			if err != nil {
				return nil, errors.ArgumentMarshal([]string{h.name, h.md.ParamName(last)}, h.varargs.Kind().String(), err)
			}
		}
		for i := 0; i < tv.Len(); i++ {
			goArgs = append(goArgs, tv.Index(i))
		}
	}

	results := h.fn.Call(goArgs)

	var retVal reflect.Value
	if h.md.HasErrOut {
		errIdx := len(results) - 1
		if errv := results[errIdx]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
		results = results[:errIdx]
	}
	if len(results) > 0 {
		retVal = results[0]
	}

	if h.ret.Kind() == descriptor.KindVoid {
		return nil, nil
	}

	var goRet any
	if retVal.IsValid() {
		goRet = retVal.Interface()
	}
	out, err := h.ret.Write(sc, goRet, []string{h.name, "return"})
	if err != nil {
		return nil, err
	}
	sc.Forget(out)
	return out, nil
}

// coerce converts v to want, element-wise for slices. Used when a refined
// parameter descriptor marshalled through the boxed []any representation.
func coerce(v reflect.Value, want reflect.Type) (reflect.Value, error) {
	if v.Type() == want {
		return v, nil
	}
	out := reflect.New(want).Elem()
	if v.Kind() == reflect.Slice && want.Kind() == reflect.Slice {
		s := reflect.MakeSlice(want, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			if err := assign(s.Index(i), v.Index(i).Interface()); err != nil {
				return reflect.Value{}, err
			}
		}
		out.Set(s)
		return out, nil
	}
	if err := assign(out, v.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}
