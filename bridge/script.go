package bridge

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/marshal"
)

// BindScriptObject binds the global script object name to target, a pointer
// to a struct whose exported func-typed fields stand for the object's
// methods. Field Compute binds to property compute.
//
// The binding is eagerly checked: every declared method must exist on the
// object and be callable, and every failure is reported together in one
// error. Nothing is bound unless all checks pass.
func (c *Context) BindScriptObject(name string, target any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("bind script object"); err != nil {
		return err
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target must be a pointer to a struct"))
	}
	st := rv.Elem()

	obj, ok := c.eng.Global(name)
	if !ok {
		return errors.NotFound(errors.PhaseRegistration, "script object", name)
	}
	if !c.eng.IsObject(obj) {
		c.eng.Release(obj)
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "global is not an object"))
	}

	if c.eng.IsThenable(obj) {
		c.logger().Warn("script object looks like a pending promise; binding the promise, not its value",
			zap.String("object", name))
	}

	type binding struct {
		field reflect.Value
		prop  string
		md    *descriptor.MethodDescriptor
	}
	var (
		bindings []binding
		problems []string
	)

	stType := st.Type()
	for i := 0; i < stType.NumField(); i++ {
		f := stType.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		prop := uncapitalize(f.Name)

		if !c.eng.HasProperty(obj, prop) {
			problems = append(problems, fmt.Sprintf("%s: no such property", prop))
			continue
		}
		pv, err := c.eng.GetProperty(obj, prop)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", prop, err))
			continue
		}
		callable := c.eng.IsCallable(pv)
		c.eng.Release(pv)
		if !callable {
			problems = append(problems, fmt.Sprintf("%s: property is not callable", prop))
			continue
		}

		md, err := descriptor.DescribeFunc(prop, f.Type)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", prop, err))
			continue
		}
		bindings = append(bindings, binding{field: st.Field(i), prop: prop, md: md})
	}

	if len(problems) > 0 {
		c.eng.Release(obj)
		return errors.New(errors.PhaseRegistration, errors.KindResolution).
			Path(name).
			Detail(strings.Join(problems, "; ")).
			Build()
	}
	if len(bindings) == 0 {
		c.eng.Release(obj)
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target declares no func fields"))
	}

	c.root.Track(obj)
	for _, b := range bindings {
		fnVal, err := c.eng.GetProperty(obj, b.prop)
		if err != nil {
			return err
		}
		c.root.Track(fnVal)

		inv, err := marshal.NewScriptInvoker(c.reg, name+"."+b.prop, fnVal, obj, b.md)
		if err != nil {
			return errors.Registration(name+"."+b.prop, err)
		}
		b.field.Set(inv.Bind(b.field.Type()))
	}
	return nil
}

// BindScriptObjectLazy binds like BindScriptObject but skips the eager
// checks: the global object and its methods may be defined after binding.
// Each method resolves on its first call and stays resolved afterwards; a
// failed resolution surfaces from the call itself and is retried next time.
func (c *Context) BindScriptObjectLazy(name string, target any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("bind script object"); err != nil {
		return err
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target must be a pointer to a struct"))
	}
	st := rv.Elem()

	bound := 0
	stType := st.Type()
	for i := 0; i < stType.NumField(); i++ {
		f := stType.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		prop := uncapitalize(f.Name)
		md, err := descriptor.DescribeFunc(prop, f.Type)
		if err != nil {
			return errors.Registration(name+"."+prop, err)
		}
		st.Field(i).Set(c.lazyScriptMethod(name, prop, f.Type, md))
		bound++
	}
	if bound == 0 {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target declares no func fields"))
	}
	return nil
}

// lazyScriptMethod defers property resolution to the first invocation.
// Resolution failures follow the Bind convention: they fill the trailing
// error result when the signature has one and panic otherwise.
func (c *Context) lazyScriptMethod(object, prop string, ft reflect.Type, md *descriptor.MethodDescriptor) reflect.Value {
	var (
		mu    sync.Mutex
		bound reflect.Value
	)
	resolve := func() (reflect.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		if bound.IsValid() {
			return bound, nil
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.ensureOpen("call script method"); err != nil {
			return reflect.Value{}, err
		}
		obj, ok := c.eng.Global(object)
		if !ok {
			return reflect.Value{}, errors.NotFound(errors.PhaseInvoke, "script object", object)
		}
		if !c.eng.IsObject(obj) {
			c.eng.Release(obj)
			return reflect.Value{}, errors.Registration(object,
				errors.InvalidInput(errors.PhaseInvoke, "global is not an object"))
		}
		fnVal, err := c.eng.GetProperty(obj, prop)
		if err != nil {
			c.eng.Release(obj)
			return reflect.Value{}, err
		}
		if !c.eng.IsCallable(fnVal) {
			c.eng.Release(fnVal)
			c.eng.Release(obj)
			return reflect.Value{}, errors.UnresolvableIdentity(object, prop)
		}

		c.root.Track(obj)
		c.root.Track(fnVal)
		inv, err := marshal.NewScriptInvoker(c.reg, object+"."+prop, fnVal, obj, md)
		if err != nil {
			return reflect.Value{}, errors.Registration(object+"."+prop, err)
		}
		bound = inv.Bind(ft)
		return bound, nil
	}

	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		fn, err := resolve()
		if err != nil {
			if !md.HasErrOut {
				panic(err)
			}
			out := make([]reflect.Value, ft.NumOut())
			for i := range out {
				out[i] = reflect.Zero(ft.Out(i))
			}
			out[len(out)-1] = reflect.ValueOf(&err).Elem()
			return out
		}
		if ft.IsVariadic() {
			return fn.CallSlice(args)
		}
		return fn.Call(args)
	})
}

// BindScriptFunc binds the global script function name into *fnPtr, which
// must point at a func variable.
func (c *Context) BindScriptFunc(name string, fnPtr any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("bind script func"); err != nil {
		return err
	}

	v, ok := c.eng.Global(name)
	if !ok {
		return errors.NotFound(errors.PhaseRegistration, "script function", name)
	}
	return c.bindFuncLocked(name, v, nil, fnPtr)
}

// NewFunction compiles a function from parameter names and a body, then
// binds it into *fnPtr like BindScriptFunc.
func (c *Context) NewFunction(fnPtr any, paramNames []string, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("new function"); err != nil {
		return err
	}

	v, err := c.eng.NewFunctionValue(paramNames, body)
	if err != nil {
		return err
	}
	return c.bindFuncLocked("<anonymous>", v, nil, fnPtr)
}

// bindFuncLocked takes ownership of fnVal: on success it lives in the root
// scope, on failure it is released.
func (c *Context) bindFuncLocked(name string, fnVal, this engine.Value, fnPtr any) error {
	rv := reflect.ValueOf(fnPtr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Func {
		c.eng.Release(fnVal)
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target must be a pointer to a func"))
	}
	if !c.eng.IsCallable(fnVal) {
		c.eng.Release(fnVal)
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "global is not callable"))
	}

	md, err := descriptor.DescribeFunc(name, rv.Elem().Type())
	if err != nil {
		c.eng.Release(fnVal)
		return errors.Registration(name, err)
	}

	c.root.Track(fnVal)
	inv, err := marshal.NewScriptInvoker(c.reg, name, fnVal, this, md)
	if err != nil {
		return errors.Registration(name, err)
	}
	rv.Elem().Set(inv.Bind(rv.Elem().Type()))
	return nil
}

// CallFunction invokes the global script function name with args, storing
// the converted result through out when out is a non-nil pointer.
func (c *Context) CallFunction(name string, out any, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("call function"); err != nil {
		return err
	}

	fn, ok := c.eng.Global(name)
	if !ok {
		return errors.NotFound(errors.PhaseInvoke, "script function", name)
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()
	sc.Track(fn)

	return c.callLocked(sc, name, fn, nil, out, args)
}

// CallMethod invokes method on the global script object, storing the
// converted result through out when out is a non-nil pointer.
func (c *Context) CallMethod(object, method string, out any, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("call method"); err != nil {
		return err
	}

	obj, ok := c.eng.Global(object)
	if !ok {
		return errors.NotFound(errors.PhaseInvoke, "script object", object)
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()
	sc.Track(obj)

	fn, err := c.eng.GetProperty(obj, method)
	if err != nil {
		return err
	}
	sc.Track(fn)
	if !c.eng.IsCallable(fn) {
		return errors.UnresolvableIdentity(object, method)
	}

	return c.callLocked(sc, object+"."+method, fn, obj, out, args)
}

func (c *Context) callLocked(sc *engine.Scope, label string, fn, this engine.Value, out any, args []any) error {
	vals := make([]engine.Value, 0, len(args))
	for i, arg := range args {
		codec, err := c.reg.ForValue(arg)
		if err != nil {
			return err
		}
		v, err := codec.Write(sc, arg, []string{label, fmt.Sprintf("arg%d", i)})
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}

	res, err := c.eng.Call(fn, this, vals)
	if err != nil {
		return err
	}
	sc.Track(res)

	if out == nil {
		return nil
	}
	ov := reflect.ValueOf(out)
	if ov.Kind() != reflect.Ptr || ov.IsNil() {
		return errors.InvalidInput(errors.PhaseInvoke, "out must be a non-nil pointer")
	}

	codec, err := c.reg.ForType(ov.Elem().Type())
	if err != nil {
		return err
	}
	goVal, err := codec.Read(sc, res, []string{label, "return"})
	if err != nil {
		return err
	}
	return marshal.Assign(ov.Elem(), goVal)
}
