package bridge

import (
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/marshal"
)

// RegisterHostObject exposes every exported method of obj to scripts as a
// global object. Method names are uncapitalized on the script side, so
// Compute becomes compute. Signatures are validated here: one unsupported
// method fails the whole registration and nothing is published.
func (c *Context) RegisterHostObject(name string, obj any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("register host object"); err != nil {
		return err
	}

	rv := reflect.ValueOf(obj)
	if !rv.IsValid() {
		return errors.InvalidInput(errors.PhaseRegistration, "nil host object")
	}
	t := rv.Type()
	if t.NumMethod() == 0 {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "host object has no exported methods"))
	}

	type boundMethod struct {
		prop string
		inv  *marshal.HostInvoker
	}
	var methods []boundMethod
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		md, err := descriptor.DescribeMethod(m)
		if err != nil {
			return errors.Registration(name+"."+m.Name, err)
		}
		prop := uncapitalize(m.Name)
		inv, err := marshal.NewHostInvoker(c.reg, name+"."+prop, rv.Method(i), md)
		if err != nil {
			return errors.Registration(name+"."+m.Name, err)
		}
		methods = append(methods, boundMethod{prop: prop, inv: inv})
	}

	sc := engine.NewScope(c.eng)
	defer sc.Release()

	scriptObj := sc.Track(c.eng.NewObject())
	for _, m := range methods {
		fn := sc.Track(c.eng.NewGoFunction(m.inv.Name(), m.inv.Invoke))
		if err := c.eng.SetProperty(scriptObj, m.prop, fn); err != nil {
			return err
		}
	}
	return c.eng.SetGlobal(name, scriptObj)
}

// RegisterHostFunc exposes one Go function to scripts as a global.
func (c *Context) RegisterHostFunc(name string, fn any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("register host func"); err != nil {
		return err
	}

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target is not a function"))
	}
	md, err := descriptor.DescribeFunc(name, t)
	if err != nil {
		return errors.Registration(name, err)
	}
	inv, err := marshal.NewHostInvoker(c.reg, name, reflect.ValueOf(fn), md)
	if err != nil {
		return errors.Registration(name, err)
	}
	return c.publishHostFunc(name, inv)
}

// RegisterHostFuncWithDescriptor exposes fn to scripts using a caller
// supplied signature descriptor instead of one derived from reflection. The
// descriptor carries what the runtime type erased, such as the boxed element
// kind behind an []any parameter; see MethodDescriptor.RefineParam.
func (c *Context) RegisterHostFuncWithDescriptor(name string, fn any, md *descriptor.MethodDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("register host func"); err != nil {
		return err
	}

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "target is not a function"))
	}
	if md == nil {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "nil method descriptor"))
	}
	if len(md.Params) != t.NumIn() || md.Variadic != t.IsVariadic() {
		return errors.Registration(name,
			errors.InvalidInput(errors.PhaseRegistration, "descriptor does not match the function signature"))
	}
	inv, err := marshal.NewHostInvoker(c.reg, name, reflect.ValueOf(fn), md)
	if err != nil {
		return errors.Registration(name, err)
	}
	return c.publishHostFunc(name, inv)
}

func (c *Context) publishHostFunc(name string, inv *marshal.HostInvoker) error {
	fnVal := c.eng.NewGoFunction(name, inv.Invoke)
	err := c.eng.SetGlobal(name, fnVal)
	c.eng.Release(fnVal)
	return err
}

func uncapitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
