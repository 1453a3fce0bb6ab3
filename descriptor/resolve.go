package descriptor

import (
	"reflect"

	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/values"
)

var (
	futureType = reflect.TypeOf((*values.Future)(nil))
	jsonType   = reflect.TypeOf(values.JSON(""))
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
)

// Resolve classifies a reflect.Type into a Descriptor. Only the raw runtime
// type is available here, so erased element types default to Object; callers
// holding richer signature information refine the result afterwards (see
// MethodDescriptor.RefineParam).
func Resolve(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return Primitive(KindVoid), nil
	}

	// Named wrapper types take precedence over their underlying kinds.
	switch t {
	case futureType:
		return AsyncOf(Object()), nil
	case jsonType:
		return &Descriptor{Kind: KindJSON, Nullable: true, Name: KindJSON.String()}, nil
	case anyType:
		return Object(), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Primitive(KindBool), nil
	case reflect.Int8:
		return Primitive(KindByte), nil
	case reflect.Int16:
		return Primitive(KindShort), nil
	case reflect.Int, reflect.Int32:
		return Primitive(KindInt), nil
	case reflect.Int64:
		return Primitive(KindLong), nil
	case reflect.Float32:
		return Primitive(KindFloat), nil
	case reflect.Float64:
		return Primitive(KindDouble), nil
	case reflect.String:
		return Primitive(KindString), nil

	case reflect.Slice, reflect.Array:
		elemType := t.Elem()
		if elemType == anyType {
			// No compile-time element type: structural list with erased element.
			return ListOf(Object()), nil
		}
		elem, err := Resolve(elemType)
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil

	case reflect.Func:
		return resolveFunction(t)

	case reflect.Interface:
		if sig, ok := callableEntry(t); ok {
			return resolveFunction(sig)
		}
		return Object(), nil

	case reflect.Pointer, reflect.Map, reflect.Struct:
		return Object(), nil

	default:
		return nil, errors.Resolution(nil, t.String(), "type cannot be classified for marshalling")
	}
}

func resolveFunction(sig reflect.Type) (*Descriptor, error) {
	d := &Descriptor{Kind: KindFunction, Nullable: true, Name: KindFunction.String()}
	if sig.NumOut() > 0 {
		out := sig.Out(0)
		if out != errorType {
			elem, err := Resolve(out)
			if err != nil {
				return nil, err
			}
			d.Elem = elem
			d.Name = displayName(KindFunction, elem)
		}
	}
	return d, nil
}

// callableEntry resolves the entry-point signature of a fixed-arity callable
// wrapper: a single-method interface whose method is named Invoke. The direct
// lookup is probed inside a recover guard, then the declared methods are
// scanned as a fallback; a probe failure is "unavailable", never an error.
func callableEntry(t reflect.Type) (reflect.Type, bool) {
	if m, ok := probeInvoke(t); ok {
		return m.Type, true
	}
	for i := 0; i < t.NumMethod(); i++ {
		if m := t.Method(i); m.Name == "Invoke" {
			return m.Type, true
		}
	}
	return nil, false
}

func probeInvoke(t reflect.Type) (m reflect.Method, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if t.NumMethod() != 1 {
		return reflect.Method{}, false
	}
	m, ok = t.MethodByName("Invoke")
	return m, ok
}

// ElementOf returns the element descriptor for the variadic tail of a method:
// the array's element type if resolvable, else the erased Object descriptor.
func ElementOf(arrayType reflect.Type) (*Descriptor, error) {
	if arrayType.Kind() != reflect.Slice && arrayType.Kind() != reflect.Array {
		return nil, errors.Resolution(nil, arrayType.String(), "variadic tail is not an array type")
	}
	if arrayType.Elem() == anyType {
		return Object(), nil
	}
	return Resolve(arrayType.Elem())
}
