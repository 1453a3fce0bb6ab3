package marshal

import (
	"reflect"
	"strconv"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// arrayCodec converts between Go slices and script arrays. It also backs the
// expanded mode used for variadic parameters, where the slice maps to a run
// of individual call arguments instead of one array value.
type arrayCodec struct {
	kind      descriptor.Kind
	elem      Codec
	sliceType reflect.Type
}

func (c *arrayCodec) Kind() descriptor.Kind { return c.kind }

func (c *arrayCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	if eng.IsNull(v) || eng.IsUndefined(v) {
		return reflect.Zero(c.sliceType).Interface(), nil
	}
	if !eng.IsArray(v) {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, "script value", c.kind.String())
	}

	n := eng.ArrayLen(v)
	out := reflect.MakeSlice(c.sliceType, n, n)
	for i := 0; i < n; i++ {
		item, err := eng.ArrayGet(v, i)
		if err != nil {
			return nil, err
		}
		sc.Track(item)

		goItem, err := c.elem.Read(sc, item, append(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		if err := assign(out.Index(i), goItem); err != nil {
			return nil, errors.ArgumentMarshal(append(path, strconv.Itoa(i)), c.elem.Kind().String(), err)
		}
	}
	return out.Interface(), nil
}

func (c *arrayCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	eng := sc.Engine()
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() == reflect.Slice && rv.IsNil()) {
		return sc.Track(eng.Null()), nil
	}
	if rv.Kind() != reflect.Slice {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), c.kind.String())
	}

	n := rv.Len()
	arr := sc.Track(eng.NewArray(n))
	for i := 0; i < n; i++ {
		item, err := c.elem.Write(sc, rv.Index(i).Interface(), append(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		if err := eng.ArraySet(arr, i, item); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

// ReadExpanded collects the call arguments from position start onward into
// one slice, the inbound half of variadic flattening.
func (c *arrayCodec) ReadExpanded(sc *engine.Scope, args []engine.Value, start int, path []string) (any, error) {
	n := 0
	if start < len(args) {
		n = len(args) - start
	}
	out := reflect.MakeSlice(c.sliceType, n, n)
	for i := 0; i < n; i++ {
		goItem, err := c.elem.Read(sc, args[start+i], append(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		if err := assign(out.Index(i), goItem); err != nil {
			return nil, errors.ArgumentMarshal(append(path, strconv.Itoa(i)), c.elem.Kind().String(), err)
		}
	}
	return out.Interface(), nil
}

// WriteExpanded appends each slice element as its own call argument, the
// outbound half of variadic flattening.
func (c *arrayCodec) WriteExpanded(sc *engine.Scope, v reflect.Value, path []string, out []engine.Value) ([]engine.Value, error) {
	for i := 0; i < v.Len(); i++ {
		item, err := c.elem.Write(sc, v.Index(i).Interface(), append(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Assign stores a codec read result into dst, converting across assignable
// representations. Callers binding results into caller-declared slots use
// this instead of duplicating the conversion rules.
func Assign(dst reflect.Value, v any) error {
	return assign(dst, v)
}

// assign stores a codec read result into dst, converting across assignable
// representations (int64 into int32 parameters, nil into zero values).
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == dst.Type() {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Interface && rv.Type().Implements(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	return errors.TypeMismatch(errors.PhaseMarshal, nil, rv.Type().String(), dst.Type().String())
}
