package marshal

import (
	"fmt"
	"math"
	"reflect"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/values"
)

type voidCodec struct{}

func (voidCodec) Kind() descriptor.Kind { return descriptor.KindVoid }

func (voidCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	return nil, nil
}

func (voidCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	return sc.Track(sc.Engine().Undefined()), nil
}

type boolCodec struct{}

func (boolCodec) Kind() descriptor.Kind { return descriptor.KindBool }

func (boolCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	b, err := sc.Engine().ToBool(v)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, "Bool", err)
	}
	return b, nil
}

func (boolCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Bool {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), "Bool")
	}
	return sc.Track(sc.Engine().Bool(rv.Bool())), nil
}

// intCodec covers the four signed integer widths. min and max bound the
// script-side value on read; full disables the check for the widest width.
type intCodec struct {
	kind     descriptor.Kind
	min, max int64
	full     bool
}

func (c intCodec) Kind() descriptor.Kind { return c.kind }

func (c intCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	n, err := sc.Engine().ToInt(v)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, c.kind.String(), err)
	}
	if !c.full && (n < c.min || n > c.max) {
		return nil, errors.Overflow(path, n, c.kind.String())
	}
	return n, nil
}

func (c intCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sc.Track(sc.Engine().Int(rv.Int())), nil
	default:
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), c.kind.String())
	}
}

type floatCodec struct {
	kind   descriptor.Kind
	narrow bool
}

func (c floatCodec) Kind() descriptor.Kind { return c.kind }

func (c floatCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	f, err := sc.Engine().ToFloat(v)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, c.kind.String(), err)
	}
	if c.narrow && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return nil, errors.Overflow(path, f, c.kind.String())
	}
	return f, nil
}

func (c floatCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return sc.Track(sc.Engine().Float(rv.Float())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sc.Track(sc.Engine().Float(float64(rv.Int()))), nil
	default:
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), c.kind.String())
	}
}

type stringCodec struct {
	nullable bool
}

func (stringCodec) Kind() descriptor.Kind { return descriptor.KindString }

func (c stringCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	if eng.IsNull(v) || eng.IsUndefined(v) {
		if c.nullable {
			return "", nil
		}
		return nil, errors.ArgumentMarshal(path, "String", fmt.Errorf("value is null"))
	}
	s, err := eng.ToString(v)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, "String", err)
	}
	return s, nil
}

func (stringCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), "String")
	}
	return sc.Track(sc.Engine().String(rv.String())), nil
}

// jsonCodec passes structured data through as raw JSON text, letting each
// side parse with its own tooling.
type jsonCodec struct{}

func (jsonCodec) Kind() descriptor.Kind { return descriptor.KindJSON }

func (jsonCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	if eng.IsUndefined(v) {
		return values.JSON(""), nil
	}
	text, err := eng.EncodeJSON(v)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, "JSON", err)
	}
	return values.JSON(text), nil
}

func (jsonCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, typeName(v), "JSON")
	}
	text := rv.String()
	eng := sc.Engine()
	if text == "" {
		return sc.Track(eng.Undefined()), nil
	}
	out, err := eng.DecodeJSON(text)
	if err != nil {
		return nil, errors.ArgumentMarshal(path, "JSON", err)
	}
	return sc.Track(out), nil
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
