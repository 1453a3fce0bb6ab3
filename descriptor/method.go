package descriptor

import (
	"reflect"
	"strconv"

	"github.com/wippyai/script-bridge/errors"
)

var anySliceType = reflect.TypeOf([]any(nil))

// MethodDescriptor describes one invocable signature: parameter and return
// descriptors plus the reflected Go types needed to rebuild call arguments.
// Built once at registration time; codecs derived from it are never rebuilt
// per call.
type MethodDescriptor struct {
	Name       string
	Params     []*Descriptor
	ParamTypes []reflect.Type
	Return     *Descriptor
	ReturnType reflect.Type
	Variadic   bool
	HasErrOut  bool // trailing error return reports callee failure, not a value
}

// DescribeFunc derives a MethodDescriptor from a func type. Supported result
// shapes: none, (T), (error), (T, error).
func DescribeFunc(name string, t reflect.Type) (*MethodDescriptor, error) {
	if t == nil || t.Kind() != reflect.Func {
		return nil, errors.Resolution([]string{name}, typeName(t), "target is not a function")
	}

	md := &MethodDescriptor{
		Name:     name,
		Variadic: t.IsVariadic(),
	}

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		var (
			d   *Descriptor
			err error
		)
		if md.Variadic && i == t.NumIn()-1 {
			// The collector parameter: classify by its element.
			elem, elemErr := ElementOf(in)
			if elemErr != nil {
				return nil, errors.Registration(name, elemErr)
			}
			d = ArrayOf(elem)
			err = nil
		} else {
			d, err = Resolve(in)
		}
		if err != nil {
			return nil, errors.Registration(name, err)
		}
		md.Params = append(md.Params, d)
		md.ParamTypes = append(md.ParamTypes, in)
	}

	switch t.NumOut() {
	case 0:
		md.Return = Primitive(KindVoid)
	case 1:
		if t.Out(0) == errorType {
			md.Return = Primitive(KindVoid)
			md.HasErrOut = true
		} else {
			d, err := Resolve(t.Out(0))
			if err != nil {
				return nil, errors.Registration(name, err)
			}
			md.Return = d
			md.ReturnType = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, errors.Resolution([]string{name}, t.String(), "second result must be error")
		}
		d, err := Resolve(t.Out(0))
		if err != nil {
			return nil, errors.Registration(name, err)
		}
		md.Return = d
		md.ReturnType = t.Out(0)
		md.HasErrOut = true
	default:
		return nil, errors.Resolution([]string{name}, t.String(), "too many results")
	}

	return md, nil
}

// DescribeMethod derives a MethodDescriptor from a reflected method,
// skipping the receiver.
func DescribeMethod(m reflect.Method) (*MethodDescriptor, error) {
	full, err := DescribeFunc(m.Name, m.Type)
	if err != nil {
		return nil, err
	}
	if len(full.Params) > 0 {
		full.Params = full.Params[1:]
		full.ParamTypes = full.ParamTypes[1:]
	}
	return full, nil
}

// ParamName returns the diagnostic label for parameter i.
func (md *MethodDescriptor) ParamName(i int) string {
	return "arg" + strconv.Itoa(i)
}

// MinArgs returns the number of declared fixed parameters; the variadic
// collector does not count.
func (md *MethodDescriptor) MinArgs() int {
	if md.Variadic {
		return len(md.Params) - 1
	}
	return len(md.Params)
}

// RefineParam installs richer element information for parameter i, standing
// in for generic signature data the raw runtime type erased. It applies the
// boxed-array correction: when the refined element is boxed but reflection
// reported a primitive-element array, the boxed array representation wins
// over the reported type.
func (md *MethodDescriptor) RefineParam(i int, elem *Descriptor) *MethodDescriptor {
	if i < 0 || i >= len(md.Params) {
		return md
	}
	p := md.Params[i]
	if !p.Kind.IsCompound() {
		return md
	}
	refined := *p
	refined.Elem = elem
	refined.Name = displayName(p.Kind, elem)
	md.Params[i] = &refined

	if elem.Boxed && i < len(md.ParamTypes) && isPrimitiveArray(md.ParamTypes[i]) {
		md.ParamTypes[i] = anySliceType
	}
	return md
}

// RefineReturn installs richer element information for the return slot.
func (md *MethodDescriptor) RefineReturn(elem *Descriptor) *MethodDescriptor {
	if md.Return == nil || !md.Return.Kind.IsCompound() {
		return md
	}
	refined := *md.Return
	refined.Elem = elem
	refined.Name = displayName(md.Return.Kind, elem)
	md.Return = &refined
	return md
}

func isPrimitiveArray(t reflect.Type) bool {
	if t == nil || (t.Kind() != reflect.Slice && t.Kind() != reflect.Array) {
		return false
	}
	switch t.Elem().Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int, reflect.Int32,
		reflect.Int64, reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
