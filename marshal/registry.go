package marshal

import (
	"reflect"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// Codec converts values of one descriptor kind between the Go side and the
// script side.
//
// Read turns a script value into a Go value. The script value is borrowed:
// codecs never release it, and any derived values they pull out of the
// engine are tracked in the call scope. Write turns a Go value into a script
// value tracked in the call scope; callers that need the result to outlive
// the scope forget it explicitly.
type Codec interface {
	Kind() descriptor.Kind
	Read(sc *engine.Scope, v engine.Value, path []string) (any, error)
	Write(sc *engine.Scope, v any, path []string) (engine.Value, error)
}

// Scheduler defers work onto the bridge's execution context. Completions of
// asynchronous results are never delivered inline from interpreter
// callbacks; they wait in the pending queue until the next drain.
type Scheduler interface {
	Enqueue(fn func())
}

// Registry builds codecs for type descriptors against one engine. A registry
// is bound to the engine for its whole life, like the engine itself it is
// confined to the bridge's execution context.
type Registry struct {
	eng     engine.Engine
	sched   Scheduler
	objects *ObjectTable

	// root holds values that must live as long as the bridge: script
	// functions captured by Go callables, opaque script references.
	root *engine.Scope
}

// NewRegistry creates a codec registry bound to eng. The scheduler receives
// deferred async completions; the root scope owns bridge-lifetime values.
func NewRegistry(eng engine.Engine, sched Scheduler, root *engine.Scope) *Registry {
	return &Registry{
		eng:     eng,
		sched:   sched,
		objects: NewObjectTable(),
		root:    root,
	}
}

// Engine returns the engine this registry marshals for.
func (r *Registry) Engine() engine.Engine {
	return r.eng
}

// Objects returns the opaque host object table.
func (r *Registry) Objects() *ObjectTable {
	return r.objects
}

// For returns the codec for d. The Go type t refines the descriptor where
// the kind alone is not enough: function signatures, slice element types,
// opaque object identity. A nil t selects the canonical Go type for the
// kind.
func (r *Registry) For(d *descriptor.Descriptor, t reflect.Type) (Codec, error) {
	switch d.Kind {
	case descriptor.KindVoid:
		return voidCodec{}, nil
	case descriptor.KindBool:
		return boolCodec{}, nil
	case descriptor.KindByte:
		return intCodec{kind: descriptor.KindByte, min: -1 << 7, max: 1<<7 - 1}, nil
	case descriptor.KindShort:
		return intCodec{kind: descriptor.KindShort, min: -1 << 15, max: 1<<15 - 1}, nil
	case descriptor.KindInt:
		return intCodec{kind: descriptor.KindInt, min: -1 << 31, max: 1<<31 - 1}, nil
	case descriptor.KindLong:
		return intCodec{kind: descriptor.KindLong, full: true}, nil
	case descriptor.KindFloat:
		return floatCodec{kind: descriptor.KindFloat, narrow: true}, nil
	case descriptor.KindDouble:
		return floatCodec{kind: descriptor.KindDouble}, nil
	case descriptor.KindString:
		return stringCodec{nullable: d.Nullable}, nil
	case descriptor.KindJSON:
		return jsonCodec{}, nil
	case descriptor.KindArray, descriptor.KindList:
		return r.arrayFor(d, t)
	case descriptor.KindFunction:
		return r.functionFor(d, t)
	case descriptor.KindAsyncResult:
		return r.asyncFor(d, t)
	case descriptor.KindObject:
		return &objectCodec{reg: r, goType: t}, nil
	default:
		return nil, errors.Unsupported(errors.PhaseResolve, "kind "+d.Kind.String())
	}
}

// ForType resolves the descriptor of t and returns its codec.
func (r *Registry) ForType(t reflect.Type) (Codec, error) {
	d, err := descriptor.Resolve(t)
	if err != nil {
		return nil, err
	}
	return r.For(d, t)
}

// ForValue resolves a codec from a live Go value, used by operations that
// accept untyped arguments. A nil value marshals as null.
func (r *Registry) ForValue(v any) (Codec, error) {
	if v == nil {
		return &objectCodec{reg: r}, nil
	}
	return r.ForType(reflect.TypeOf(v))
}

func (r *Registry) arrayFor(d *descriptor.Descriptor, t reflect.Type) (*arrayCodec, error) {
	elemDesc := d.Elem
	if elemDesc == nil {
		elemDesc = descriptor.Object()
	}

	var elemType reflect.Type
	sliceType := anySliceType
	if t != nil && t.Kind() == reflect.Slice {
		elemType = t.Elem()
		sliceType = t
	}

	elem, err := r.For(elemDesc, elemType)
	if err != nil {
		return nil, err
	}
	return &arrayCodec{
		kind:      d.Kind,
		elem:      elem,
		sliceType: sliceType,
	}, nil
}

func (r *Registry) asyncFor(d *descriptor.Descriptor, t reflect.Type) (Codec, error) {
	elemDesc := d.Elem
	if elemDesc == nil {
		elemDesc = descriptor.Object()
	}
	elem, err := r.For(elemDesc, nil)
	if err != nil {
		return nil, err
	}
	if r.sched == nil {
		return nil, errors.Unsupported(errors.PhaseResolve, "async results without a scheduler")
	}
	return &asyncCodec{reg: r, elem: elem}, nil
}

var (
	anySliceType = reflect.TypeOf([]any(nil))
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)
