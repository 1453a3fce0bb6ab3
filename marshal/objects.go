package marshal

import (
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/script-bridge/descriptor"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/errors"
)

// refProperty carries the table id on the script-side wrapper of a host
// object.
const refProperty = "__hostRef"

// ObjectTable assigns stable ids to host values handed to scripts as opaque
// references. Scripts see only the id; passing the wrapper back resolves to
// the identical Go value.
type ObjectTable struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]any
	ids     map[any]uint32
}

func NewObjectTable() *ObjectTable {
	return &ObjectTable{
		entries: make(map[uint32]any),
		ids:     make(map[any]uint32),
	}
}

// Register stores v and returns its id. Comparable values keep one id across
// repeated registrations.
func (t *ObjectTable) Register(v any) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	hashable := v != nil && reflect.TypeOf(v).Comparable()
	if hashable {
		if id, ok := t.ids[v]; ok {
			return id
		}
	}

	t.next++
	id := t.next
	t.entries[id] = v
	if hashable {
		t.ids[v] = id
	}
	return id
}

// Get resolves an id back to the registered value.
func (t *ObjectTable) Get(id uint32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	return v, ok
}

// Drop removes an entry. Resolving a dropped id fails.
func (t *ObjectTable) Drop(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	if !ok {
		return false
	}
	delete(t.entries, id)
	if v != nil && reflect.TypeOf(v).Comparable() {
		delete(t.ids, v)
	}
	return true
}

func (t *ObjectTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ScriptRef is the opaque Go-side handle for a script value that has no
// richer mapping. It keeps the underlying value alive until the bridge
// closes and round-trips back to the identical script value.
type ScriptRef struct {
	eng engine.Engine
	val engine.Value
}

// Value exposes the wrapped script value.
func (r *ScriptRef) Value() engine.Value {
	return r.val
}

// objectCodec handles the opaque object kind in both directions: host values
// travel by table id, script values travel wrapped in a ScriptRef.
type objectCodec struct {
	reg    *Registry
	goType reflect.Type
}

func (c *objectCodec) Kind() descriptor.Kind { return descriptor.KindObject }

func (c *objectCodec) Read(sc *engine.Scope, v engine.Value, path []string) (any, error) {
	eng := sc.Engine()
	if eng.IsNull(v) || eng.IsUndefined(v) {
		return nil, nil
	}

	// Primitives crossing through an untyped slot keep their natural Go
	// shape; only structured values become opaque references.
	if !eng.IsObject(v) {
		if b, err := eng.ToBool(v); err == nil {
			return b, nil
		}
		if s, err := eng.ToString(v); err == nil {
			return s, nil
		}
		if n, err := eng.ToInt(v); err == nil {
			return n, nil
		}
		if f, err := eng.ToFloat(v); err == nil {
			return f, nil
		}
	}

	if eng.IsObject(v) && eng.HasProperty(v, refProperty) {
		idVal, err := eng.GetProperty(v, refProperty)
		if err != nil {
			return nil, err
		}
		sc.Track(idVal)
		id, err := eng.ToInt(idVal)
		if err != nil {
			return nil, errors.ArgumentMarshal(path, "Object", err)
		}
		obj, ok := c.reg.objects.Get(uint32(id))
		if !ok {
			return nil, errors.NotFound(errors.PhaseMarshal, "host object", pathTail(path))
		}
		return obj, nil
	}

	// Script-origin value: retain it for the bridge's lifetime and hand the
	// host an opaque reference.
	held := c.reg.root.Track(eng.Acquire(v))
	return &ScriptRef{eng: eng, val: held}, nil
}

func (c *objectCodec) Write(sc *engine.Scope, v any, path []string) (engine.Value, error) {
	eng := sc.Engine()
	if v == nil {
		return sc.Track(eng.Null()), nil
	}

	if ref, ok := v.(*ScriptRef); ok {
		if ref.eng != eng {
			return nil, errors.InvalidInput(errors.PhaseMarshal, "script reference belongs to another engine")
		}
		return sc.Track(eng.Acquire(ref.val)), nil
	}

	// Primitives crossing through an untyped slot keep their natural
	// script representation.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return sc.Track(eng.Bool(rv.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sc.Track(eng.Int(rv.Int())), nil
	case reflect.Float32, reflect.Float64:
		return sc.Track(eng.Float(rv.Float())), nil
	case reflect.String:
		return sc.Track(eng.String(rv.String())), nil
	}

	id := c.reg.objects.Register(v)
	obj := sc.Track(eng.NewObject())
	idVal := sc.Track(eng.Int(int64(id)))
	if err := eng.SetProperty(obj, refProperty, idVal); err != nil {
		return nil, err
	}

	// The wrapper stays invocable: invoke(method, args...) dispatches to the
	// host value's exported methods through reflection.
	if reflect.ValueOf(v).NumMethod() > 0 {
		invokeFn := sc.Track(eng.NewGoFunction("invoke", c.reg.opaqueInvoker(id)))
		if err := eng.SetProperty(obj, "invoke", invokeFn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// opaqueInvoker dispatches invoke(method, args...) calls on an opaque host
// wrapper. Method names arrive uncapitalized, matching the registration
// convention.
func (r *Registry) opaqueInvoker(id uint32) engine.GoFunc {
	return func(this engine.Value, args []engine.Value) (engine.Value, error) {
		target, ok := r.objects.Get(id)
		if !ok {
			return nil, errors.NotFound(errors.PhaseInvoke, "host object", "invoke")
		}
		if len(args) == 0 {
			return nil, errors.InvalidInput(errors.PhaseInvoke, "invoke needs a method name")
		}
		name, err := r.eng.ToString(args[0])
		if err != nil {
			return nil, errors.InvalidInput(errors.PhaseInvoke, "method name must be a string")
		}

		rv := reflect.ValueOf(target)
		m := rv.MethodByName(name)
		if !m.IsValid() {
			m = rv.MethodByName(capitalize(name))
		}
		if !m.IsValid() {
			return nil, errors.UnresolvableIdentity(typeName(target), name)
		}

		md, err := descriptor.DescribeFunc(name, m.Type())
		if err != nil {
			return nil, err
		}
		inv, err := NewHostInvoker(r, name, m, md)
		if err != nil {
			return nil, err
		}
		return inv.Invoke(this, args[1:])
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func pathTail(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
