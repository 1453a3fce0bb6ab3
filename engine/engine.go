package engine

// Value is an opaque handle to one script-engine value. Handles are owned by
// the scope that obtained them and must be released exactly once; Scope
// automates this. A Value must never outlive the Engine that produced it.
type Value any

// GoFunc is a host function exposed to script code. Arguments are borrowed
// from the engine for the duration of the call; the returned Value's
// ownership transfers back to the engine. A non-nil error is thrown into the
// script as a catchable error object carrying the error's message.
type GoFunc func(this Value, args []Value) (Value, error)

// Engine is the script-backend abstraction: the invocation and marshalling
// core is written against this interface only, never against a concrete
// backend. One implementation is handle-based (goja), one is stack-based
// (gopher-lua); both satisfy the same contract.
//
// An Engine is not reentrant across goroutines: all methods must be called
// from one logical thread of control, serialized by the owning context.
type Engine interface {
	// Name identifies the backend ("goja", "lua").
	Name() string

	// Eval evaluates source text and returns the completion value.
	Eval(src string) (Value, error)

	// Global returns the named global, reporting whether it exists.
	Global(name string) (Value, bool)
	// SetGlobal binds a value to a global name.
	SetGlobal(name string, v Value) error
	// DeleteGlobal removes a global binding.
	DeleteGlobal(name string) error

	// NewFunctionValue compiles a function from parameter names and a body
	// and returns it as a callable value.
	NewFunctionValue(paramNames []string, body string) (Value, error)

	// GetProperty reads obj[key].
	GetProperty(obj Value, key string) (Value, error)
	// SetProperty writes obj[key].
	SetProperty(obj Value, key string, v Value) error
	// HasProperty reports whether obj owns or inherits key.
	HasProperty(obj Value, key string) bool

	// Call invokes fn with the given this-binding and arguments. A script
	// throw is returned as *errors.ScriptError, message and stack preserved.
	Call(fn, this Value, args []Value) (Value, error)
	// IsCallable reports whether v can be invoked.
	IsCallable(v Value) bool

	// Value constructors.
	NewObject() Value
	NewArray(n int) Value
	NewGoFunction(name string, fn GoFunc) Value
	Bool(b bool) Value
	Int(i int64) Value
	Float(f float64) Value
	String(s string) Value
	Null() Value
	Undefined() Value

	// Array access.
	ArrayGet(arr Value, i int) (Value, error)
	ArraySet(arr Value, i int, v Value) error
	ArrayLen(arr Value) int
	IsArray(v Value) bool

	// Value inspection and narrowing.
	IsNull(v Value) bool
	IsUndefined(v Value) bool
	IsObject(v Value) bool
	ToBool(v Value) (bool, error)
	ToInt(v Value) (int64, error)
	ToFloat(v Value) (float64, error)
	ToString(v Value) (string, error)

	// IsThenable reports whether v is an object with a callable "then"
	// property, the engine-neutral pending-value shape.
	IsThenable(v Value) bool

	// JSON passthrough, used as an opaque textual codec.
	EncodeJSON(v Value) (string, error)
	DecodeJSON(text string) (Value, error)

	// Handle accounting. Acquire marks a new reference to v, Release drops
	// one; LiveHandles is the current acquired-minus-released count used to
	// verify hygiene under repeated invocation.
	Acquire(v Value) Value
	Release(v Value)
	LiveHandles() int64

	// DrainMicrotasks advances backend-internal pending jobs. It is only
	// invoked explicitly by the owning context, never implicitly.
	DrainMicrotasks() error

	// Close releases the interpreter. Using the engine afterwards is an error.
	Close() error
}
