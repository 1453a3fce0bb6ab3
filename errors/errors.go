package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in a bridge call the error occurred
type Phase string

const (
	PhaseResolve      Phase = "resolve"      // descriptor classification
	PhaseMarshal      Phase = "marshal"      // value conversion host <-> script
	PhaseInvoke       Phase = "invoke"       // foreign call execution
	PhaseRegistration Phase = "registration" // object/lambda registration
	PhaseRuntime      Phase = "runtime"      // context lifecycle and dispatch
)

// Kind categorizes the error
type Kind string

const (
	KindArgumentCount     Kind = "argument_count"     // too many fixed arguments supplied
	KindArgumentMarshal   Kind = "argument_marshal"   // value not convertible to/from its Kind
	KindResolution        Kind = "resolution"         // unclassifiable type or missing proxied method
	KindForeignInvocation Kind = "foreign_invocation" // the callee itself raised
	KindBridgeState       Kind = "bridge_state"       // closed context or unresolvable identity
	KindTypeMismatch      Kind = "type_mismatch"
	KindOverflow          Kind = "overflow"
	KindNotFound          Kind = "not_found"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	KindName string // descriptor Kind display name, when known
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.KindName != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.KindName != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", bridge kind ")
			b.WriteString(e.KindName)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("bridge kind ")
			b.WriteString(e.KindName)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.KindName != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path (object.method.arg)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// KindName sets the bridge kind display name
func (b *Builder) KindName(k string) *Builder {
	b.err.KindName = k
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ArgumentCount creates a too-many-arguments error raised before any foreign call
func ArgumentCount(method string, expected, received int) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindArgumentCount,
		Path:   []string{method},
		Detail: fmt.Sprintf("too many parameters (expected: %d, received: %d)", expected, received),
	}
}

// ArgumentMarshal creates a conversion failure for one argument slot
func ArgumentMarshal(path []string, kindName string, cause error) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindArgumentMarshal,
		Path:     path,
		KindName: kindName,
		Cause:    cause,
	}
}

// Resolution creates a descriptor classification failure
func Resolution(path []string, goType, detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindResolution,
		Path:   path,
		GoType: goType,
		Detail: detail,
	}
}

// Overflow creates an overflow error for a numeric conversion
func Overflow(path []string, value any, kindName string) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindOverflow,
		Path:     path,
		KindName: kindName,
		Detail:   fmt.Sprintf("value %v overflows %s", value, kindName),
		Value:    value,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, kindName string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		GoType:   goType,
		KindName: kindName,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration failure for a named entry
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegistration,
		Kind:   KindResolution,
		Detail: fmt.Sprintf("register %q", name),
		Cause:  cause,
	}
}

// ContextClosed creates a bridge_state error for use after teardown
func ContextClosed(op string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindBridgeState,
		Detail: fmt.Sprintf("%s: bridge context is closed", op),
	}
}

// UnresolvableIdentity creates a bridge_state error for a method identity
// missing from an immutable proxy method table
func UnresolvableIdentity(object, method string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindBridgeState,
		Path:   []string{object, method},
		Detail: "method identity not present in proxy method table",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ScriptError carries a script-side failure across the boundary with its
// original message and, when the engine provides one, a script stack trace.
type ScriptError struct {
	Message string
	Stack   string
	Value   any // the raw thrown script value, engine-specific
}

// NewScriptError creates a script error from the engine's thrown value
func NewScriptError(message, stack string, value any) *ScriptError {
	return &ScriptError{
		Message: message,
		Stack:   stack,
		Value:   value,
	}
}

func (e *ScriptError) Error() string {
	if e.Stack != "" {
		return e.Message + "\n" + e.Stack
	}
	return e.Message
}

// Is reports whether target matches this error type
func (e *ScriptError) Is(target error) bool {
	_, ok := target.(*ScriptError)
	return ok
}

// ForeignInvocation wraps a callee-raised failure, preserving the original
// message or script diagnostic
func ForeignInvocation(path []string, cause error) *Error {
	return &Error{
		Phase: PhaseInvoke,
		Kind:  KindForeignInvocation,
		Path:  path,
		Cause: cause,
	}
}

// IsArgumentCount reports whether err is an argument count violation
func IsArgumentCount(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindArgumentCount
}

// IsBridgeState reports whether err is a bridge lifecycle/identity violation
func IsBridgeState(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindBridgeState
}
