package engine

// Scope is a per-call arena of acquired engine values. Every handle obtained
// during a call frame is tracked in the frame's scope and released together,
// in reverse acquisition order, when the scope is released - on every exit
// path, including thrown-error paths, via defer.
//
// Release is idempotent: the first call releases everything, later calls do
// nothing. Values whose lifetime must extend past the frame (registered
// proxies, registered functions) are moved out with Forget and tracked by a
// longer-lived scope instead.
type Scope struct {
	eng      Engine
	vals     []Value
	released bool
}

// NewScope creates an empty scope on eng.
func NewScope(eng Engine) *Scope {
	return &Scope{eng: eng}
}

// Engine returns the engine this scope tracks handles on.
func (s *Scope) Engine() Engine {
	return s.eng
}

// Track registers v for release with this scope and returns it unchanged.
// Tracking nil is a no-op.
func (s *Scope) Track(v Value) Value {
	if v == nil || s.released {
		return v
	}
	s.vals = append(s.vals, v)
	return v
}

// Forget removes v from the scope without releasing it, transferring
// ownership to the caller. Only the most recent occurrence is removed.
func (s *Scope) Forget(v Value) {
	for i := len(s.vals) - 1; i >= 0; i-- {
		if s.vals[i] == v {
			s.vals = append(s.vals[:i], s.vals[i+1:]...)
			return
		}
	}
}

// Len returns the number of tracked handles.
func (s *Scope) Len() int {
	return len(s.vals)
}

// Release frees all tracked handles in reverse order, exactly once.
func (s *Scope) Release() {
	if s.released {
		return
	}
	s.released = true
	for i := len(s.vals) - 1; i >= 0; i-- {
		s.eng.Release(s.vals[i])
	}
	s.vals = nil
}
