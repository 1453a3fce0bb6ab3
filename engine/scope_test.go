package engine

import "testing"

// stubEngine records Release calls so scope behavior can be checked without
// a real interpreter.
type stubEngine struct {
	Engine
	released []Value
}

func (s *stubEngine) Release(v Value) {
	s.released = append(s.released, v)
}

func TestScopeReleaseOrder(t *testing.T) {
	eng := &stubEngine{}
	sc := NewScope(eng)

	sc.Track("a")
	sc.Track("b")
	sc.Track("c")
	if sc.Len() != 3 {
		t.Fatalf("expected 3 tracked values, got %d", sc.Len())
	}

	sc.Release()
	if len(eng.released) != 3 {
		t.Fatalf("expected 3 releases, got %d", len(eng.released))
	}
	for i, want := range []Value{"c", "b", "a"} {
		if eng.released[i] != want {
			t.Fatalf("release %d: expected %v, got %v", i, want, eng.released[i])
		}
	}
}

func TestScopeReleaseIdempotent(t *testing.T) {
	eng := &stubEngine{}
	sc := NewScope(eng)
	sc.Track("a")

	sc.Release()
	sc.Release()
	if len(eng.released) != 1 {
		t.Fatalf("expected 1 release, got %d", len(eng.released))
	}
}

func TestScopeForget(t *testing.T) {
	eng := &stubEngine{}
	sc := NewScope(eng)

	sc.Track("a")
	sc.Track("b")
	sc.Track("a")
	sc.Forget("a")
	if sc.Len() != 2 {
		t.Fatalf("expected 2 tracked values after forget, got %d", sc.Len())
	}

	sc.Release()
	if len(eng.released) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(eng.released))
	}
	// the most recent "a" was forgotten, the earlier one stays tracked
	if eng.released[0] != "b" || eng.released[1] != "a" {
		t.Fatalf("unexpected release order: %v", eng.released)
	}
}

func TestScopeTrackNil(t *testing.T) {
	eng := &stubEngine{}
	sc := NewScope(eng)

	if got := sc.Track(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}
	if sc.Len() != 0 {
		t.Fatal("nil value was tracked")
	}

	sc.Release()
	if len(eng.released) != 0 {
		t.Fatal("nil value was released")
	}
}
