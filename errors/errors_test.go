package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseMarshal,
				Kind:     KindArgumentMarshal,
				Path:     []string{"calc", "add", "arg1"},
				GoType:   "string",
				KindName: "Int",
				Detail:   "cannot convert",
			},
			contains: []string{"[marshal]", "argument_marshal", "calc.add.arg1", "string", "Int", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseResolve,
				Kind:  KindResolution,
			},
			contains: []string{"[resolve]", "resolution"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindForeignInvocation,
				Detail: "callee raised",
				Cause:  errors.New("boom"),
			},
			contains: []string{"[invoke]", "foreign_invocation", "callee raised", "caused by", "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindForeignInvocation,
		Cause: cause,
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestError_Is(t *testing.T) {
	a := &Error{Phase: PhaseInvoke, Kind: KindArgumentCount}
	b := &Error{Phase: PhaseInvoke, Kind: KindArgumentCount, Detail: "other detail"}
	c := &Error{Phase: PhaseMarshal, Kind: KindArgumentCount}

	if !errors.Is(a, b) {
		t.Error("errors with same phase/kind should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different phase should not match")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseResolve, KindResolution).
		Path("obj", "compute").
		GoType("chan int").
		Detail("unsupported type %q", "chan int").
		Build()

	if err.Phase != PhaseResolve || err.Kind != KindResolution {
		t.Fatalf("builder lost phase/kind: %v", err)
	}
	if len(err.Path) != 2 {
		t.Fatalf("expected path of 2, got %v", err.Path)
	}
	if !strings.Contains(err.Error(), `unsupported type "chan int"`) {
		t.Errorf("formatted detail missing: %q", err.Error())
	}
}

func TestArgumentCount(t *testing.T) {
	err := ArgumentCount("join", 2, 3)
	if !IsArgumentCount(err) {
		t.Error("IsArgumentCount should report true")
	}
	for _, s := range []string{"join", "expected: 2", "received: 3"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("%q missing from %q", s, err.Error())
		}
	}
}

func TestScriptError(t *testing.T) {
	se := NewScriptError("bad input", "at foo.js:3", nil)
	if !strings.Contains(se.Error(), "bad input") || !strings.Contains(se.Error(), "foo.js:3") {
		t.Errorf("unexpected message: %q", se.Error())
	}

	wrapped := ForeignInvocation([]string{"handler"}, se)
	var target *ScriptError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should recover the ScriptError")
	}
	if target.Message != "bad input" {
		t.Errorf("message lost: %q", target.Message)
	}
}

func TestContextClosed(t *testing.T) {
	err := ContextClosed("Evaluate")
	if !IsBridgeState(err) {
		t.Error("IsBridgeState should report true")
	}
	if !strings.Contains(err.Error(), "Evaluate") {
		t.Errorf("operation name missing: %q", err.Error())
	}
}
