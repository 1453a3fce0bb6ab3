package values

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_Complete(t *testing.T) {
	f := NewFuture()
	if f.Settled() {
		t.Fatal("new future should not be settled")
	}

	if !f.Complete(42) {
		t.Fatal("first Complete should succeed")
	}
	if f.Complete(43) {
		t.Error("second Complete should be ignored")
	}
	if f.Fail(errors.New("late")) {
		t.Error("Fail after Complete should be ignored")
	}

	v, err, ok := f.Result()
	if !ok || err != nil {
		t.Fatalf("Result() = %v, %v, %v", v, err, ok)
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestFuture_Fail(t *testing.T) {
	f := NewFuture()
	cause := errors.New("boom")
	if !f.Fail(cause) {
		t.Fatal("first Fail should succeed")
	}

	_, err, ok := f.Result()
	if !ok {
		t.Fatal("future should be settled")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected %v, got %v", cause, err)
	}
}

func TestFuture_Await(t *testing.T) {
	f := NewFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Complete("done")
	}()

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != "done" {
		t.Errorf("expected done, got %v", v)
	}
}

func TestFuture_AwaitCanceled(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestFuture_ResultUnsettled(t *testing.T) {
	f := NewFuture()
	if _, _, ok := f.Result(); ok {
		t.Error("Result on unsettled future should report !ok")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	j, err := EncodeJSON(map[string]any{"n": 1, "s": "x"})
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	var out map[string]any
	if err := j.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["s"] != "x" {
		t.Errorf("round trip lost field: %v", out)
	}
}
