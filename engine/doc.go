// Package engine defines the script-backend abstraction the bridge core is
// written against, plus the scoped handle discipline shared by all callers.
//
// # Backends
//
// Two structurally different backends satisfy Engine:
//
//	gojaengine - handle-based, on github.com/dop251/goja
//	luaengine  - stack-based, on github.com/yuin/gopher-lua
//
// The core never branches on the backend: invocation, marshalling and async
// bridging are expressed entirely through Engine operations.
//
// # Handle discipline
//
// Every Value obtained from an Engine is a reference handle owned by the
// scope that obtained it and released exactly once:
//
//	sc := engine.NewScope(eng)
//	defer sc.Release()
//	v := sc.Track(eng.String("hello"))
//
// Backends keep acquire/release counters (LiveHandles) so tests can verify
// that repeated calls, including failed calls, leave no handle behind.
//
// # Thenables
//
// The engine-neutral pending-value shape is an object whose "then" property
// is callable with (onFulfilled, onRejected). JS promises already have this
// shape; the lua backend recognizes tables following the same protocol.
// Pending continuations never run implicitly: DrainMicrotasks advances them
// only when the owning context asks.
package engine
