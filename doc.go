// Package scriptbridge connects embedded script engines and Go host code
// through one bidirectional invocation and marshalling layer.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	scriptbridge/        Root package documentation
//	├── bridge/          Context, the single entry point to one engine
//	├── marshal/         Type codecs and the two call-direction invokers
//	├── descriptor/      Closed kind system and Go type classification
//	├── engine/          Engine abstraction, value scopes, logging seam
//	│   ├── gojaengine/  Handle-based JavaScript backend on goja
//	│   └── luaengine/   Stack-based Lua backend on gopher-lua
//	├── values/          Wrapper types crossing the boundary (Future, JSON)
//	└── errors/          Structured error types for diagnostics
//
// # Quick Start
//
// Evaluate a script and call across in both directions:
//
//	c := bridge.New(gojaengine.New())
//	defer c.Close()
//
//	c.RegisterHostFunc("greet", func(name string) string {
//	    return "Hello, " + name + "!"
//	})
//
//	out, err := bridge.Evaluate[string](c, `greet("World")`)
//	fmt.Println(out) // "Hello, World!"
//
//	var double func(int64) (int64, error)
//	c.NewFunction(&double, []string{"n"}, "return n * 2")
//	n, err := double(21) // 42
//
// # Type Mapping
//
// Go types classify into a closed set of bridge kinds: the signed integer
// widths, floats, bool, string, slices, funcs, opaque objects, raw JSON
// text (values.JSON) and asynchronous results (*values.Future). Unsigned
// integers, channels and complex numbers do not cross the boundary.
//
// # Thread Safety
//
// A Context serializes every operation; the engine underneath is single
// threaded. Futures may be settled from any goroutine, but their completions
// are delivered only inside DrainPendingAsyncQueue.
package scriptbridge
