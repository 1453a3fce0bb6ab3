// Package marshal converts values between Go and script representations.
//
// A Registry builds one Codec per type descriptor against a single engine.
// Codecs are resolved eagerly at registration time, so unsupported
// signatures fail before any call runs. On top of the codecs sit the two
// invokers: HostInvoker lets scripts call Go functions, ScriptInvoker lets
// Go call script functions. Both follow the same ownership rule: script
// values produced while marshalling one call live in a scope that is
// released when the call completes, whatever the exit path.
package marshal
