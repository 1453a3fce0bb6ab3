// Package bridge wires a script engine and the Go host into one
// bidirectional call surface.
//
// A Context owns one engine instance and is the only way in: registration,
// evaluation, calls and the pending async queue all go through it, each
// operation serialized against the others. Host objects and functions become
// script globals through RegisterHostObject and RegisterHostFunc; script
// objects and functions become Go callables through BindScriptObject and
// BindScriptFunc. Asynchronous results cross the boundary as
// *values.Future, and their completions are delivered only inside
// DrainPendingAsyncQueue.
package bridge
