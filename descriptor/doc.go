// Package descriptor classifies host value slots for marshalling.
//
// A Descriptor names the bridge Kind of one slot (parameter, return, array
// element, async payload) and, for compound kinds, carries the element
// descriptor. Kind is a closed enum: every codec and invoker dispatches over
// it exhaustively.
//
// Resolution works from reflect.Type alone, which erases element types of
// []any and of async payloads; those default to the opaque Object descriptor.
// Callers that hold richer signature information refine the result through
// MethodDescriptor.RefineParam/RefineReturn, which also applies the
// boxed-array correction when reflection reports a primitive-element array
// for a slot declared boxed.
//
// Callable wrappers are detected two ways: plain func types directly, and
// single-method interfaces with a method literally named Invoke. The Invoke
// lookup is probed inside a recover guard; a probe failure falls back to
// scanning declared methods and never propagates.
package descriptor
