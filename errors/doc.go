// Package errors provides structured error types for the script-bridge library.
//
// Errors are categorized by Phase (where in a bridge call the error occurred)
// and Kind (error category). The Error type includes rich context: value path,
// Go type name, bridge kind name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindArgumentMarshal).
//		Path("calculator", "add", "arg0").
//		GoType("string").
//		KindName("Int").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ArgumentCount("add", 2, 3)
//	err := errors.ContextClosed("Evaluate")
//
// Script-side failures crossing into the host are carried by ScriptError,
// which preserves the original message and script stack trace. All errors
// implement the standard error interface and support errors.Is/As.
package errors
