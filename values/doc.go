// Package values holds the host-facing wrapper types that flow across the
// bridge: Future for asynchronous results settled by the microtask drain,
// and JSON for opaque textual passthrough of unregistered structures.
//
// These are leaf types: descriptor resolution recognizes them by reflect
// identity, and the marshal codecs produce and consume them.
package values
