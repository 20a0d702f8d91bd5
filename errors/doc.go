// Package errors provides structured error types for wasm-virt.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the manifest entry involved as a path,
// an optional offending value and a cause chain.
//
// The capability errors have dedicated constructors:
//
//	err := errors.MissingRequiredImport("wasi:sockets/tcp@0.2.0", "[method]tcp-socket.connect")
//	err := errors.MissingExpectedExport("wasi:sockets/tcp@0.2.0#[dtor]tcp-socket")
//
// Use the Builder for anything else:
//
//	err := errors.New(errors.PhaseManifest, errors.KindInvalidData).
//		Path("wasi-sockets", "0.2.0").
//		Detail("interface %q lacks a version", iface).
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
// errors.Is matches on Phase and Kind, so the exported sentinels
// (ErrMissingRequiredImport and friends) match any error of that category.
package errors
