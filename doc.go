// Package wasmvirt removes host capabilities from WebAssembly core modules.
//
// A module built against an interface family such as wasi:sockets imports
// the family's functions from the host and often re-exports them. wasmvirt
// rewrites such a module so that it no longer needs the host to provide the
// family: each listed import gets a local body that traps, and each listed
// export binding is removed. The module keeps working as long as it never
// calls into the disabled capability.
//
// # Architecture Overview
//
//	wasmvirt/            Root package with one-call Strip helpers
//	├── wasm/            Section-preserving core module editor
//	├── manifest/        Capability family tables, registry and WIT import
//	├── virt/            Import stubbing, export pruning and audits
//	├── verify/          Post-strip validation with wazero
//	├── errors/          Structured error types
//	└── cmd/wasm-virt/   Command line tool
//
// # Quick Start
//
//	fam, err := manifest.Default().Latest("wasi-sockets")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := wasmvirt.Strip(wasmBytes, fam)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := verify.Verify(ctx, out, fam); err != nil {
//	    log.Fatal(err)
//	}
//
// # Failure Semantics
//
// The virt functions edit a module in place and stop at the first manifest
// entry that cannot be applied, leaving earlier edits in place. Strip and
// StripImportsOnly run them inside (*wasm.Module).Transact so callers never
// observe a half-stripped module.
//
// # Error Handling
//
// Errors are *errors.Error values carrying a phase (stub, prune, manifest,
// verify, ...) and a kind. Use errors.Is with the sentinels:
//
//	if errors.Is(err, virterrors.ErrMissingRequiredImport) {
//	    // the module does not import a required function of the family
//	}
package wasmvirt
