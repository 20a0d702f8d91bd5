// Package wasm provides a section-preserving editor for WebAssembly core
// modules.
//
// Only the sections that carry function indices are decoded (import,
// function, table, global, export, start, element, code and the "name"
// custom section). Every other section is kept as raw bytes and written back
// in its original position, so a parse/encode round trip of an unedited
// module reproduces the input byte for byte.
//
// # Editing
//
// Functions are addressed by FuncID, their position in the function index
// space as parsed. IDs do not change while a module is being edited:
//
//	m, err := wasm.Parse(data)
//	if err != nil {
//	    return err
//	}
//	id, ok := m.LookupImport("wasi:sockets/tcp@0.2.0", "[method]tcp-socket.start-bind")
//	if ok {
//	    err = m.ReplaceFunctionBody(id, wasm.TrapBody())
//	}
//	err = m.RemoveExport("wasi:sockets/tcp@0.2.0#[dtor]tcp-socket")
//	out, err := m.Encode()
//
// Replacing the body of an imported function stubs it. The import stays
// visible to LookupImport and Imports until Encode, which emits it as a
// defined function after the module's own functions and renumbers every
// call, return_call, ref.func, element segment, export, start and name
// entry accordingly.
//
// # Instruction coverage
//
// Code bodies are walked instruction by instruction to locate function
// references. The walker understands the 2.0 instruction set and the GC,
// exception handling, tail call, SIMD, threads, bulk memory, reference
// types, multi-memory and memory64 proposals.
package wasm
