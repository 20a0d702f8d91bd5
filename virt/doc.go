// Package virt disables host capabilities in WebAssembly modules.
//
// A capability family (see package manifest) lists the functions a guest
// imports from the host and the names under which it re-exports them. To
// virtualize the capability away, every listed import gets a body that traps
// unconditionally and every listed export binding is removed:
//
//	fam, _ := manifest.Default().Latest("wasi-sockets")
//	m, _ := wasm.Parse(data)
//	if err := virt.StripFamily(m, fam); err != nil {
//	    return err
//	}
//	out, _ := m.Encode()
//
// Imports are always stubbed before exports are touched. Processing stops at
// the first manifest entry that cannot be applied, and the module keeps the
// changes made up to that point. Wrap the call in (*wasm.Module).Transact to
// discard partial changes instead.
//
// Check audits a module against a family without modifying it and reports
// every missing entry at once.
package virt
