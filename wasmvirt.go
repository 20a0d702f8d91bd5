package wasmvirt

import (
	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/virt"
	"github.com/wippyai/wasm-virt/wasm"
)

// Strip removes a capability family from a core module binary. The result
// is all-or-nothing: on error no partially stripped binary is produced.
func Strip(data []byte, fam *manifest.Family) ([]byte, error) {
	return edit(data, func(m *wasm.Module) error {
		return virt.StripFamily(m, fam)
	})
}

// StripImportsOnly stubs the imports of a family and keeps its exports.
func StripImportsOnly(data []byte, fam *manifest.Family) ([]byte, error) {
	return edit(data, func(m *wasm.Module) error {
		return virt.StripFamilyImportsOnly(m, fam)
	})
}

func edit(data []byte, fn func(*wasm.Module) error) ([]byte, error) {
	m, err := wasm.Parse(data)
	if err != nil {
		return nil, errors.ParseFailed("module", err)
	}
	if err := m.Transact(fn); err != nil {
		return nil, err
	}
	out, err := m.Encode()
	if err != nil {
		return nil, errors.EncodeFailed("module", err)
	}
	return out, nil
}
