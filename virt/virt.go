package virt

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/wasm"
)

// Module is the part of a module editor the stripper needs. *wasm.Module
// implements it.
type Module interface {
	LookupImport(module, name string) (wasm.FuncID, bool)
	ReplaceFunctionBody(id wasm.FuncID, body wasm.FuncBody) error
	RemoveExport(name string) error
}

// StubImports replaces the body of every listed import with a trap, in
// order. A missing Required entry stops processing with
// MissingRequiredImport; a missing Optional entry is skipped. Entries already
// processed stay stubbed when an error is returned.
func StubImports(m Module, imports []manifest.ImportEntry) error {
	for _, entry := range imports {
		id, found := m.LookupImport(entry.Interface, entry.Function)

		switch entry.Requirement {
		case manifest.Required:
			if !found {
				return errors.MissingRequiredImport(entry.Interface, entry.Function)
			}
		case manifest.Optional:
			if !found {
				Logger().Debug("optional import absent",
					zap.String("interface", entry.Interface),
					zap.String("function", entry.Function))
				continue
			}
		default:
			return errors.UnsupportedRequirementLevel(entry.Interface, entry.Function, entry.Requirement)
		}

		if err := m.ReplaceFunctionBody(id, wasm.TrapBody()); err != nil {
			e := errors.Collaborator(errors.PhaseStub, err, entry.Interface, entry.Function)
			e.Detail = "replace function body"
			return e
		}
		Logger().Debug("stubbed import",
			zap.String("interface", entry.Interface),
			zap.String("function", entry.Function),
			zap.Uint32("func", uint32(id)))
	}
	return nil
}

// StripCapabilityImportsOnly stubs the imports of a capability and leaves
// its exports in place.
func StripCapabilityImportsOnly(m Module, imports []manifest.ImportEntry) error {
	return StubImports(m, imports)
}

// PruneExports removes every listed export binding, in order. A missing
// export stops processing with MissingExpectedExport.
func PruneExports(m Module, names []string) error {
	for _, name := range names {
		if err := m.RemoveExport(name); err != nil {
			if stderrors.Is(err, wasm.ErrExportNotFound) {
				return errors.MissingExpectedExport(name)
			}
			e := errors.Collaborator(errors.PhasePrune, err, name)
			e.Detail = "remove export"
			return e
		}
		Logger().Debug("removed export", zap.String("export", name))
	}
	return nil
}

// StripCapability stubs the imports and then removes the exports of a
// capability. Exports are only touched once every import has been stubbed.
// The module is modified in place and is not restored on failure; use
// (*wasm.Module).Transact for all-or-nothing behaviour.
func StripCapability(m Module, imports []manifest.ImportEntry, exports []string) error {
	if err := StubImports(m, imports); err != nil {
		return err
	}
	return PruneExports(m, exports)
}

// StripFamily strips every function of a family from m.
func StripFamily(m Module, fam *manifest.Family) error {
	Logger().Info("stripping capability family",
		zap.String("family", fam.Name),
		zap.String("version", fam.Version),
		zap.Int("functions", len(fam.Functions)))
	return StripCapability(m, fam.Imports(), fam.Exports())
}

// StripFamilyImportsOnly stubs the imports of a family.
func StripFamilyImportsOnly(m Module, fam *manifest.Family) error {
	return StripCapabilityImportsOnly(m, fam.Imports())
}
