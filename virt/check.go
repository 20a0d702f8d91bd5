package virt

import (
	"github.com/wippyai/wasm-virt/errors"
	"github.com/wippyai/wasm-virt/manifest"
	"github.com/wippyai/wasm-virt/wasm"
)

// Inspector is the read-only view of a module used by Check.
type Inspector interface {
	LookupImport(module, name string) (wasm.FuncID, bool)
	LookupExport(name string) (wasm.Export, bool)
}

// ImportStatus records whether one import entry resolves.
type ImportStatus struct {
	Entry   manifest.ImportEntry
	Present bool
}

// ExportStatus records whether one export name is bound.
type ExportStatus struct {
	Name    string
	Present bool
}

// Report is the outcome of auditing a module against a family. Unlike the
// strip operations it lists every entry instead of stopping at the first
// problem.
type Report struct {
	Family  string
	Version string
	Imports []ImportStatus
	Exports []ExportStatus
}

// Check audits m against fam without modifying it.
func Check(m Inspector, fam *manifest.Family) *Report {
	r := &Report{Family: fam.Name, Version: fam.Version}
	for _, entry := range fam.Imports() {
		_, ok := m.LookupImport(entry.Interface, entry.Function)
		r.Imports = append(r.Imports, ImportStatus{Entry: entry, Present: ok})
	}
	for _, name := range fam.Exports() {
		_, ok := m.LookupExport(name)
		r.Exports = append(r.Exports, ExportStatus{Name: name, Present: ok})
	}
	return r
}

// PresentImports counts the imports that resolve.
func (r *Report) PresentImports() int {
	n := 0
	for _, s := range r.Imports {
		if s.Present {
			n++
		}
	}
	return n
}

// PresentExports counts the exports that are bound.
func (r *Report) PresentExports() int {
	n := 0
	for _, s := range r.Exports {
		if s.Present {
			n++
		}
	}
	return n
}

// MissingRequired returns the absent Required imports as an aggregated
// error, or nil when there are none.
func (r *Report) MissingRequired() *errors.MissingImportsError {
	var keys []string
	for _, s := range r.Imports {
		if !s.Present && s.Entry.Requirement == manifest.Required {
			keys = append(keys, s.Entry.String())
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.NewMissingImportsError(keys)
}

// MissingExports returns the export names that are not bound.
func (r *Report) MissingExports() []string {
	var out []string
	for _, s := range r.Exports {
		if !s.Present {
			out = append(out, s.Name)
		}
	}
	return out
}

// ImportsStrippable reports whether StubImports would succeed.
func (r *Report) ImportsStrippable() bool {
	return r.MissingRequired() == nil
}

// Strippable reports whether StripCapability would succeed.
func (r *Report) Strippable() bool {
	return r.ImportsStrippable() && len(r.MissingExports()) == 0
}

// Err returns nil for a strippable module. Otherwise it returns the
// aggregated missing imports, or the first missing export when all imports
// resolve.
func (r *Report) Err() error {
	if missing := r.MissingRequired(); missing != nil {
		return missing
	}
	if names := r.MissingExports(); len(names) > 0 {
		return errors.MissingExpectedExport(names[0])
	}
	return nil
}

// Detect picks the family version that best matches m: the one with the
// most resolving imports. Ties go to the later candidate. It returns nil when
// no candidate has any import present.
func Detect(m Inspector, candidates []*manifest.Family) (*manifest.Family, *Report) {
	var (
		best       *manifest.Family
		bestReport *Report
	)
	for _, fam := range candidates {
		rep := Check(m, fam)
		if rep.PresentImports() == 0 {
			continue
		}
		if bestReport == nil || rep.PresentImports() >= bestReport.PresentImports() {
			best, bestReport = fam, rep
		}
	}
	return best, bestReport
}
