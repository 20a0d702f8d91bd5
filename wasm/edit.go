package wasm

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

// Editing errors.
var (
	ErrExportNotFound  = errors.New("export not found")
	ErrFuncOutOfRange  = errors.New("function index out of range")
	ErrInvalidFuncBody = errors.New("invalid function body")
)

// Imports returns a copy of the import table. Stubbed function imports
// remain listed until the module is encoded.
func (m *Module) Imports() []Import {
	out := slices.Clone(m.imports)
	var id FuncID
	for i := range out {
		if out[i].Kind != KindFunc {
			continue
		}
		_, out[i].Stubbed = m.stubs[id]
		id++
	}
	return out
}

// Exports returns a copy of the export table.
func (m *Module) Exports() []Export {
	return slices.Clone(m.exports)
}

// Elements returns a copy of the element segments.
func (m *Module) Elements() []Element {
	return slices.Clone(m.elements)
}

// Tables returns a copy of the table definitions.
func (m *Module) Tables() []Table {
	return slices.Clone(m.tables)
}

// Globals returns a copy of the global definitions.
func (m *Module) Globals() []Global {
	return slices.Clone(m.globals)
}

// StartFunc returns the start function, if the module declares one.
func (m *Module) StartFunc() (FuncID, bool) {
	if m.start == nil {
		return 0, false
	}
	return FuncID(*m.start), true
}

// SharedMemory reports whether the module imports or defines a shared
// memory. Such modules only compile with the threads feature enabled.
func (m *Module) SharedMemory() bool {
	for _, imp := range m.imports {
		if imp.Kind == KindMemory && len(imp.Desc) > 0 && imp.Desc[0]&limitsShared != 0 {
			return true
		}
	}
	for _, sec := range m.layout {
		if sec.ID != SectionMemory {
			continue
		}
		r := binary.NewReader(sec.Data)
		count, err := r.ReadU32()
		if err != nil {
			return false
		}
		for i := uint32(0); i < count; i++ {
			flags, err := r.Peek()
			if err != nil {
				return false
			}
			if flags&limitsShared != 0 {
				return true
			}
			if err := skipLimits(r); err != nil {
				return false
			}
		}
	}
	return false
}

// NumImportedFuncs returns the number of imported functions, stubbed or not.
func (m *Module) NumImportedFuncs() uint32 {
	return m.numImportedFuncs
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() uint32 {
	return m.numImportedFuncs + uint32(len(m.funcs))
}

// LookupImport finds a function import by exact module and field name.
func (m *Module) LookupImport(module, name string) (FuncID, bool) {
	var id FuncID
	for _, imp := range m.imports {
		if imp.Kind != KindFunc {
			continue
		}
		if imp.Module == module && imp.Name == name {
			return id, true
		}
		id++
	}
	return 0, false
}

// LookupExport finds an export by exact name.
func (m *Module) LookupExport(name string) (Export, bool) {
	for _, exp := range m.exports {
		if exp.Name == name {
			return exp, true
		}
	}
	return Export{}, false
}

// IsImport reports whether id refers to an imported function.
func (m *Module) IsImport(id FuncID) bool {
	return uint32(id) < m.numImportedFuncs
}

// IsStubbed reports whether the imported function id has a replacement body.
func (m *Module) IsStubbed(id FuncID) bool {
	_, ok := m.stubs[id]
	return ok
}

// Body returns the current body of a function. Imported functions that have
// not been stubbed have no body.
func (m *Module) Body(id FuncID) (FuncBody, bool) {
	if m.IsImport(id) {
		b, ok := m.stubs[id]
		return b, ok
	}
	local := uint32(id) - m.numImportedFuncs
	if local >= uint32(len(m.code)) {
		return FuncBody{}, false
	}
	return m.code[local], true
}

// TypeIndex returns the type index of a function.
func (m *Module) TypeIndex(id FuncID) (uint32, error) {
	if m.IsImport(id) {
		var n FuncID
		for _, imp := range m.imports {
			if imp.Kind != KindFunc {
				continue
			}
			if n == id {
				return imp.TypeIdx, nil
			}
			n++
		}
	}
	local := uint32(id) - m.numImportedFuncs
	if local >= uint32(len(m.funcs)) {
		return 0, fmt.Errorf("%w: %d", ErrFuncOutOfRange, id)
	}
	return m.funcs[local], nil
}

// ReplaceFunctionBody replaces the body of a function while keeping its
// type. For an imported function the import becomes a locally defined
// function when the module is encoded; until then it stays in the import
// table so lookups keep resolving it.
func (m *Module) ReplaceFunctionBody(id FuncID, body FuncBody) error {
	if uint32(id) >= m.NumFuncs() {
		return fmt.Errorf("%w: %d", ErrFuncOutOfRange, id)
	}
	if err := validateBody(body); err != nil {
		return err
	}
	if m.IsImport(id) {
		if m.stubs == nil {
			m.stubs = make(map[FuncID]FuncBody)
		}
		m.stubs[id] = body
		return nil
	}
	m.code[uint32(id)-m.numImportedFuncs] = body
	return nil
}

// RemoveExport deletes the export binding with the given name. The exported
// item itself is left in place.
func (m *Module) RemoveExport(name string) error {
	for i, exp := range m.exports {
		if exp.Name == name {
			m.exports = slices.Delete(m.exports, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrExportNotFound, name)
}

// Clone returns an independent copy of the module. Raw section payloads are
// shared; edits never mutate them in place.
func (m *Module) Clone() *Module {
	c := *m
	c.layout = slices.Clone(m.layout)
	c.imports = slices.Clone(m.imports)
	c.funcs = slices.Clone(m.funcs)
	c.tables = slices.Clone(m.tables)
	c.globals = slices.Clone(m.globals)
	c.exports = slices.Clone(m.exports)
	c.elements = slices.Clone(m.elements)
	c.code = slices.Clone(m.code)
	c.stubs = maps.Clone(m.stubs)
	if m.start != nil {
		s := *m.start
		c.start = &s
	}
	return &c
}

// Transact runs fn against a copy of the module and adopts the copy only
// when fn succeeds. On error the module is left exactly as it was.
func (m *Module) Transact(fn func(*Module) error) error {
	work := m.Clone()
	if err := fn(work); err != nil {
		return err
	}
	*m = *work
	return nil
}

func validateBody(body FuncBody) error {
	if len(body.Locals) == 0 {
		return fmt.Errorf("%w: missing local declarations", ErrInvalidFuncBody)
	}
	if len(body.Code) == 0 || body.Code[len(body.Code)-1] != OpEnd {
		return fmt.Errorf("%w: code must end with the end opcode", ErrInvalidFuncBody)
	}
	if err := walkFuncRefs(body.Code, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFuncBody, err)
	}
	return nil
}
