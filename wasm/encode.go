package wasm

import (
	"fmt"
	"slices"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

// Encode serializes the module to the WebAssembly binary format.
//
// Stubbed imports are emitted as defined functions appended after the
// module's own functions, in import order. Because this removes entries from
// the front of the function index space, every function reference in the
// module is renumbered.
func (m *Module) Encode() ([]byte, error) {
	out, err := m.materialize()
	if err != nil {
		return nil, err
	}

	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	for _, sec := range out.sectionLayout() {
		if sec.Data != nil {
			w.Section(sec.ID, sec.Data)
			continue
		}
		payload, ok := out.encodeSection(sec)
		if !ok {
			continue
		}
		w.Section(sec.ID, payload)
	}
	return w.Bytes(), nil
}

// materialize returns a module in which stubbed imports have been turned
// into defined functions and all function indices renumbered.
func (m *Module) materialize() (*Module, error) {
	if len(m.stubs) == 0 {
		return m, nil
	}

	remap := make([]uint32, m.NumFuncs())
	var next uint32
	var stubbed []FuncID

	var id FuncID
	for _, imp := range m.imports {
		if imp.Kind != KindFunc {
			continue
		}
		if _, ok := m.stubs[id]; ok {
			stubbed = append(stubbed, id)
		} else {
			remap[id] = next
			next++
		}
		id++
	}
	for i := range m.funcs {
		remap[m.numImportedFuncs+uint32(i)] = next
		next++
	}
	for _, sid := range stubbed {
		remap[sid] = next
		next++
	}
	mapIdx := func(idx uint32) uint32 {
		if idx < uint32(len(remap)) {
			return remap[idx]
		}
		return idx
	}

	out := m.Clone()
	out.stubs = nil

	out.imports = out.imports[:0]
	id = 0
	for _, imp := range m.imports {
		if imp.Kind == KindFunc {
			_, isStub := m.stubs[id]
			id++
			if isStub {
				continue
			}
		}
		out.imports = append(out.imports, imp)
	}
	out.numImportedFuncs = m.numImportedFuncs - uint32(len(stubbed))

	for _, sid := range stubbed {
		typeIdx, err := m.TypeIndex(sid)
		if err != nil {
			return nil, err
		}
		out.funcs = append(out.funcs, typeIdx)
		out.code = append(out.code, m.stubs[sid])
	}

	var err error
	for i := range out.code {
		body := out.code[i]
		if body.Code, err = rewriteFuncRefs(body.Code, mapIdx); err != nil {
			return nil, fmt.Errorf("rewrite body %d: %w", i, err)
		}
		out.code[i] = body
	}
	for i := range out.tables {
		if out.tables[i].Init == nil {
			continue
		}
		if out.tables[i].Init, err = rewriteFuncRefs(out.tables[i].Init, mapIdx); err != nil {
			return nil, fmt.Errorf("rewrite table %d: %w", i, err)
		}
	}
	for i := range out.globals {
		if out.globals[i].Init, err = rewriteFuncRefs(out.globals[i].Init, mapIdx); err != nil {
			return nil, fmt.Errorf("rewrite global %d: %w", i, err)
		}
	}
	for i := range out.elements {
		e := &out.elements[i]
		if e.Offset != nil {
			if e.Offset, err = rewriteFuncRefs(e.Offset, mapIdx); err != nil {
				return nil, fmt.Errorf("rewrite element %d: %w", i, err)
			}
		}
		if e.FuncIdxs != nil {
			idxs := make([]uint32, len(e.FuncIdxs))
			for j, f := range e.FuncIdxs {
				idxs[j] = mapIdx(f)
			}
			e.FuncIdxs = idxs
		}
		if e.Exprs != nil {
			exprs := make([][]byte, len(e.Exprs))
			for j, x := range e.Exprs {
				if exprs[j], err = rewriteFuncRefs(x, mapIdx); err != nil {
					return nil, fmt.Errorf("rewrite element %d: %w", i, err)
				}
			}
			e.Exprs = exprs
		}
	}
	for i := range out.exports {
		if out.exports[i].Kind == KindFunc {
			out.exports[i].Idx = mapIdx(out.exports[i].Idx)
		}
	}
	if out.start != nil {
		s := mapIdx(*out.start)
		out.start = &s
	}
	if out.names != nil {
		names, err := remapNames(out.names, mapIdx)
		if err != nil {
			Logger().Warn("dropping unreadable name section")
			names = nil
		}
		out.names = names
	}
	return out, nil
}

// sectionLayout returns the layout with the function and code sections
// inserted at their canonical positions when the module gained its first
// defined functions. A new section goes right after the last known section
// that precedes it, so custom sections trailing the module stay last.
func (m *Module) sectionLayout() []section {
	layout := m.layout
	if len(m.funcs) == 0 {
		return layout
	}
	for _, id := range []byte{SectionFunction, SectionCode} {
		if slices.ContainsFunc(layout, func(s section) bool { return s.ID == id }) {
			continue
		}
		order := sectionOrder(id)
		at := 0
		for i, s := range layout {
			if s.ID != SectionCustom && sectionOrder(s.ID) < order {
				at = i + 1
			}
		}
		layout = slices.Insert(slices.Clone(layout), at, section{ID: id})
	}
	return layout
}

// encodeSection encodes a decoded section. It reports false when the
// section has become empty and should be omitted.
func (m *Module) encodeSection(sec section) ([]byte, bool) {
	w := binary.NewWriter()
	switch sec.ID {
	case SectionCustom:
		if m.names == nil {
			return nil, false
		}
		w.WriteName(sec.Name)
		w.WriteBytes(m.names)

	case SectionImport:
		if len(m.imports) == 0 {
			return nil, false
		}
		w.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			w.WriteName(imp.Module)
			w.WriteName(imp.Name)
			w.Byte(imp.Kind)
			if imp.Kind == KindFunc {
				w.WriteU32(imp.TypeIdx)
			} else {
				w.WriteBytes(imp.Desc)
			}
		}

	case SectionFunction:
		if len(m.funcs) == 0 {
			return nil, false
		}
		w.WriteU32(uint32(len(m.funcs)))
		for _, t := range m.funcs {
			w.WriteU32(t)
		}

	case SectionTable:
		w.WriteU32(uint32(len(m.tables)))
		for _, t := range m.tables {
			if t.Init != nil {
				w.Byte(tableInitPrefix)
				w.Byte(0x00)
			}
			w.WriteBytes(t.Type)
			w.WriteBytes(t.Init)
		}

	case SectionGlobal:
		w.WriteU32(uint32(len(m.globals)))
		for _, g := range m.globals {
			w.WriteBytes(g.Type)
			w.WriteBytes(g.Init)
		}

	case SectionExport:
		if len(m.exports) == 0 {
			return nil, false
		}
		w.WriteU32(uint32(len(m.exports)))
		for _, exp := range m.exports {
			w.WriteName(exp.Name)
			w.Byte(exp.Kind)
			w.WriteU32(exp.Idx)
		}

	case SectionStart:
		if m.start == nil {
			return nil, false
		}
		w.WriteU32(*m.start)

	case SectionElement:
		w.WriteU32(uint32(len(m.elements)))
		for _, e := range m.elements {
			writeElement(w, e)
		}

	case SectionCode:
		if len(m.code) == 0 {
			return nil, false
		}
		w.WriteU32(uint32(len(m.code)))
		for _, body := range m.code {
			w.WriteU32(uint32(len(body.Locals) + len(body.Code)))
			w.WriteBytes(body.Locals)
			w.WriteBytes(body.Code)
		}

	default:
		return nil, false
	}
	return w.Bytes(), true
}

func writeElement(w *binary.Writer, e Element) {
	w.WriteU32(e.Flags)
	active := e.Flags&0x01 == 0
	if active && e.Flags&0x02 != 0 {
		w.WriteU32(e.TableIdx)
	}
	if active {
		w.WriteBytes(e.Offset)
	}
	if e.Flags&0x03 != 0 {
		w.WriteBytes(e.RefType)
	}
	if e.Flags&0x04 != 0 {
		w.WriteU32(uint32(len(e.Exprs)))
		for _, x := range e.Exprs {
			w.WriteBytes(x)
		}
		return
	}
	w.WriteU32(uint32(len(e.FuncIdxs)))
	for _, f := range e.FuncIdxs {
		w.WriteU32(f)
	}
}
