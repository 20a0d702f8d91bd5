package wasm

import (
	"slices"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

// Builder assembles small core modules from scratch. It covers the subset
// needed to describe guests in terms of their function imports and exports:
// function types, function imports, defined functions, a funcref table with
// one active element segment, one memory, exports, a start function and
// function names.
type Builder struct {
	types   []builderType
	imports []builderImport
	funcs   []builderFunc
	exports []Export
	elems   []uint32
	memory  []byte
	names   map[uint32]string
	start   *uint32
}

type builderType struct {
	params  []api.ValueType
	results []api.ValueType
}

type builderImport struct {
	module, name string
	typeIdx      uint32
}

type builderFunc struct {
	code    []byte
	typeIdx uint32
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{names: make(map[uint32]string)}
}

// Type registers a function type and returns its index, reusing an equal
// existing type.
func (b *Builder) Type(params, results []api.ValueType) uint32 {
	for i, t := range b.types {
		if slices.Equal(t.params, params) && slices.Equal(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, builderType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a function import. Imports must be declared before
// defined functions because they occupy the front of the index space.
func (b *Builder) ImportFunc(module, name string, typeIdx uint32) FuncID {
	if len(b.funcs) > 0 {
		panic("wasm: ImportFunc after Func")
	}
	b.imports = append(b.imports, builderImport{module: module, name: name, typeIdx: typeIdx})
	return FuncID(len(b.imports) - 1)
}

// Func defines a function without locals. code must end with OpEnd.
func (b *Builder) Func(typeIdx uint32, code ...byte) FuncID {
	b.funcs = append(b.funcs, builderFunc{typeIdx: typeIdx, code: code})
	return FuncID(len(b.imports) + len(b.funcs) - 1)
}

// Export exports a function under name.
func (b *Builder) Export(name string, id FuncID) *Builder {
	b.exports = append(b.exports, Export{Name: name, Kind: KindFunc, Idx: uint32(id)})
	return b
}

// Elem places functions into table 0 starting at offset 0.
func (b *Builder) Elem(ids ...FuncID) *Builder {
	for _, id := range ids {
		b.elems = append(b.elems, uint32(id))
	}
	return b
}

// Memory defines memory 0 with the given page limits. A shared memory
// requires the threads feature.
func (b *Builder) Memory(min, max uint32, shared bool) *Builder {
	flags := limitsHasMax
	if shared {
		flags |= limitsShared
	}
	b.memory = AppendULEB128(AppendULEB128([]byte{flags}, min), max)
	return b
}

// Start marks a function as the module's start function.
func (b *Builder) Start(id FuncID) *Builder {
	s := uint32(id)
	b.start = &s
	return b
}

// Name records a debug name for a function.
func (b *Builder) Name(id FuncID, name string) *Builder {
	b.names[uint32(id)] = name
	return b
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(b.types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			sec.Byte(0x60)
			writeValueTypes(sec, t.params)
			writeValueTypes(sec, t.results)
		}
		w.Section(SectionType, sec.Bytes())
	}

	if len(b.imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.Byte(KindFunc)
			sec.WriteU32(imp.typeIdx)
		}
		w.Section(SectionImport, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			sec.WriteU32(f.typeIdx)
		}
		w.Section(SectionFunction, sec.Bytes())
	}

	if len(b.elems) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(1)
		sec.Byte(0x70) // funcref
		sec.Byte(0x00) // min only
		sec.WriteU32(uint32(len(b.elems)))
		w.Section(SectionTable, sec.Bytes())
	}

	if b.memory != nil {
		sec := binary.NewWriter()
		sec.WriteU32(1)
		sec.WriteBytes(b.memory)
		w.Section(SectionMemory, sec.Bytes())
	}

	if len(b.exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(b.exports)))
		for _, exp := range b.exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		w.Section(SectionExport, sec.Bytes())
	}

	if b.start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*b.start)
		w.Section(SectionStart, sec.Bytes())
	}

	if len(b.elems) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(1)
		sec.WriteU32(0) // active, table 0
		sec.WriteBytes([]byte{OpI32Const, 0x00, OpEnd})
		sec.WriteU32(uint32(len(b.elems)))
		for _, idx := range b.elems {
			sec.WriteU32(idx)
		}
		w.Section(SectionElement, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			sec.WriteU32(uint32(len(f.code) + 1))
			sec.Byte(0x00) // no locals
			sec.WriteBytes(f.code)
		}
		w.Section(SectionCode, sec.Bytes())
	}

	if len(b.names) > 0 {
		idxs := make([]uint32, 0, len(b.names))
		for idx := range b.names {
			idxs = append(idxs, idx)
		}
		slices.Sort(idxs)
		fn := binary.NewWriter()
		fn.WriteU32(uint32(len(idxs)))
		for _, idx := range idxs {
			fn.WriteU32(idx)
			fn.WriteName(b.names[idx])
		}
		sec := binary.NewWriter()
		sec.WriteName("name")
		sec.Byte(nameSubFunction)
		sec.WriteVec(fn.Bytes())
		w.Section(SectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

func writeValueTypes(w *binary.Writer, types []api.ValueType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(t)
	}
}
