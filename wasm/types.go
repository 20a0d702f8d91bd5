package wasm

// FuncID identifies a function by its position in the function index space
// of the module as parsed (imported functions first, then defined ones).
// IDs stay stable while the module is edited; Encode renumbers them.
type FuncID uint32

// Module is an editable, section-preserving view of a WebAssembly module.
//
// Sections that carry function indices are decoded so they can be rewritten
// when the function index space changes. All other sections are retained as
// raw bytes and written back in their original position.
type Module struct {
	layout   []section
	imports  []Import
	funcs    []uint32 // type indices of defined functions
	tables   []Table
	globals  []Global
	exports  []Export
	start    *uint32
	elements []Element
	code     []FuncBody
	names    []byte // raw "name" custom section payload, nil when absent

	// stubs holds replacement bodies for imported functions keyed by FuncID.
	stubs map[FuncID]FuncBody

	numImportedFuncs uint32
}

// section records the original position of a section. Data is only kept
// for sections that are not decoded.
type section struct {
	Name string
	Data []byte
	ID   byte
}

// Import represents an imported function, table, memory, global, or tag.
type Import struct {
	Module string
	Name   string
	// Desc holds the encoded descriptor for non-function imports.
	Desc    []byte
	TypeIdx uint32
	Kind    byte
	// Stubbed reports whether a function import has been given a local
	// body. Stubbed imports are emitted as defined functions by Encode.
	Stubbed bool
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Table is a table definition. Type holds the encoded reftype and limits;
// Init is the optional initializer expression.
type Table struct {
	Type []byte
	Init []byte
}

// Global is a global definition with its encoded type and init expression.
type Global struct {
	Type []byte
	Init []byte
}

// Element represents an element segment.
// Flags determine the format:
//   - 0: active, tableIdx=0, offset expr, vec(funcidx)
//   - 1: passive, elemkind, vec(funcidx)
//   - 2: active, tableIdx, offset expr, elemkind, vec(funcidx)
//   - 3: declarative, elemkind, vec(funcidx)
//   - 4: active, tableIdx=0, offset expr, vec(expr)
//   - 5: passive, reftype, vec(expr)
//   - 6: active, tableIdx, offset expr, reftype, vec(expr)
//   - 7: declarative, reftype, vec(expr)
type Element struct {
	Offset   []byte
	RefType  []byte // encoded elemkind or reftype, when present
	FuncIdxs []uint32
	Exprs    [][]byte
	Flags    uint32
	TableIdx uint32
}

// FuncBody is a function's encoded local declarations and code.
type FuncBody struct {
	Locals []byte // vec(locals) including the count prefix
	Code   []byte // instructions including the final end opcode
}

// TrapBody returns a body that consists of a single unreachable instruction.
// It has no locals and is valid for any function signature.
func TrapBody() FuncBody {
	return FuncBody{
		Locals: []byte{0x00},
		Code:   []byte{OpUnreachable, OpEnd},
	}
}

// IsTrap reports whether the body is exactly TrapBody.
func (b FuncBody) IsTrap() bool {
	return len(b.Locals) == 1 && b.Locals[0] == 0 &&
		len(b.Code) == 2 && b.Code[0] == OpUnreachable && b.Code[1] == OpEnd
}
