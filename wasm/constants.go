package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Import/Export descriptor kinds identify the type of imported or exported item.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

// Reference value types that carry a heap type immediate.
const (
	valRefNull byte = 0x63 // (ref null ht)
	valRef     byte = 0x64 // (ref ht)
)

// Limits flags.
const (
	limitsHasMax   byte = 0x01
	limitsShared   byte = 0x02
	limitsMemory64 byte = 0x04
)

// tableInitPrefix introduces a table type with an explicit init expression.
const tableInitPrefix byte = 0x40

// Control and parametric opcodes.
const (
	OpUnreachable        byte = 0x00
	OpNop                byte = 0x01
	OpBlock              byte = 0x02
	OpLoop               byte = 0x03
	OpIf                 byte = 0x04
	OpElse               byte = 0x05
	OpTry                byte = 0x06
	OpCatch              byte = 0x07
	OpThrow              byte = 0x08
	OpRethrow            byte = 0x09
	OpThrowRef           byte = 0x0A
	OpEnd                byte = 0x0B
	OpBr                 byte = 0x0C
	OpBrIf               byte = 0x0D
	OpBrTable            byte = 0x0E
	OpReturn             byte = 0x0F
	OpCall               byte = 0x10
	OpCallIndirect       byte = 0x11
	OpReturnCall         byte = 0x12
	OpReturnCallIndirect byte = 0x13
	OpCallRef            byte = 0x14
	OpReturnCallRef      byte = 0x15
	OpDelegate           byte = 0x18
	OpCatchAll           byte = 0x19
	OpDrop               byte = 0x1A
	OpSelect             byte = 0x1B
	OpSelectType         byte = 0x1C
	OpTryTable           byte = 0x1F
)

// Variable, table and memory access opcodes.
const (
	OpLocalGet   byte = 0x20
	OpLocalSet   byte = 0x21
	OpLocalTee   byte = 0x22
	OpGlobalGet  byte = 0x23
	OpGlobalSet  byte = 0x24
	OpTableGet   byte = 0x25
	OpTableSet   byte = 0x26
	OpI32Load    byte = 0x28
	OpI64Store32 byte = 0x3E
	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40
)

// Constant opcodes.
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44
)

// Numeric opcodes without immediates span this range (comparison,
// arithmetic, conversion and sign-extension).
const (
	opNumericFirst byte = 0x45
	opNumericLast  byte = 0xC4
)

// Reference opcodes.
const (
	OpRefNull      byte = 0xD0
	OpRefIsNull    byte = 0xD1
	OpRefFunc      byte = 0xD2
	OpRefEq        byte = 0xD3
	OpRefAsNonNull byte = 0xD4
	OpBrOnNull     byte = 0xD5
	OpBrOnNonNull  byte = 0xD6
)

// Prefix opcodes.
const (
	OpPrefixGC     byte = 0xFB
	OpPrefixMisc   byte = 0xFC
	OpPrefixSIMD   byte = 0xFD
	OpPrefixAtomic byte = 0xFE
)

// Misc opcodes (0xFC prefix).
const (
	miscTruncSatLast  uint32 = 0x07
	miscMemoryInit    uint32 = 0x08
	miscDataDrop      uint32 = 0x09
	miscMemoryCopy    uint32 = 0x0A
	miscMemoryFill    uint32 = 0x0B
	miscTableInit     uint32 = 0x0C
	miscElemDrop      uint32 = 0x0D
	miscTableCopy     uint32 = 0x0E
	miscTableGrow     uint32 = 0x0F
	miscTableSize     uint32 = 0x10
	miscTableFill     uint32 = 0x11
	miscMemoryDiscard uint32 = 0x12
)

// GC opcodes (0xFB prefix).
const (
	gcStructNew        uint32 = 0x00
	gcStructNewDefault uint32 = 0x01
	gcStructGet        uint32 = 0x02
	gcStructSet        uint32 = 0x05
	gcArrayNew         uint32 = 0x06
	gcArrayNewDefault  uint32 = 0x07
	gcArrayNewFixed    uint32 = 0x08
	gcArrayNewData     uint32 = 0x09
	gcArrayNewElem     uint32 = 0x0A
	gcArrayGet         uint32 = 0x0B
	gcArraySet         uint32 = 0x0E
	gcArrayLen         uint32 = 0x0F
	gcArrayFill        uint32 = 0x10
	gcArrayCopy        uint32 = 0x11
	gcArrayInitData    uint32 = 0x12
	gcArrayInitElem    uint32 = 0x13
	gcRefTest          uint32 = 0x14
	gcRefCastNull      uint32 = 0x17
	gcBrOnCast         uint32 = 0x18
	gcBrOnCastFail     uint32 = 0x19
	gcAnyConvertExtern uint32 = 0x1A
	gcI31GetU          uint32 = 0x1E
)

// SIMD opcodes (0xFD prefix) with immediates.
const (
	simdV128Load64Splat   uint32 = 0x0A
	simdV128Store         uint32 = 0x0B
	simdV128Const         uint32 = 0x0C
	simdI8x16Shuffle      uint32 = 0x0D
	simdI8x16ExtractLaneS uint32 = 0x15
	simdF64x2ReplaceLane  uint32 = 0x22
	simdV128Load8Lane     uint32 = 0x54
	simdV128Store64Lane   uint32 = 0x5B
	simdV128Load32Zero    uint32 = 0x5C
	simdV128Load64Zero    uint32 = 0x5D
)

// atomicFence is the only 0xFE instruction without a memarg.
const atomicFence uint32 = 0x03

// memArgMultiMemBit marks a memarg that carries an explicit memory index.
const memArgMultiMemBit = 0x40

// Catch clause kinds for try_table.
const (
	catchKindCatch    byte = 0x00
	catchKindCatchRef byte = 0x01
)

// Subsections of the "name" custom section that are keyed by function index.
const (
	nameSubFunction byte = 1
	nameSubLocal    byte = 2
	nameSubLabel    byte = 3
)
