package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

// funcRefVisitor receives the byte span and value of a function index
// immediate (call, return_call, ref.func).
type funcRefVisitor func(start, end int, idx uint32)

// skipImmediates consumes the immediates of op. Function index immediates
// are reported to visit when it is non-nil.
func skipImmediates(r *binary.Reader, op byte, visit funcRefVisitor) error {
	switch {
	case op >= opNumericFirst && op <= opNumericLast:
		return nil
	case op >= OpI32Load && op <= OpI64Store32:
		return skipMemArg(r)
	}

	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect,
		OpThrowRef, OpCatchAll, OpRefIsNull, OpRefEq, OpRefAsNonNull:
		return nil

	case OpBlock, OpLoop, OpIf, OpTry:
		_, err := r.ReadS64()
		return err

	case OpCall, OpReturnCall, OpRefFunc:
		start := r.Position()
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if visit != nil {
			visit(start, r.Position(), idx)
		}
		return nil

	case OpCatch, OpThrow, OpRethrow, OpDelegate, OpBr, OpBrIf,
		OpCallRef, OpReturnCallRef, OpBrOnNull, OpBrOnNonNull,
		OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet,
		OpTableGet, OpTableSet, OpMemorySize, OpMemoryGrow:
		_, err := r.ReadU32()
		return err

	case OpCallIndirect, OpReturnCallIndirect:
		return skipU32s(r, 2)

	case OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		return skipU32s(r, int(n)+1)

	case OpSelectType:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := skipValType(r); err != nil {
				return err
			}
		}
		return nil

	case OpTryTable:
		if _, err := r.ReadS64(); err != nil {
			return err
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			kind, err := r.ReadByte()
			if err != nil {
				return err
			}
			if kind == catchKindCatch || kind == catchKindCatchRef {
				if _, err := r.ReadU32(); err != nil {
					return err
				}
			}
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		}
		return nil

	case OpI32Const, OpI64Const, OpRefNull:
		_, err := r.ReadS64()
		return err

	case OpF32Const:
		return r.Skip(4)

	case OpF64Const:
		return r.Skip(8)

	case OpPrefixMisc:
		return skipMisc(r)

	case OpPrefixSIMD:
		return skipSIMD(r)

	case OpPrefixAtomic:
		sub, err := r.ReadU32()
		if err != nil {
			return err
		}
		if sub == atomicFence {
			_, err = r.ReadByte()
			return err
		}
		return skipMemArg(r)

	case OpPrefixGC:
		return skipGC(r)
	}

	return fmt.Errorf("unknown opcode: 0x%02x", op)
}

func skipMisc(r *binary.Reader) error {
	sub, err := r.ReadU32()
	if err != nil {
		return err
	}
	switch {
	case sub <= miscTruncSatLast:
		return nil
	case sub == miscMemoryInit, sub == miscMemoryCopy, sub == miscTableInit, sub == miscTableCopy:
		return skipU32s(r, 2)
	case sub == miscDataDrop, sub == miscMemoryFill, sub == miscElemDrop,
		sub == miscTableGrow, sub == miscTableSize, sub == miscTableFill, sub == miscMemoryDiscard:
		return skipU32s(r, 1)
	}
	return fmt.Errorf("unknown 0xFC sub-opcode: 0x%02x", sub)
}

func skipSIMD(r *binary.Reader) error {
	sub, err := r.ReadU32()
	if err != nil {
		return err
	}
	switch {
	case sub <= simdV128Load64Splat, sub == simdV128Store,
		sub == simdV128Load32Zero, sub == simdV128Load64Zero:
		return skipMemArg(r)
	case sub == simdV128Const, sub == simdI8x16Shuffle:
		return r.Skip(16)
	case sub >= simdI8x16ExtractLaneS && sub <= simdF64x2ReplaceLane:
		return r.Skip(1)
	case sub >= simdV128Load8Lane && sub <= simdV128Store64Lane:
		if err := skipMemArg(r); err != nil {
			return err
		}
		return r.Skip(1)
	}
	return nil
}

func skipGC(r *binary.Reader) error {
	sub, err := r.ReadU32()
	if err != nil {
		return err
	}
	switch {
	case sub == gcStructNew, sub == gcStructNewDefault,
		sub == gcArrayNew, sub == gcArrayNewDefault, sub == gcArrayFill,
		sub >= gcArrayGet && sub <= gcArraySet:
		return skipU32s(r, 1)
	case sub >= gcStructGet && sub <= gcStructSet,
		sub == gcArrayNewFixed, sub == gcArrayNewData, sub == gcArrayNewElem,
		sub == gcArrayCopy, sub == gcArrayInitData, sub == gcArrayInitElem:
		return skipU32s(r, 2)
	case sub >= gcRefTest && sub <= gcRefCastNull:
		_, err := r.ReadS64()
		return err
	case sub == gcBrOnCast, sub == gcBrOnCastFail:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		if _, err := r.ReadU32(); err != nil {
			return err
		}
		if _, err := r.ReadS64(); err != nil {
			return err
		}
		_, err := r.ReadS64()
		return err
	case sub == gcArrayLen, sub >= gcAnyConvertExtern && sub <= gcI31GetU:
		return nil
	}
	return fmt.Errorf("unknown 0xFB sub-opcode: 0x%02x", sub)
}

// skipMemArg consumes a memarg. Bit 6 of the alignment field signals an
// explicit memory index (multi-memory).
func skipMemArg(r *binary.Reader) error {
	align, err := r.ReadU32()
	if err != nil {
		return err
	}
	if align&memArgMultiMemBit != 0 {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	_, err = r.ReadU64()
	return err
}

func skipU32s(r *binary.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

// walkFuncRefs visits every function index immediate in an instruction
// sequence.
func walkFuncRefs(code []byte, visit funcRefVisitor) error {
	r := binary.NewReader(code)
	for r.Len() > 0 {
		at := r.Position()
		op, _ := r.ReadByte()
		if err := skipImmediates(r, op, visit); err != nil {
			return fmt.Errorf("offset %d: %w", at, err)
		}
	}
	return nil
}

// rewriteFuncRefs returns code with every function index immediate passed
// through remap. The input is returned unchanged when it has no function
// references.
func rewriteFuncRefs(code []byte, remap func(uint32) uint32) ([]byte, error) {
	var out []byte
	last := 0
	err := walkFuncRefs(code, func(start, end int, idx uint32) {
		if out == nil {
			out = make([]byte, 0, len(code)+8)
		}
		out = append(out, code[last:start]...)
		out = AppendULEB128(out, remap(idx))
		last = end
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return code, nil
	}
	return append(out, code[last:]...), nil
}

// FuncRefs returns the function indices referenced by an instruction
// sequence, in order of appearance.
func FuncRefs(code []byte) ([]uint32, error) {
	var refs []uint32
	err := walkFuncRefs(code, func(_, _ int, idx uint32) {
		refs = append(refs, idx)
	})
	return refs, err
}
