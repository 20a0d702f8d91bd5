package wasm_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/wippyai/wasm-virt/wasm"
)

func TestFuncRefs(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want []uint32
	}{
		{
			name: "no refs",
			code: []byte{wasm.OpLocalGet, 0x00, wasm.OpI32Const, 0x7F, 0x6A, wasm.OpEnd},
		},
		{
			name: "call and return_call",
			code: []byte{wasm.OpCall, 0x03, wasm.OpReturnCall, 0x80, 0x01, wasm.OpEnd},
			want: []uint32{3, 128},
		},
		{
			name: "ref.func in block",
			code: []byte{
				wasm.OpBlock, 0x40,
				wasm.OpRefFunc, 0x02, wasm.OpDrop,
				wasm.OpBr, 0x00,
				wasm.OpEnd,
				wasm.OpEnd,
			},
			want: []uint32{2},
		},
		{
			name: "call_indirect is not a direct ref",
			code: []byte{wasm.OpI32Const, 0x00, wasm.OpCallIndirect, 0x01, 0x00, wasm.OpEnd},
		},
		{
			name: "br_table and memory ops",
			code: []byte{
				wasm.OpI32Const, 0x00,
				wasm.OpI32Load, 0x02, 0x10,
				wasm.OpBrTable, 0x02, 0x00, 0x01, 0x00,
				wasm.OpCall, 0x05,
				wasm.OpEnd,
			},
			want: []uint32{5},
		},
		{
			name: "float constants",
			code: []byte{
				wasm.OpF32Const, 0x10, 0x00, 0x00, 0x00,
				wasm.OpF64Const, wasm.OpCall, 0, 0, 0, 0, 0, 0, 0,
				wasm.OpCall, 0x01,
				wasm.OpEnd,
			},
			want: []uint32{1},
		},
		{
			name: "bulk memory and simd",
			code: []byte{
				wasm.OpPrefixMisc, 0x0A, 0x00, 0x00,
				wasm.OpPrefixSIMD, 0x0C,
				0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
				wasm.OpPrefixAtomic, 0x03, 0x00,
				wasm.OpCall, 0x04,
				wasm.OpEnd,
			},
			want: []uint32{4},
		},
		{
			name: "typed select and gc",
			code: []byte{
				wasm.OpSelectType, 0x01, 0x7F,
				wasm.OpPrefixGC, 0x00, 0x01,
				wasm.OpRefNull, 0x70,
				wasm.OpCall, 0x09,
				wasm.OpEnd,
			},
			want: []uint32{9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wasm.FuncRefs(tt.code)
			if err != nil {
				t.Fatalf("FuncRefs: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuncRefsErrors(t *testing.T) {
	tests := [][]byte{
		{0xFF},
		{wasm.OpCall},
		{wasm.OpF64Const, 0x00},
		{wasm.OpPrefixMisc, 0x7F},
	}
	for _, code := range tests {
		if _, err := wasm.FuncRefs(code); err == nil {
			t.Errorf("FuncRefs(%x): expected error", code)
		}
	}
}

func TestRenumberingChangesImmediateWidth(t *testing.T) {
	// 200 imports followed by a function calling import 199 and itself.
	// Stubbing import 0 moves the caller from 200 (two LEB bytes) to 199 and
	// the callee from 199 to 198.
	b := wasm.NewBuilder()
	void := b.Type(nil, nil)
	for i := 0; i < 200; i++ {
		b.ImportFunc("env", string(rune('a'+i%26))+string(rune('a'+i/26)), void)
	}
	code := wasm.AppendULEB128([]byte{wasm.OpCall}, 199)
	code = append(code, wasm.OpCall)
	code = wasm.AppendULEB128(code, 200)
	code = append(code, wasm.OpEnd)
	caller := b.Func(void, code...)
	b.Export("caller", caller)

	m, err := wasm.Parse(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ReplaceFunctionBody(0, wasm.TrapBody()); err != nil {
		t.Fatal(err)
	}
	out, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := wasm.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	exp, _ := got.LookupExport("caller")
	if exp.Idx != 199 {
		t.Fatalf("caller index = %d", exp.Idx)
	}
	body, _ := got.Body(199)
	refs, err := wasm.FuncRefs(body.Code)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(refs, []uint32{198, 199}) {
		t.Errorf("refs = %v", refs)
	}
}

func TestAppendLEB128(t *testing.T) {
	unsigned := []struct {
		value   uint32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{0xFFFFFFFF, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tt := range unsigned {
		if got := wasm.AppendULEB128(nil, tt.value); !bytes.Equal(got, tt.encoded) {
			t.Errorf("AppendULEB128(%d) = %x, want %x", tt.value, got, tt.encoded)
		}
	}

	signed := []struct {
		value   int64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-1, []byte{0x7f}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tt := range signed {
		if got := wasm.AppendSLEB128(nil, tt.value); !bytes.Equal(got, tt.encoded) {
			t.Errorf("AppendSLEB128(%d) = %x, want %x", tt.value, got, tt.encoded)
		}
	}
}
