package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderPeek(t *testing.T) {
	r := NewReader([]byte{0x40, 0x00})
	b, err := r.Peek()
	if err != nil || b != 0x40 {
		t.Fatalf("Peek: got 0x%02x, %v", b, err)
	}
	if r.Position() != 0 {
		t.Errorf("Peek advanced position to %d", r.Position())
	}
	_ = r.Skip(2)
	if _, err := r.Peek(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytesAliases(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReader(data)

	b, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(b, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("got %v", b)
	}
	if &b[0] != &data[0] {
		t.Error("ReadBytes should alias the input")
	}

	if _, err := r.ReadBytes(3); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
	if r.Position() != 3 {
		t.Errorf("failed read moved position to %d", r.Position())
	}
}

func TestReaderSince(t *testing.T) {
	r := NewReader([]byte{0xAA, 0x80, 0x01, 0xBB})
	_, _ = r.ReadByte()
	start := r.Position()
	if _, err := r.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got := r.Since(start); !bytes.Equal(got, []byte{0x80, 0x01}) {
		t.Errorf("Since: got %v", got)
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		data []byte
		want uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		r := NewReader(tt.data)
		got, err := r.ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%v): %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%v) = %d, want %d", tt.data, got, tt.want)
		}
		if r.Len() != 0 {
			t.Errorf("ReadU32(%v) left %d bytes", tt.data, r.Len())
		}
	}
}

func TestReaderReadU32Errors(t *testing.T) {
	if _, err := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadU32(); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := NewReader([]byte{0x80, 0x80}).ReadU32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReaderReadU64(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	got, err := NewReader(data).ReadU64()
	if err != nil {
		t.Fatal(err)
	}
	if got != ^uint64(0) {
		t.Errorf("got %#x", got)
	}
}

func TestReaderReadS64(t *testing.T) {
	tests := []struct {
		data []byte
		want int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0x7f}, -1},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0x80, 0x7f}, -128},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.data).ReadS64()
		if err != nil {
			t.Errorf("ReadS64(%v): %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadS64(%v) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestReaderReadName(t *testing.T) {
	r := NewReader([]byte{0x05, 'h', 'e', 'l', 'l', 'o'})
	name, err := r.ReadName()
	if err != nil {
		t.Fatal(err)
	}
	if name != "hello" {
		t.Errorf("got %q", name)
	}

	if _, err := NewReader([]byte{0x02, 0xff, 0xfe}).ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
	if _, err := NewReader([]byte{0x05, 'h'}).ReadName(); err == nil {
		t.Error("expected error for truncated name")
	}
}

func TestReaderReadU32LE(t *testing.T) {
	got, err := NewReader([]byte{0x00, 0x61, 0x73, 0x6d}).ReadU32LE()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x6d736100 {
		t.Errorf("got %#x", got)
	}
	if _, err := NewReader([]byte{0x00, 0x61}).ReadU32LE(); err == nil {
		t.Error("expected error for short input")
	}
}

func TestReaderReadRemaining(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	_, _ = r.ReadByte()
	if got := r.ReadRemaining(); !bytes.Equal(got, []byte{0x02, 0x03}) {
		t.Errorf("got %v", got)
	}
	if r.Len() != 0 {
		t.Errorf("Len after ReadRemaining: %d", r.Len())
	}
}

func TestReaderWrapError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, _ = r.ReadByte()
	inner := errors.New("boom")
	err := r.WrapError("import", inner)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "import" {
		t.Errorf("got position %d section %q", pe.Position, pe.Section)
	}
	if !errors.Is(err, inner) {
		t.Error("ParseError should unwrap to the inner error")
	}
	if got := err.Error(); got != "wasm: import at position 1: boom" {
		t.Errorf("Error() = %q", got)
	}
	noSection := &ParseError{Position: 4, Err: inner}
	if got := noSection.Error(); got != "wasm: at position 4: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWriterPrimitives(t *testing.T) {
	w := NewWriter()
	w.Byte(0x01)
	w.WriteU32(624485)
	w.WriteName("hi")
	w.WriteVec([]byte{0xAA})
	w.WriteU32LE(1)

	want := []byte{
		0x01,
		0xe5, 0x8e, 0x26,
		0x02, 'h', 'i',
		0x01, 0xAA,
		0x01, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %v, want %v", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Errorf("Len = %d", w.Len())
	}
}

func TestWriterSection(t *testing.T) {
	w := NewWriter()
	w.Section(7, []byte{0x00})
	if !bytes.Equal(w.Bytes(), []byte{7, 1, 0}) {
		t.Errorf("got %v", w.Bytes())
	}
}

func TestRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16383, 16384, 1 << 28, 0xFFFFFFFF}
	w := NewWriter()
	for _, v := range values {
		w.WriteU32(v)
	}
	w.WriteName("wasi:sockets/tcp@0.2.0")

	r := NewReader(w.Bytes())
	for _, want := range values {
		got, err := r.ReadU32()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
	name, err := r.ReadName()
	if err != nil {
		t.Fatal(err)
	}
	if name != "wasi:sockets/tcp@0.2.0" {
		t.Errorf("got %q", name)
	}
}
