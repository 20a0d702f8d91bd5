package wasm

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

type nameEntry struct {
	raw []byte // encoded payload following the index
	idx uint32
}

// remapNames rewrites the function indices of a "name" section payload.
// Function, local and label subsections are keyed by function index and are
// re-sorted after renumbering; other subsections are copied unchanged.
func remapNames(payload []byte, remap func(uint32) uint32) ([]byte, error) {
	r := binary.NewReader(payload)
	w := binary.NewWriter()
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sub, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		switch id {
		case nameSubFunction:
			sub, err = remapNameMap(sub, remap, skipName)
		case nameSubLocal, nameSubLabel:
			sub, err = remapNameMap(sub, remap, skipNameMap)
		}
		if err != nil {
			return nil, fmt.Errorf("name subsection %d: %w", id, err)
		}
		w.Byte(id)
		w.WriteVec(sub)
	}
	return w.Bytes(), nil
}

func remapNameMap(sub []byte, remap func(uint32) uint32, skipValue func(*binary.Reader) error) ([]byte, error) {
	r := binary.NewReader(sub)
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	entries := make([]nameEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		start := r.Position()
		if err := skipValue(r); err != nil {
			return nil, err
		}
		entries = append(entries, nameEntry{idx: remap(idx), raw: r.Since(start)})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	slices.SortStableFunc(entries, func(a, b nameEntry) int {
		return cmp.Compare(a.idx, b.idx)
	})

	w := binary.NewWriter()
	w.WriteU32(count)
	for _, e := range entries {
		w.WriteU32(e.idx)
		w.WriteBytes(e.raw)
	}
	return w.Bytes(), nil
}

func skipName(r *binary.Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	return r.Skip(int(n))
}

func skipNameMap(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
		if err := skipName(r); err != nil {
			return err
		}
	}
	return nil
}

// FunctionNames returns the function name map from the "name" section, if
// the module has one.
func (m *Module) FunctionNames() (map[FuncID]string, error) {
	names := make(map[FuncID]string)
	if m.names == nil {
		return names, nil
	}
	r := binary.NewReader(m.names)
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sub, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		if id != nameSubFunction {
			continue
		}
		sr := binary.NewReader(sub)
		count, err := sr.ReadU32()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			idx, err := sr.ReadU32()
			if err != nil {
				return nil, err
			}
			name, err := sr.ReadName()
			if err != nil {
				return nil, err
			}
			names[FuncID(idx)] = name
		}
	}
	return names, nil
}
