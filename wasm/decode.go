package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-virt/wasm/internal/binary"
)

// Parsing errors returned by Parse.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// Parse decodes a WebAssembly binary module into an editable Module.
func Parse(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastOrder int

	for r.Len() > 0 {
		id, _ := r.ReadByte()
		if id != SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", id)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}
		sr := binary.NewReader(payload)

		switch id {
		case SectionCustom:
			name, err := sr.ReadName()
			if err != nil {
				return nil, fmt.Errorf("custom section: %w", err)
			}
			if name == "name" && m.names == nil {
				m.names = sr.ReadRemaining()
				m.layout = append(m.layout, section{ID: id, Name: name})
				continue
			}
			m.layout = append(m.layout, section{ID: id, Name: name, Data: payload})
			continue
		case SectionImport:
			err = parseImportSection(sr, m)
		case SectionFunction:
			err = parseFunctionSection(sr, m)
		case SectionTable:
			err = parseTableSection(sr, m)
		case SectionGlobal:
			err = parseGlobalSection(sr, m)
		case SectionExport:
			err = parseExportSection(sr, m)
		case SectionStart:
			err = parseStartSection(sr, m)
		case SectionElement:
			err = parseElementSection(sr, m)
		case SectionCode:
			err = parseCodeSection(sr, m)
		default:
			m.layout = append(m.layout, section{ID: id, Data: payload})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s section: %w", sectionName(id), err)
		}
		if sr.Len() != 0 {
			return nil, fmt.Errorf("%s section: %d trailing bytes", sectionName(id), sr.Len())
		}
		m.layout = append(m.layout, section{ID: id})
	}

	if len(m.funcs) != len(m.code) {
		return nil, fmt.Errorf("function and code section counts differ: %d != %d", len(m.funcs), len(m.code))
	}

	for _, imp := range m.imports {
		if imp.Kind == KindFunc {
			m.numImportedFuncs++
		}
	}
	return m, nil
}

// sectionOrder returns the canonical ordering for a section ID.
// The required order differs from the numeric IDs for DataCount and Tag.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionDataCount:
		return "data count"
	case SectionTag:
		return "tag"
	default:
		return fmt.Sprintf("0x%02x", id)
	}
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.ReadName()
		if err != nil {
			return fmt.Errorf("import %d module: %w", i, err)
		}
		name, err := r.ReadName()
		if err != nil {
			return fmt.Errorf("import %d name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("import %d kind: %w", i, err)
		}
		imp := Import{Module: mod, Name: name, Kind: kind}

		start := r.Position()
		switch kind {
		case KindFunc:
			imp.TypeIdx, err = r.ReadU32()
		case KindTable:
			err = skipTableType(r)
		case KindMemory:
			err = skipLimits(r)
		case KindGlobal:
			err = skipGlobalType(r)
		case KindTag:
			err = skipTagType(r)
		default:
			return fmt.Errorf("import %d: unknown kind 0x%02x", i, kind)
		}
		if err != nil {
			return fmt.Errorf("import %s#%s: %w", mod, name, err)
		}
		if kind != KindFunc {
			imp.Desc = r.Since(start)
		}
		m.imports = append(m.imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.funcs = make([]uint32, count)
	for i := range m.funcs {
		if m.funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.tables = make([]Table, 0, count)
	for i := uint32(0); i < count; i++ {
		var t Table
		withInit := false
		if b, err := r.Peek(); err == nil && b == tableInitPrefix {
			_, _ = r.ReadByte()
			reserved, err := r.ReadByte()
			if err != nil {
				return err
			}
			if reserved != 0 {
				return fmt.Errorf("table %d: invalid reserved byte 0x%02x", i, reserved)
			}
			withInit = true
		}
		start := r.Position()
		if err := skipTableType(r); err != nil {
			return fmt.Errorf("table %d: %w", i, err)
		}
		t.Type = r.Since(start)
		if withInit {
			if t.Init, err = readConstExpr(r); err != nil {
				return fmt.Errorf("table %d init: %w", i, err)
			}
		}
		m.tables = append(m.tables, t)
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.globals = make([]Global, 0, count)
	for i := uint32(0); i < count; i++ {
		start := r.Position()
		if err := skipGlobalType(r); err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
		g := Global{Type: r.Since(start)}
		if g.Init, err = readConstExpr(r); err != nil {
			return fmt.Errorf("global %d init: %w", i, err)
		}
		m.globals = append(m.globals, g)
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.exports = make([]Export, 0, count)
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return fmt.Errorf("export %d name: %w", i, err)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate export name %q", name)
		}
		seen[name] = struct{}{}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.exports = append(m.exports, Export{Name: name, Kind: kind, Idx: idx})
	}
	return nil
}

func parseStartSection(r *binary.Reader, m *Module) error {
	idx, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.start = &idx
	return nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.elements = make([]Element, 0, count)
	for i := uint32(0); i < count; i++ {
		var e Element
		if e.Flags, err = r.ReadU32(); err != nil {
			return err
		}
		if e.Flags > 7 {
			return fmt.Errorf("element %d: invalid flags %d", i, e.Flags)
		}
		active := e.Flags&0x01 == 0
		explicitTable := e.Flags&0x02 != 0
		usesExprs := e.Flags&0x04 != 0

		if active && explicitTable {
			if e.TableIdx, err = r.ReadU32(); err != nil {
				return err
			}
		}
		if active {
			if e.Offset, err = readConstExpr(r); err != nil {
				return fmt.Errorf("element %d offset: %w", i, err)
			}
		}
		if e.Flags&0x03 != 0 {
			start := r.Position()
			if usesExprs {
				err = skipValType(r)
			} else {
				_, err = r.ReadByte()
			}
			if err != nil {
				return fmt.Errorf("element %d type: %w", i, err)
			}
			e.RefType = r.Since(start)
		}

		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if usesExprs {
			e.Exprs = make([][]byte, n)
			for j := range e.Exprs {
				if e.Exprs[j], err = readConstExpr(r); err != nil {
					return fmt.Errorf("element %d expr %d: %w", i, j, err)
				}
			}
		} else {
			e.FuncIdxs = make([]uint32, n)
			for j := range e.FuncIdxs {
				if e.FuncIdxs[j], err = r.ReadU32(); err != nil {
					return err
				}
			}
		}
		m.elements = append(m.elements, e)
	}
	return nil
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	m.code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		raw, err := r.ReadBytes(int(size))
		if err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		br := binary.NewReader(raw)
		groups, err := br.ReadU32()
		if err != nil {
			return fmt.Errorf("body %d locals: %w", i, err)
		}
		for g := uint32(0); g < groups; g++ {
			if _, err := br.ReadU32(); err != nil {
				return fmt.Errorf("body %d locals: %w", i, err)
			}
			if err := skipValType(br); err != nil {
				return fmt.Errorf("body %d locals: %w", i, err)
			}
		}
		split := br.Position()
		body := FuncBody{Locals: raw[:split], Code: raw[split:]}
		if len(body.Code) == 0 || body.Code[len(body.Code)-1] != OpEnd {
			return fmt.Errorf("body %d: missing end opcode", i)
		}
		m.code = append(m.code, body)
	}
	return nil
}

// readConstExpr reads a constant expression up to and including its end
// opcode and returns its bytes.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, errors.New("unterminated constant expression")
		}
		if op == OpEnd {
			return r.Since(start), nil
		}
		if err := skipImmediates(r, op, nil); err != nil {
			return nil, err
		}
	}
}

func skipValType(r *binary.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b == valRefNull || b == valRef {
		_, err = r.ReadS64()
	}
	return err
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := r.ReadU64(); err != nil {
		return err
	}
	if flags&limitsHasMax != 0 {
		if _, err := r.ReadU64(); err != nil {
			return err
		}
	}
	// custom-page-sizes proposal
	if flags&0x08 != 0 {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func skipTableType(r *binary.Reader) error {
	if err := skipValType(r); err != nil {
		return err
	}
	return skipLimits(r)
}

func skipGlobalType(r *binary.Reader) error {
	if err := skipValType(r); err != nil {
		return err
	}
	_, err := r.ReadByte()
	return err
}

func skipTagType(r *binary.Reader) error {
	if _, err := r.ReadByte(); err != nil {
		return err
	}
	_, err := r.ReadU32()
	return err
}
