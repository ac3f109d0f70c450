package prepare

import (
	"bytes"
	"io"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

var header = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

// sectionRank orders the non-custom sections.
var sectionRank = map[wasm.SectionID]int{
	wasm.SectionIDType:      0,
	wasm.SectionIDImport:    1,
	wasm.SectionIDFunction:  2,
	wasm.SectionIDTable:     3,
	wasm.SectionIDMemory:    4,
	wasm.SectionIDGlobal:    5,
	wasm.SectionIDExport:    6,
	wasm.SectionIDStart:     7,
	wasm.SectionIDElement:   8,
	wasm.SectionIDDataCount: 9,
	wasm.SectionIDCode:      10,
	wasm.SectionIDData:      11,
}

// section is one entry of the module's section table.
type section struct {
	id      wasm.SectionID
	payload []byte
}

// sections splits code into its sections without decoding them.
func sections(code []byte) ([]section, error) {
	if len(code) < len(header) || !bytes.Equal(code[:len(header)], header) {
		return nil, errorf(Deserialization, "bad magic or version")
	}
	var out []section
	r := bytes.NewReader(code[len(header):])
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, _, err := leb128.DecodeUint32(r)
		if err != nil || int64(size) > int64(r.Len()) {
			return nil, errorf(Deserialization, "truncated section %d", id)
		}
		start := len(code) - r.Len()
		out = append(out, section{id: id, payload: code[start : start+int(size)]})
		_, _ = r.Seek(int64(size), io.SeekCurrent)
	}
	return out, nil
}

// checkLayout rejects what the decoder either accepts or reports without a
// precise kind: unknown or misordered sections and unsupported memories.
func checkLayout(code []byte) error {
	secs, err := sections(code)
	if err != nil {
		return err
	}
	last := -1
	for _, s := range secs {
		if s.id == wasm.SectionIDCustom {
			continue
		}
		rank, ok := sectionRank[s.id]
		if !ok {
			return errorf(Deserialization, "unknown section id %d", s.id)
		}
		if rank <= last {
			return errorf(Deserialization, "section %s out of order", wasm.SectionIDName(s.id))
		}
		last = rank
		if s.id == wasm.SectionIDMemory {
			if err := checkMemorySection(s.payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkMemorySection(payload []byte) error {
	r := bytes.NewReader(payload)
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return errorf(Deserialization, "malformed memory section")
	}
	if n > 1 {
		return errorf(Memory, "%d memories declared", n)
	}
	if n == 0 {
		return nil
	}
	switch flag, err := r.ReadByte(); {
	case err != nil:
		return errorf(Deserialization, "malformed memory section")
	case flag != 0x00 && flag != 0x01:
		return errorf(Memory, "memory flags 0x%02x", flag)
	}
	return nil
}

// decode parses code and applies the structural restrictions every protocol
// version shares. Custom sections are dropped.
func decode(code []byte) (*wasm.Module, error) {
	if err := checkLayout(code); err != nil {
		return nil, err
	}
	m, err := binary.DecodeModule(code, wasm.CoreFeaturesV2)
	if err != nil {
		return nil, errorf(Deserialization, "%v", err)
	}
	if m.StartSection != nil {
		return nil, errorf(StartFunction, "start section present")
	}

	for _, ft := range m.TypeSection {
		if hasV128(ft.Params) || hasV128(ft.Results) {
			return nil, errorf(UnsupportedInstruction, "v128 value type")
		}
	}
	for _, imp := range m.ImportSection {
		switch imp.Type {
		case wasm.ExternTypeFunc:
			if int(imp.DescFunc) >= len(m.TypeSection) {
				return nil, errorf(Deserialization, "type index %d out of range", imp.DescFunc)
			}
		case wasm.ExternTypeMemory:
			return nil, errorf(Memory, "memory import %s.%s", imp.Module, imp.Name)
		default:
			return nil, errorf(Instantiate, "non-function import %s.%s", imp.Module, imp.Name)
		}
	}
	for _, idx := range m.FunctionSection {
		if int(idx) >= len(m.TypeSection) {
			return nil, errorf(Deserialization, "type index %d out of range", idx)
		}
	}
	for _, g := range m.GlobalSection {
		if g.Type.ValType == wasm.ValueTypeV128 {
			return nil, errorf(UnsupportedInstruction, "v128 global")
		}
	}
	for _, c := range m.CodeSection {
		if hasV128(c.LocalTypes) {
			return nil, errorf(UnsupportedInstruction, "v128 local")
		}
	}
	for _, e := range m.ExportSection {
		if hasReservedPrefix(e.Name) {
			return nil, errorf(ReservedExport, "export %q", e.Name)
		}
	}

	m.NameSection = nil
	m.CustomSections = nil
	return m, nil
}

func hasV128(ts []wasm.ValueType) bool {
	for _, t := range ts {
		if t == wasm.ValueTypeV128 {
			return true
		}
	}
	return false
}

func funcType(ft *wasm.FunctionType) FuncType {
	return FuncType{Params: valTypes(ft.Params), Results: valTypes(ft.Results)}
}

func valTypes(ts []wasm.ValueType) []ValType {
	out := make([]ValType, len(ts))
	for i, t := range ts {
		out[i] = ValType(t)
	}
	return out
}

// signature resolves function idx in the joint index space of imported and
// defined functions.
func signature(m *wasm.Module, idx uint32) (*wasm.FunctionType, bool) {
	imported := uint32(len(m.ImportSection))
	if idx < imported {
		return m.TypeSection[m.ImportSection[idx].DescFunc], true
	}
	if uint64(idx-imported) >= uint64(len(m.FunctionSection)) {
		return nil, false
	}
	return m.TypeSection[m.FunctionSection[idx-imported]], true
}

// encode writes m back out. The encoder has no data count section, so it is
// spliced in ahead of the code section when the input carried one.
func encode(m *wasm.Module) []byte {
	out := binary.EncodeModule(m)
	if m.DataCountSection == nil {
		return out
	}
	payload := leb128.EncodeUint32(*m.DataCountSection)
	dc := append([]byte{wasm.SectionIDDataCount}, leb128.EncodeUint32(uint32(len(payload)))...)
	dc = append(dc, payload...)

	secs, _ := sections(out)
	at := len(out)
	pos := len(header)
	for _, s := range secs {
		if s.id == wasm.SectionIDCode || s.id == wasm.SectionIDData || s.id == wasm.SectionIDCustom {
			at = pos
			break
		}
		pos += 1 + len(leb128.EncodeUint32(uint32(len(s.payload)))) + len(s.payload)
	}
	spliced := make([]byte, 0, len(out)+len(dc))
	spliced = append(spliced, out[:at]...)
	spliced = append(spliced, dc...)
	return append(spliced, out[at:]...)
}
