package container

import (
	"encoding/binary"
	"fmt"
)

// Read parses a KR32 object container, validating the fixed fields listed
// in the package doc against their constants. Any divergence is a fatal
// error. The header's type, version, entry and flags, the ABI version, and
// the program header's paddr, sizes, flags and align are read but not
// checked.
func Read(data []byte) (*Object, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("file too small to be a valid container (%d bytes, need at least %d)", len(data), HeaderSize)
	}

	var magic [4]byte
	copy(magic[:], data[0:4])
	class, dataEnc, version, abi := data[4], data[5], data[6], data[7]
	if err := validateIdent(magic, class, dataEnc, version, abi); err != nil {
		return nil, err
	}

	obj := &Object{}
	h := &obj.Header
	h.Type = binary.LittleEndian.Uint16(data[0x10:0x12])
	h.Machine = binary.LittleEndian.Uint16(data[0x12:0x14])
	h.Version = binary.LittleEndian.Uint32(data[0x14:0x18])
	h.Entry = binary.LittleEndian.Uint32(data[0x18:0x1C])
	h.PHOffset = binary.LittleEndian.Uint32(data[0x1C:0x20])
	h.SHOffset = binary.LittleEndian.Uint32(data[0x20:0x24])
	h.Flags = binary.LittleEndian.Uint32(data[0x24:0x28])
	h.Size = binary.LittleEndian.Uint16(data[0x28:0x2A])
	h.PHEntrySize = binary.LittleEndian.Uint16(data[0x2A:0x2C])
	h.PHCount = binary.LittleEndian.Uint16(data[0x2C:0x2E])
	h.SHEntrySize = binary.LittleEndian.Uint16(data[0x2E:0x30])
	h.SHCount = binary.LittleEndian.Uint16(data[0x30:0x32])
	h.SHNameIndex = binary.LittleEndian.Uint16(data[0x32:0x34])

	if h.Machine != MachineKR32 {
		return nil, fmt.Errorf("unsupported machine 0x%04x (want kr32 machine 0x%04x)", h.Machine, MachineKR32)
	}
	if h.PHOffset != ProgramHeaderOff {
		return nil, fmt.Errorf("invalid program header offset 0x%x (want 0x%x)", h.PHOffset, uint32(ProgramHeaderOff))
	}
	if h.Size != HeaderSize {
		return nil, fmt.Errorf("invalid header size 0x%x (want 0x%x)", h.Size, uint16(HeaderSize))
	}
	if h.PHEntrySize != ProgramHeaderSize {
		return nil, fmt.Errorf("invalid program header entry size 0x%x (want 0x%x)", h.PHEntrySize, uint16(ProgramHeaderSize))
	}
	if h.PHCount != 1 {
		return nil, fmt.Errorf("invalid program header count %d (want 1)", h.PHCount)
	}
	if h.SHEntrySize != SectionHeaderSize {
		return nil, fmt.Errorf("invalid section header entry size 0x%x (want 0x%x)", h.SHEntrySize, uint16(SectionHeaderSize))
	}
	if h.SHCount == 0 {
		return nil, fmt.Errorf("no section headers found")
	}
	if h.SHNameIndex >= h.SHCount {
		return nil, fmt.Errorf("invalid section header name index %d (shcount=%d)", h.SHNameIndex, h.SHCount)
	}

	phOff := h.PHOffset
	if int(phOff)+ProgramHeaderSize > len(data) {
		return nil, fmt.Errorf("program header out of range")
	}
	ph := &obj.ProgramHeader
	ph.Type = binary.LittleEndian.Uint32(data[phOff : phOff+4])
	ph.Offset = binary.LittleEndian.Uint32(data[phOff+4 : phOff+8])
	ph.VAddress = binary.LittleEndian.Uint32(data[phOff+8 : phOff+0xC])
	ph.PAddress = binary.LittleEndian.Uint32(data[phOff+0xC : phOff+0x10])
	ph.FileSize = binary.LittleEndian.Uint32(data[phOff+0x10 : phOff+0x14])
	ph.MemorySize = binary.LittleEndian.Uint32(data[phOff+0x14 : phOff+0x18])
	ph.Flags = binary.LittleEndian.Uint32(data[phOff+0x18 : phOff+0x1C])
	ph.Align = binary.LittleEndian.Uint32(data[phOff+0x1C : phOff+0x20])

	if ph.Type != ProgramHeaderTypeLoad {
		return nil, fmt.Errorf("invalid program header type 0x%x (want LOAD=0x%x)", ph.Type, uint32(ProgramHeaderTypeLoad))
	}
	if ph.Offset != phOff+ProgramHeaderSize {
		return nil, fmt.Errorf("invalid program header data offset 0x%x", ph.Offset)
	}
	if ph.VAddress != 0 {
		return nil, fmt.Errorf("invalid program header virtual address 0x%x (want 0)", ph.VAddress)
	}

	shOff := int(h.SHOffset)
	sectionCount := int(h.SHCount)
	if shOff+sectionCount*SectionHeaderSize > len(data) {
		return nil, fmt.Errorf("section header table out of range")
	}

	headers := make([]SectionHeader, sectionCount)
	for i := range headers {
		base := shOff + i*SectionHeaderSize
		sh := &headers[i]
		sh.NameOffset = binary.LittleEndian.Uint32(data[base : base+4])
		sh.Type = binary.LittleEndian.Uint32(data[base+4 : base+8])
		sh.Flags = binary.LittleEndian.Uint32(data[base+8 : base+0xC])
		sh.Address = binary.LittleEndian.Uint32(data[base+0xC : base+0x10])
		sh.Offset = binary.LittleEndian.Uint32(data[base+0x10 : base+0x14])
		sh.Size = binary.LittleEndian.Uint32(data[base+0x14 : base+0x18])
		sh.Link = binary.LittleEndian.Uint32(data[base+0x18 : base+0x1C])
		sh.Info = binary.LittleEndian.Uint32(data[base+0x1C : base+0x20])
		sh.AddressAlign = binary.LittleEndian.Uint32(data[base+0x20 : base+0x24])
		sh.EntrySize = binary.LittleEndian.Uint32(data[base+0x24 : base+0x28])
	}

	shstrtab := headers[h.SHNameIndex]
	strtabStart := int(shstrtab.Offset)
	strtabEnd := strtabStart + int(shstrtab.Size)
	if strtabEnd > len(data) {
		return nil, fmt.Errorf(".shstrtab out of range")
	}
	strtab := data[strtabStart:strtabEnd]

	obj.Sections = make([]Section, sectionCount)
	for i, sh := range headers {
		if sh.NameOffset != 0 {
			sh.Name = cString(strtab, int(sh.NameOffset))
		}
		end := int(sh.Offset) + int(sh.Size)
		if sh.Size > 0 {
			if end > len(data) {
				return nil, fmt.Errorf("section %q data out of range", sh.Name)
			}
			obj.Sections[i] = Section{Header: sh, Data: data[sh.Offset:end]}
		} else {
			obj.Sections[i] = Section{Header: sh}
		}
	}

	return obj, nil
}

func cString(buf []byte, offset int) string {
	if offset >= len(buf) {
		return ""
	}
	end := offset
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[offset:end])
}
