package container

import "encoding/binary"

// InputSection is one section to emit, supplied by the assembler in
// declaration order. Name must not be ".shstrtab" (reserved).
type InputSection struct {
	Name  string
	Type  uint32
	Flags uint32
	Data  []byte
}

// Build emits a complete KR32 object container: ident, header, one LOAD
// program header, section data, the .shstrtab string table, and the
// section header table, in that order. memorySize is the program header's
// file_size/memory_size field (current_address+1 per the assembler's
// address accounting).
func Build(sections []InputSection, memorySize uint32) []byte {
	// Section header index 0 is the reserved null entry, index 1 is
	// .shstrtab (ShstrtabIndex), then the caller's sections follow.
	shstrtabNames := make([]byte, 1, 64) // offset 0 is the empty name
	nameOffsets := make([]uint32, len(sections)+1)

	addName := func(name string) uint32 {
		off := uint32(len(shstrtabNames))
		shstrtabNames = append(shstrtabNames, name...)
		shstrtabNames = append(shstrtabNames, 0)
		return off
	}
	nameOffsets[0] = addName(".shstrtab")
	for i, s := range sections {
		nameOffsets[i+1] = addName(s.Name)
	}

	const prefixSize = ProgramHeaderOff + ProgramHeaderSize // 0x54

	offsets := make([]uint32, len(sections))
	var body []byte
	cursor := uint32(prefixSize)
	for i, s := range sections {
		offsets[i] = cursor
		body = append(body, s.Data...)
		cursor += uint32(len(s.Data))
	}
	shstrtabOffset := cursor
	body = append(body, shstrtabNames...)
	cursor += uint32(len(shstrtabNames))

	shOffset := cursor
	shCount := uint16(len(sections) + 2)

	out := make([]byte, prefixSize, prefixSize+len(body)+int(shCount)*SectionHeaderSize)
	writeIdent(out)
	writeHeader(out, shOffset, shCount)
	writeProgramHeader(out, memorySize)
	out = append(out, body...)

	out = appendSectionHeader(out, SectionHeader{}) // null entry
	out = appendSectionHeader(out, SectionHeader{
		NameOffset: nameOffsets[0],
		Type:       SectionTypeStrTab,
		Offset:     shstrtabOffset,
		Size:       uint32(len(shstrtabNames)),
	})
	for i, s := range sections {
		out = appendSectionHeader(out, SectionHeader{
			NameOffset: nameOffsets[i+1],
			Type:       s.Type,
			Flags:      s.Flags,
			Offset:     offsets[i],
			Size:       uint32(len(s.Data)),
		})
	}

	return out
}

func writeIdent(out []byte) {
	out[0], out[1], out[2], out[3] = MagicByte0, MagicByte1, MagicByte2, MagicByte3
	out[4] = Class32
	out[5] = DataLittle
	out[6] = Version1
	out[7] = ABI_KR32
	out[8] = ABIVersion0
	// out[9:16] reserved, already zero
}

func writeHeader(out []byte, shOffset uint32, shCount uint16) {
	binary.LittleEndian.PutUint16(out[0x10:0x12], TypeExecutable)
	binary.LittleEndian.PutUint16(out[0x12:0x14], MachineKR32)
	binary.LittleEndian.PutUint32(out[0x14:0x18], 1) // version
	binary.LittleEndian.PutUint32(out[0x18:0x1C], 0) // entry
	binary.LittleEndian.PutUint32(out[0x1C:0x20], ProgramHeaderOff)
	binary.LittleEndian.PutUint32(out[0x20:0x24], shOffset)
	binary.LittleEndian.PutUint32(out[0x24:0x28], 0) // flags
	binary.LittleEndian.PutUint16(out[0x28:0x2A], HeaderSize)
	binary.LittleEndian.PutUint16(out[0x2A:0x2C], ProgramHeaderSize)
	binary.LittleEndian.PutUint16(out[0x2C:0x2E], 1) // phcount
	binary.LittleEndian.PutUint16(out[0x2E:0x30], SectionHeaderSize)
	binary.LittleEndian.PutUint16(out[0x30:0x32], shCount)
	binary.LittleEndian.PutUint16(out[0x32:0x34], ShstrtabIndex)
}

func writeProgramHeader(out []byte, memorySize uint32) {
	base := ProgramHeaderOff
	binary.LittleEndian.PutUint32(out[base:base+4], ProgramHeaderTypeLoad)
	binary.LittleEndian.PutUint32(out[base+4:base+8], uint32(base+ProgramHeaderSize))
	binary.LittleEndian.PutUint32(out[base+8:base+0xC], 0) // vaddress
	binary.LittleEndian.PutUint32(out[base+0xC:base+0x10], 0)
	binary.LittleEndian.PutUint32(out[base+0x10:base+0x14], memorySize)
	binary.LittleEndian.PutUint32(out[base+0x14:base+0x18], memorySize)
	binary.LittleEndian.PutUint32(out[base+0x18:base+0x1C], ProgramHeaderFlagsRX)
	binary.LittleEndian.PutUint32(out[base+0x1C:base+0x20], 4) // align
}

func appendSectionHeader(out []byte, sh SectionHeader) []byte {
	var buf [SectionHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0x00:0x04], sh.NameOffset)
	binary.LittleEndian.PutUint32(buf[0x04:0x08], sh.Type)
	binary.LittleEndian.PutUint32(buf[0x08:0x0C], sh.Flags)
	binary.LittleEndian.PutUint32(buf[0x0C:0x10], sh.Address)
	binary.LittleEndian.PutUint32(buf[0x10:0x14], sh.Offset)
	binary.LittleEndian.PutUint32(buf[0x14:0x18], sh.Size)
	binary.LittleEndian.PutUint32(buf[0x18:0x1C], sh.Link)
	binary.LittleEndian.PutUint32(buf[0x1C:0x20], sh.Info)
	binary.LittleEndian.PutUint32(buf[0x20:0x24], sh.AddressAlign)
	binary.LittleEndian.PutUint32(buf[0x24:0x28], sh.EntrySize)
	return append(out, buf[:]...)
}
