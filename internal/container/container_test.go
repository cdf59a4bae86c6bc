package container

import (
	"bytes"
	"testing"
)

func TestBuildThenReadRoundTrip(t *testing.T) {
	sections := []InputSection{
		{Name: ".text", Type: SectionTypeProgBits, Flags: SectionFlagAlloc | SectionFlagExecute, Data: []byte{0x01, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x60}},
		{Name: ".data", Type: SectionTypeProgBits, Flags: SectionFlagAlloc | SectionFlagWrite, Data: []byte{1, 2, 3, 4}},
		{Name: ".bss", Type: SectionTypeNoBits, Flags: SectionFlagAlloc | SectionFlagWrite, Data: nil},
	}
	image := Build(sections, 0x1000)

	obj, err := Read(image)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if obj.Header.Machine != MachineKR32 {
		t.Errorf("machine = 0x%x, want 0x%x", obj.Header.Machine, MachineKR32)
	}
	if obj.ProgramHeader.FileSize != 0x1000 {
		t.Errorf("file_size = 0x%x, want 0x1000", obj.ProgramHeader.FileSize)
	}
	if int(obj.Header.SHCount) != len(sections)+2 {
		t.Errorf("shcount = %d, want %d", obj.Header.SHCount, len(sections)+2)
	}

	text, ok := obj.SectionByName(".text")
	if !ok {
		t.Fatal(".text section not found")
	}
	if !bytes.Equal(text.Data, sections[0].Data) {
		t.Errorf(".text data = % x, want % x", text.Data, sections[0].Data)
	}

	data, ok := obj.SectionByName(".data")
	if !ok || !bytes.Equal(data.Data, sections[1].Data) {
		t.Errorf(".data section round-trip failed")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	image := Build([]InputSection{{Name: ".text"}}, 16)
	image[0] = 0x00
	if _, err := Read(image); err == nil {
		t.Fatal("expected error for corrupted magic, got nil")
	}
}

func TestReadRejectsTruncatedInput(t *testing.T) {
	if _, err := Read([]byte{0x7F, 'E', 'L', 'F'}); err == nil {
		t.Fatal("expected error for truncated input, got nil")
	}
}
