package linker

import (
	"bytes"
	"testing"

	"kr32/internal/container"
)

func TestLinkFlattensTextFirst(t *testing.T) {
	obj := container.Build([]container.InputSection{
		{Name: ".data", Type: container.SectionTypeProgBits, Flags: container.SectionFlagAlloc | container.SectionFlagWrite, Data: []byte{0xAA, 0xBB}},
		{Name: ".text", Type: container.SectionTypeProgBits, Flags: container.SectionFlagAlloc | container.SectionFlagExecute, Data: []byte{0x60}},
	}, 3)

	l := &Linker{}
	image, err := l.Link(obj)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	want := []byte{0x60, 0xAA, 0xBB}
	if !bytes.Equal(image, want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestLinkSkipsDebugAndZeroSizeSections(t *testing.T) {
	obj := container.Build([]container.InputSection{
		{Name: ".text", Type: container.SectionTypeProgBits, Data: []byte{0x60}},
		{Name: ".debug_info", Type: container.SectionTypeProgBits, Data: []byte{0xFF, 0xFF}},
		{Name: ".bss", Type: container.SectionTypeNoBits, Data: nil},
	}, 1)

	l := &Linker{}
	image, err := l.Link(obj)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !bytes.Equal(image, []byte{0x60}) {
		t.Errorf("image = % x, want just .text", image)
	}
}

func TestLinkRejectsInvalidContainer(t *testing.T) {
	l := &Linker{}
	if _, err := l.Link([]byte{0, 1, 2, 3}); err == nil {
		t.Fatal("expected error for invalid container")
	}
}
