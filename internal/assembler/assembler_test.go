package assembler

import (
	"bytes"
	"strings"
	"testing"

	"kr32/internal/container"
)

func TestAssembleLdiHlt(t *testing.T) {
	src := ".text\nldi r0, 0x2A\nhlt\n"
	obj, warnings, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	parsed, err := container.Read(obj)
	if err != nil {
		t.Fatalf("container.Read: %v", err)
	}
	text, ok := parsed.SectionByName(".text")
	if !ok {
		t.Fatal("no .text section emitted")
	}

	want := []byte{0x01, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x60}
	if !bytes.Equal(text.Data, want) {
		t.Errorf(".text = % x, want % x", text.Data, want)
	}
}

func TestAssembleLabelForwardReference(t *testing.T) {
	src := `
.text
jmpi target
ldi r0, 1
target:
hlt
`
	obj, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	parsed, err := container.Read(obj)
	if err != nil {
		t.Fatalf("container.Read: %v", err)
	}
	text, _ := parsed.SectionByName(".text")

	// jmpi (1 + 4 bytes) then ldi r0,1 (1 + 1 + 4 bytes) puts "target" at
	// offset 11.
	got := le32(text.Data[1:5])
	if got != 11 {
		t.Errorf("resolved target = %d, want 11", got)
	}
}

func TestAssembleUndefinedLabel(t *testing.T) {
	_, _, err := Assemble(".text\njmpi nowhere\nhlt\n")
	if err == nil {
		t.Fatal("expected error for undefined label")
	}
	if !strings.Contains(err.Error(), "undefined label") {
		t.Errorf("error = %v, want mention of undefined label", err)
	}
}

func TestAssembleRejectsSplitSections(t *testing.T) {
	src := ".text\nhlt\n.text\nhlt\n"
	_, _, err := Assemble(src)
	if err == nil {
		t.Fatal("expected error redefining .text")
	}
}

func TestAssembleRejectsShstrtabSection(t *testing.T) {
	_, _, err := Assemble(".shstrtab\n")
	if err == nil {
		t.Fatal("expected error declaring .shstrtab")
	}
}

func TestDataDefineAutoSizing(t *testing.T) {
	cases := []struct {
		tok  string
		bits int
	}{
		{"1", 8}, {"999", 8}, {"1000", 16}, {"99999", 16},
		{"100000", 32}, {"0xFF", 8}, {"0xFFFF", 16}, {"0xFFFFFFFF", 32},
	}
	for _, c := range cases {
		bits, _ := defineSize(c.tok)
		if bits != c.bits {
			t.Errorf("defineSize(%q) = %d bits, want %d", c.tok, bits, c.bits)
		}
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	src := ".text\nldi r1, 7\nadd r2, r1, r1\nhlt\n"
	obj, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	parsed, err := container.Read(obj)
	if err != nil {
		t.Fatalf("container.Read: %v", err)
	}
	text, _ := parsed.SectionByName(".text")

	out, err := Disassemble(text.Data)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	for _, want := range []string{"ldi r1, 0x7", "add r2, r1, r1", "hlt"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly %q missing %q", out, want)
		}
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
