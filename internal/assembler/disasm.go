package assembler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"kr32/internal/isa"
)

// registerNames maps a register ID back to assembler syntax, the inverse of
// isa.RegisterNames, used by the disassembler.
var registerNames = func() map[byte]string {
	m := make(map[byte]string, len(isa.RegisterNames))
	for name, id := range isa.RegisterNames {
		// Every ID in isa.RegisterNames has exactly one name, so the
		// inverse map has no collisions.
		m[id] = name
	}
	return m
}()

// Disassemble decodes a byte stream (typically a linked .text section) back
// into KR32 mnemonic text, one instruction per line, for round-trip
// checking against the assembler's own encoder.
func Disassemble(code []byte) (string, error) {
	var out strings.Builder
	ip := 0
	for ip < len(code) {
		opcode := code[ip]
		op := isa.Opcodes[opcode]
		if op.Mnemonic == "" {
			return "", fmt.Errorf("offset 0x%x: invalid opcode 0x%02x", ip, opcode)
		}
		size := op.Shape.Size()
		if ip+1+size > len(code) {
			return "", fmt.Errorf("offset 0x%x: %s: truncated operands", ip, op.Mnemonic)
		}
		operands := code[ip+1 : ip+1+size]
		fmt.Fprintf(&out, "%s\n", formatInstruction(op, operands))
		ip += 1 + size
	}
	return out.String(), nil
}

func formatInstruction(op isa.Op, operands []byte) string {
	reg := func(i int) string {
		if name, ok := registerNames[operands[i]]; ok {
			return name
		}
		return fmt.Sprintf("0x%02x", operands[i])
	}
	imm32 := func(off int) uint32 { return binary.LittleEndian.Uint32(operands[off : off+4]) }

	switch op.Shape {
	case isa.NoOperand:
		return op.Mnemonic
	case isa.OneRegister:
		return fmt.Sprintf("%s %s", op.Mnemonic, reg(0))
	case isa.TwoRegister:
		return fmt.Sprintf("%s %s, %s", op.Mnemonic, reg(0), reg(1))
	case isa.ThreeRegister:
		return fmt.Sprintf("%s %s, %s, %s", op.Mnemonic, reg(0), reg(1), reg(2))
	case isa.OneRegisterOneImmediate:
		return fmt.Sprintf("%s %s, 0x%x", op.Mnemonic, reg(0), imm32(1))
	case isa.OneImmediate:
		return fmt.Sprintf("%s 0x%x", op.Mnemonic, imm32(0))
	case isa.System:
		return fmt.Sprintf("%s 0x%x", op.Mnemonic, operands[0])
	default:
		return op.Mnemonic
	}
}
