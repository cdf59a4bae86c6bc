// Package assembler implements the KR32 two-pass assembler: a tokenizer
// that classifies label definitions, section directives, data defines and
// instructions in one forward scan, followed by a label-resolution pass
// that patches every forward/backward label reference.
package assembler

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"kr32/internal/isa"
)

// Assemble translates KR32 source text into an object container's bytes,
// along with any non-fatal warnings (e.g. data-define truncation).
func Assemble(src string) ([]byte, []string, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, nil, err
	}

	a := newAssembler()
	if err := a.run(tokens); err != nil {
		return nil, nil, err
	}
	if err := a.resolveFixups(); err != nil {
		return nil, nil, err
	}

	return a.emit(), a.warnings, nil
}

func (a *Assembler) run(tokens []Token) error {
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		text := tok.Text

		switch {
		case text[len(text)-1] == ':' && len(text) > 1:
			name := text[:len(text)-1]
			if existing, ok := a.labels[name]; ok && existing.defined {
				return &Error{Line: tok.Line, Msg: fmt.Sprintf("duplicate label %q", name)}
			}
			a.labels[name] = &label{name: name, address: a.currentAddress, defined: true}
			i++

		case text[0] == '.':
			if err := a.directive(tok); err != nil {
				return err
			}
			i++

		case text[0] == '=':
			if err := a.define(tok); err != nil {
				return err
			}
			i++

		default:
			op, ok := isa.Lookup(text)
			if !ok {
				return &Error{Line: tok.Line, Msg: fmt.Sprintf("unknown mnemonic %q", text)}
			}
			n, err := a.operandCount(op)
			if err != nil {
				return &Error{Line: tok.Line, Msg: err.Error()}
			}
			if i+n >= len(tokens) {
				return &Error{Line: tok.Line, Msg: fmt.Sprintf("%s: expected %d operand(s), found %d", text, n, len(tokens)-i-1)}
			}
			operands := tokens[i+1 : i+1+n]
			if err := a.encodeInstruction(tok, op, operands); err != nil {
				return err
			}
			i += 1 + n
		}
	}
	return nil
}

func (a *Assembler) operandCount(op isa.Op) (int, error) {
	switch op.Shape {
	case isa.NoOperand:
		return 0, nil
	case isa.OneRegister, isa.OneImmediate, isa.System:
		return 1, nil
	case isa.TwoRegister, isa.OneRegisterOneImmediate:
		return 2, nil
	case isa.ThreeRegister:
		return 3, nil
	default:
		return 0, fmt.Errorf("%s: unsupported operand shape", op.Mnemonic)
	}
}

func (a *Assembler) directive(tok Token) error {
	name := tok.Text
	if name == ".shstrtab" {
		return &Error{Line: tok.Line, Msg: "\".shstrtab\" is a reserved section name"}
	}

	if existing, ok := a.sectionByName[name]; ok {
		if existing.defined {
			return &Error{Line: tok.Line, Msg: fmt.Sprintf("section %q already defined (split sections are not supported)", name)}
		}
		a.currentSection = existing
		existing.defined = true
		return nil
	}

	s := &section{name: name, kind: sectionKindOf(name), defined: true}
	a.sectionByName[name] = s
	a.sections = append(a.sections, s)
	a.currentSection = s
	return nil
}

func sectionKindOf(name string) sectionKind {
	switch name {
	case ".text":
		return kindText
	case ".data":
		return kindData
	case ".bss":
		return kindBSS
	default:
		return kindOther
	}
}

func (a *Assembler) define(tok Token) error {
	if a.currentSection == nil {
		return &Error{Line: tok.Line, Msg: "data define outside of any section"}
	}
	valueTok := tok.Text[1:]
	bits, truncated := defineSize(valueTok)
	value, err := parseImmediate(valueTok)
	if err != nil && (isDecimalLiteral(valueTok) || isHexLiteral(valueTok)) {
		// A well-formed literal only fails here when it is wider than 64
		// bits; keep its low 64 bits.
		digits, base := valueTok, 10
		if isHexLiteral(valueTok) {
			digits, base = valueTok[2:], 16
		}
		if wide, ok := new(big.Int).SetString(digits, base); ok && wide.Sign() >= 0 {
			value = wide.And(wide, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
			bits, truncated, err = 64, true, nil
		}
	}
	if err != nil {
		return &Error{Line: tok.Line, Msg: err.Error()}
	}
	if truncated {
		a.warnings = append(a.warnings, fmt.Sprintf("line %d: value %q truncated to %d bits", tok.Line, valueTok, bits))
	}

	buf := make([]byte, bits/8)
	switch bits {
	case 8:
		buf[0] = byte(value)
	case 16:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 32:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	case 64:
		binary.LittleEndian.PutUint64(buf, value)
	}

	a.currentSection.bytes = append(a.currentSection.bytes, buf...)
	a.currentAddress += uint32(len(buf))
	return nil
}

func (a *Assembler) encodeInstruction(tok Token, op isa.Op, operands []Token) error {
	if a.currentSection == nil {
		return &Error{Line: tok.Line, Msg: "instruction outside of any section"}
	}
	s := a.currentSection
	s.bytes = append(s.bytes, op.Opcode)
	a.currentAddress++

	writeRegister := func(t Token) error {
		id, ok := isa.RegisterNames[t.Text]
		if !ok {
			return &Error{Line: t.Line, Msg: fmt.Sprintf("unknown register %q", t.Text)}
		}
		s.bytes = append(s.bytes, id)
		a.currentAddress++
		return nil
	}

	writeImmediate32 := func(t Token) error {
		if isLabelReference(t.Text) {
			a.fixups = append(a.fixups, fixup{section: s, offset: len(s.bytes), size: 4, name: t.Text, line: t.Line})
			s.bytes = append(s.bytes, 0, 0, 0, 0)
			a.currentAddress += 4
			return nil
		}
		v, err := parseImmediate(t.Text)
		if err != nil {
			return &Error{Line: t.Line, Msg: err.Error()}
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		s.bytes = append(s.bytes, buf[:]...)
		a.currentAddress += 4
		return nil
	}

	writeImmediate8 := func(t Token) error {
		v, err := parseImmediate(t.Text)
		if err != nil {
			return &Error{Line: t.Line, Msg: err.Error()}
		}
		s.bytes = append(s.bytes, byte(v))
		a.currentAddress++
		return nil
	}

	switch op.Shape {
	case isa.NoOperand:
		return nil
	case isa.OneRegister:
		return writeRegister(operands[0])
	case isa.TwoRegister:
		if err := writeRegister(operands[0]); err != nil {
			return err
		}
		return writeRegister(operands[1])
	case isa.ThreeRegister:
		if err := writeRegister(operands[0]); err != nil {
			return err
		}
		if err := writeRegister(operands[1]); err != nil {
			return err
		}
		return writeRegister(operands[2])
	case isa.OneRegisterOneImmediate:
		if err := writeRegister(operands[0]); err != nil {
			return err
		}
		return writeImmediate32(operands[1])
	case isa.OneImmediate:
		return writeImmediate32(operands[0])
	case isa.System:
		return writeImmediate8(operands[0])
	default:
		return &Error{Line: tok.Line, Msg: fmt.Sprintf("%s: unsupported operand shape", op.Mnemonic)}
	}
}

func (a *Assembler) resolveFixups() error {
	for _, f := range a.fixups {
		l, ok := a.labels[f.name]
		if !ok || !l.defined {
			return &Error{Line: f.line, Msg: fmt.Sprintf("undefined label %q", f.name)}
		}
		binary.LittleEndian.PutUint32(f.section.bytes[f.offset:f.offset+4], l.address)
	}
	return nil
}
