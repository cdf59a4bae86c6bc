package assembler

import "kr32/internal/container"

// emit converts the assembled sections into a complete object container,
// in declaration order, with .text's reserved type/flags if present.
func (a *Assembler) emit() []byte {
	sections := make([]container.InputSection, len(a.sections))
	for i, s := range a.sections {
		sections[i] = container.InputSection{
			Name:  s.name,
			Type:  sectionType(s.kind),
			Flags: sectionFlags(s.kind),
			Data:  s.bytes,
		}
	}
	return container.Build(sections, a.currentAddress+1)
}

func sectionType(k sectionKind) uint32 {
	switch k {
	case kindText:
		return container.SectionTypeProgBits
	case kindData:
		return container.SectionTypeProgBits
	case kindBSS:
		return container.SectionTypeNoBits
	default:
		return 0
	}
}

func sectionFlags(k sectionKind) uint32 {
	switch k {
	case kindText:
		return container.SectionFlagAlloc | container.SectionFlagExecute
	case kindData, kindBSS:
		return container.SectionFlagAlloc | container.SectionFlagWrite
	default:
		return 0
	}
}

// Warnings returns non-fatal diagnostics accumulated during assembly (e.g.
// data-define value truncation); Assemble returns the same list directly.
func (a *Assembler) Warnings() []string {
	return a.warnings
}
