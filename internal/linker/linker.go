// Package linker implements the KR32 linker: it parses a single object
// container, validates its fixed fields, and flattens the loadable
// sections into a raw boot image with .text first.
package linker

import (
	"fmt"
	"strings"

	"kr32/internal/container"
)

// excludedExact and excludedPrefixes name the sections the second pass of
// Link skips even when non-empty: .text (already copied first), .shstrtab
// (container bookkeeping only), and symbol, relocation, debug, note and
// comment sections.
var excludedExact = map[string]bool{
	".text":     true,
	".shstrtab": true,
	".symtab":   true,
	".strtab":   true,
}

var excludedPrefixes = []string{".rel", ".debug", ".note", ".comment"}

func isExcluded(name string) bool {
	if excludedExact[name] {
		return true
	}
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Linker flattens one object container into a boot image.
type Linker struct {
	// BaseAddress is recorded from --base/-B but does not currently
	// relocate emitted bytes (spec §4.4, §9(b): a known, accepted gap).
	BaseAddress uint32
	BaseSet     bool
}

// Link parses objData and returns the flat boot image bytes.
func (l *Linker) Link(objData []byte) ([]byte, error) {
	obj, err := container.Read(objData)
	if err != nil {
		return nil, fmt.Errorf("parsing object: %w", err)
	}

	var out []byte
	if text, ok := obj.SectionByName(".text"); ok && len(text.Data) > 0 {
		out = append(out, text.Data...)
	}

	for _, s := range obj.Sections {
		if s.Header.NameOffset == 0 {
			continue
		}
		if isExcluded(s.Header.Name) {
			continue
		}
		if s.Header.Size == 0 {
			continue
		}
		out = append(out, s.Data...)
	}

	return out, nil
}
