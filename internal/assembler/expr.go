package assembler

import (
	"fmt"
	"strconv"
	"strings"
)

// isHexLiteral reports whether token looks like a 0x-prefixed hex literal.
func isHexLiteral(tok string) bool {
	return len(tok) > 2 && tok[0] == '0' && (tok[1] == 'x' || tok[1] == 'X')
}

func isDecimalLiteral(tok string) bool {
	if tok == "" {
		return false
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isCharLiteral(tok string) bool {
	return len(tok) == 3 && tok[0] == '\'' && tok[2] == '\''
}

// isLabelReference reports whether an operand token names a label: any
// token beginning with an ASCII letter or '_'. It is only consulted for
// immediate operands; register names are not excluded, so "r0" in an
// immediate position is treated as a label reference.
func isLabelReference(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
	if !isAlpha {
		return false
	}
	return true
}

// parseImmediate parses a decimal, 0x-hex or 'c' character-literal
// immediate, returning its numeric value.
func parseImmediate(tok string) (uint64, error) {
	switch {
	case isCharLiteral(tok):
		return uint64(tok[1]), nil
	case isHexLiteral(tok):
		v, err := strconv.ParseUint(tok[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hex literal %q: %v", tok, err)
		}
		return v, nil
	case isDecimalLiteral(tok):
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal literal %q: %v", tok, err)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("not a numeric literal: %q", tok)
	}
}

// defineSize picks the smallest storage size (in bits) that holds value,
// per the data-define auto-sizing rule: decimal uses digit-count
// thresholds, hex uses hex-digit-count thresholds.
func defineSize(tok string) (bits int, truncated bool) {
	switch {
	case isHexLiteral(tok):
		digits := len(tok) - 2
		switch {
		case digits <= 2:
			return 8, false
		case digits <= 4:
			return 16, false
		case digits <= 8:
			return 32, false
		default:
			return 64, digits > 16
		}
	default:
		digits := len(strings.TrimPrefix(tok, "-"))
		switch {
		case digits <= 3:
			return 8, false
		case digits <= 5:
			return 16, false
		case digits <= 10:
			return 32, false
		default:
			return 64, digits > 20
		}
	}
}
