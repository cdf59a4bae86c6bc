// kr32ld - KR32 linker
//
// Usage: kr32ld <object> [-o|/Fo <output>] [--base|/B <address>]
//
// Parses one KR32 object container and flattens its loadable sections
// (.text first) into a raw boot image.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kr32/internal/linker"
)

func main() {
	var (
		output  string
		baseStr string
		input   string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "/Fo":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "kr32ld: expected output file after %s\n", args[i])
				os.Exit(1)
			}
			i++
			output = args[i]
		case "--base", "/B":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "kr32ld: expected base address after %s\n", args[i])
				os.Exit(1)
			}
			i++
			baseStr = args[i]
		default:
			if input != "" {
				fmt.Fprintf(os.Stderr, "kr32ld: unexpected argument %q\n", args[i])
				os.Exit(1)
			}
			input = args[i]
		}
	}

	if input == "" {
		usage()
		os.Exit(1)
	}

	ld := &linker.Linker{}
	if baseStr != "" {
		base, err := parseAddress(baseStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kr32ld: %v\n", err)
			os.Exit(1)
		}
		ld.BaseAddress = base
		ld.BaseSet = true
	} else {
		fmt.Fprintf(os.Stderr, "Warning: Base address not set, defaulting to 0x00000000\n")
	}

	if output == "" {
		output = defaultOutput(input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kr32ld: reading %s: %v\n", input, err)
		os.Exit(1)
	}

	image, err := ld.Link(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kr32ld: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, image, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "kr32ld: writing %s: %v\n", output, err)
		os.Exit(1)
	}
}

// parseAddress accepts decimal or 0x-prefixed hex, matching the reference
// linker's base-address syntax. Values too large for 32 bits are truncated
// with a warning rather than rejected.
func parseAddress(s string) (uint32, error) {
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid base address %q: %v", s, err)
	}
	if v > 0xFFFFFFFF {
		fmt.Fprintf(os.Stderr, "Warning: Base address is larger than 32-bits, truncating value\n")
	}
	return uint32(v), nil
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".bin"
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <object> [-o|/Fo <output>] [--base|/B <address>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n  -o, /Fo <output>     Output file (default: <object> with .bin extension)\n")
	fmt.Fprintf(os.Stderr, "  --base, /B <address>  Base address, recorded only; emitted bytes are not relocated (decimal or 0x-hex)\n")
}
