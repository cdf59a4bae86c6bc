// kr32asm - KR32 assembler
//
// Usage: kr32asm [-d] <source> [-o <output>]
//
// Assembles KR32 mnemonic source into an object container, or with -d
// disassembles an object's .text section back to mnemonic text.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kr32/internal/assembler"
	"kr32/internal/container"
)

func main() {
	disasm := flag.Bool("d", false, "disassemble mode")
	output := flag.String("o", "", "output file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	input := flag.Arg(0)
	// Flags may also follow the source path, as in the usage line.
	flag.CommandLine.Parse(flag.Args()[1:])

	if *disasm {
		if err := disassemble(input); err != nil {
			fmt.Fprintf(os.Stderr, "kr32asm: %v\n", err)
			os.Exit(1)
		}
		return
	}

	out := *output
	if out == "" {
		out = defaultOutput(input)
	}
	if err := assemble(input, out); err != nil {
		fmt.Fprintf(os.Stderr, "kr32asm: %v\n", err)
		os.Exit(1)
	}
}

func assemble(input, output string) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	obj, warnings, err := assembler.Assemble(string(src))
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "kr32asm: warning: %s\n", w)
	}

	if err := os.WriteFile(output, obj, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return nil
}

func disassemble(input string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}
	obj, err := container.Read(data)
	if err != nil {
		return err
	}
	text, ok := obj.SectionByName(".text")
	if !ok {
		return fmt.Errorf("%s: no .text section", input)
	}
	out, err := assembler.Disassemble(text.Data)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".elf"
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-d] <source> [-o <output>]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "KR32 assembler - translates mnemonic source into an object container\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
