// kr32emu - KR32 emulator
//
// Usage: kr32emu [options] <image>
//
// Loads a flat boot image produced by kr32ld at address 0 and runs it to
// completion (hlt, an unhandled exception, or the optional cycle limit).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"kr32/internal/emu"
	"kr32/internal/isa"
	"kr32/internal/video"
)

// statusInterval is how often the interactive progress line is refreshed.
const statusInterval = 200 * time.Millisecond

var (
	memorySize  = flag.String("m", "", "Memory size, e.g. 4096, 64K, 1M (default 4096 bytes)")
	printStatus = flag.Bool("p", false, "Print final register state")
	graphical   = flag.Bool("g", false, "Open a graphical framebuffer/keyboard window")
	traceFile   = flag.String("trace", "", "Write an execution trace to file")
	maxCycles   = flag.Uint64("max-cycles", 0, "Stop after N executed instructions (0 = unlimited)")
)

func init() {
	flag.StringVar(memorySize, "memory", "", "alias for -m")
	flag.BoolVar(printStatus, "print-status", false, "alias for -p")
	flag.BoolVar(graphical, "graphical", false, "alias for -g")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kr32emu: reading %s: %v\n", imagePath, err)
		os.Exit(1)
	}

	size := uint32(isa.DefaultMemorySize)
	if *memorySize != "" {
		size, err = parseMemorySize(*memorySize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kr32emu: %v\n", err)
			os.Exit(1)
		}
	}
	if uint64(len(data)) > uint64(size) {
		size = uint32(len(data))
	}

	var out video.Output
	if *graphical {
		out = video.New()
	}

	mem := emu.NewMemory(size, out)
	mem.LoadImage(data)

	var tracer *emu.Tracer
	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kr32emu: creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		tracer = emu.NewTracer(f)
		fmt.Fprintf(f, "kr32emu trace\n")
		fmt.Fprintf(f, "image: %s (%d bytes)\n", imagePath, len(data))
		fmt.Fprintf(f, "memory: %d bytes\n\n", size)
	}

	cpu := emu.NewCPU(mem, tracer)
	cpu.SetMaxCycles(*maxCycles)

	// An interactive terminal gets a live-updating cycle count instead of
	// only the final dump; a pipe or file redirect gets just the dump,
	// since an ever-advancing \r line would make the output unreadable.
	interactive := *printStatus && !*graphical && term.IsTerminal(int(os.Stdout.Fd()))

	startTime := time.Now()
	var runErr error
	if interactive {
		runErr = runWithStatusLine(cpu)
	} else if *graphical {
		runErr = runGraphical(cpu, out)
	} else {
		runErr = cpu.Run()
	}
	elapsed := time.Since(startTime)

	if interactive {
		fmt.Fprintf(os.Stdout, "\r%-40s\n", fmt.Sprintf("cycles: %d", cpu.Cycles()))
	}

	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "Execution completed\n")
	fmt.Fprintf(os.Stderr, "Cycles: %d\n", cpu.Cycles())
	fmt.Fprintf(os.Stderr, "Time: %v\n", elapsed.Round(time.Millisecond))
	if elapsed.Seconds() > 0 {
		mhz := (float64(cpu.Cycles()) / 1_000_000.0) / elapsed.Seconds()
		fmt.Fprintf(os.Stderr, "Speed: %.3f MHz\n", mhz)
	}
	fmt.Fprintf(os.Stderr, "Halt: %s\n", cpu.HaltReason())

	if *printStatus {
		printRegisters(cpu)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "kr32emu: %v\n", runErr)
		os.Exit(1)
	}
}

// runGraphical drives the CPU in a background goroutine while the video
// backend's event loop runs on the main goroutine, matching ebiten's
// requirement that RunGame be called from main.
func runGraphical(cpu *emu.CPU, out video.Output) error {
	done := make(chan error, 1)
	go func() {
		done <- cpu.Run()
		out.Stop()
	}()

	if err := out.Run(); err != nil {
		return err
	}
	return <-done
}

// runWithStatusLine runs the CPU on a background goroutine and polls
// cpu.Cycles() on the main goroutine to print a live-updating progress
// line, terminated once Run returns.
func runWithStatusLine(cpu *emu.CPU) error {
	done := make(chan error, 1)
	go func() { done <- cpu.Run() }()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			fmt.Fprintf(os.Stdout, "\rcycles: %d", cpu.Cycles())
		}
	}
}

func printRegisters(cpu *emu.CPU) {
	fmt.Fprintf(os.Stderr, "\nFinal register state:\n")
	for i := 0; i <= isa.R15; i++ {
		fmt.Fprintf(os.Stderr, "  r%-3d= 0x%08x\n", i, cpu.Register(byte(i)))
	}
	fmt.Fprintf(os.Stderr, "  sp   = 0x%08x\n", cpu.Register(isa.SP))
	fmt.Fprintf(os.Stderr, "  ip   = 0x%08x\n", cpu.IP())
}

// parseMemorySize accepts a plain byte count or a base-10 K/M/G-suffixed
// value, e.g. "64K" = 64000. Values below isa.MinMemorySize are rejected.
func parseMemorySize(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K', 'k':
			mult = 1_000
			s = s[:n-1]
		case 'M', 'm':
			mult = 1_000_000
			s = s[:n-1]
		case 'G', 'g':
			mult = 1_000_000_000
			s = s[:n-1]
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %v", s, err)
	}
	total := n * mult
	if total < isa.MinMemorySize {
		return 0, fmt.Errorf("memory size %d below minimum of %d bytes", total, isa.MinMemorySize)
	}
	if total > 0xFFFFFFFF {
		return 0, fmt.Errorf("memory size %d exceeds 32-bit address space", total)
	}
	return uint32(total), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <image>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "KR32 emulator - runs a flat boot image produced by kr32ld\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}
