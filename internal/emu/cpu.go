// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

// Package emu implements the KR32 emulator: CPU state, instruction decode
// and execution, the flat+MMIO memory model, and the shared-handler
// interrupt/exception mechanism.
package emu

import (
	"fmt"
	"sync/atomic"

	"kr32/internal/isa"
	"kr32/internal/video"
)

// Mode is the CPU's privilege mode. System mode can address sys0..sys7 and
// execute the sys instruction's privileged sub-operations; user mode cannot.
type Mode int

const (
	System Mode = iota
	User
)

// CPU holds all KR32 architectural and execution state.
type CPU struct {
	regs [16]uint32 // r0..r15
	sp   uint32
	sys  [8]uint32 // sys0..sys7
	ip   uint32
	mode Mode

	mem *Memory

	handlerAddress   uint32
	issuingException bool

	halted     bool
	haltReason string

	cycles    atomic.Uint64 // read concurrently by a caller polling progress during Run
	maxCycles uint64        // 0 means unlimited

	tracer *Tracer
}

// NewCPU builds a CPU over mem, booting at the fixed boot vector in system
// mode with no handler installed.
func NewCPU(mem *Memory, tracer *Tracer) *CPU {
	return &CPU{
		mem:    mem,
		ip:     isa.BootVector,
		mode:   System,
		tracer: tracer,
	}
}

// SetMaxCycles bounds Run to at most n executed instructions; 0 disables
// the limit.
func (c *CPU) SetMaxCycles(n uint64) { c.maxCycles = n }

// Halted reports whether the CPU has stopped (hlt, unhandled exception, or
// the cycle limit).
func (c *CPU) Halted() bool { return c.halted }

// HaltReason describes why Run returned, for the caller's status line.
func (c *CPU) HaltReason() string { return c.haltReason }

// Cycles returns the number of instructions executed so far. Safe to call
// from another goroutine while Run is still executing, e.g. to print a
// live progress line.
func (c *CPU) Cycles() uint64 { return c.cycles.Load() }

// Run executes instructions until halted, a nested exception is hit, or the
// cycle limit is reached.
func (c *CPU) Run() error {
	for !c.halted {
		if c.maxCycles != 0 && c.cycles.Load() >= c.maxCycles {
			c.halted = true
			c.haltReason = "max cycle count reached"
			return nil
		}

		ip := c.ip
		inst := decode(c.mem, ip)
		c.tracer.preInstruction(c, ip, inst)

		if !inst.Valid {
			c.raiseException(isa.ExceptionInvalidInstruction, ip)
			c.cycles.Add(1)
			continue
		}

		c.ip += inst.Len()
		c.execute(inst, ip)
		c.cycles.Add(1)
	}
	return nil
}

// getRegister resolves a register ID to a pointer at its storage, enforcing
// the privilege rule that sys0..sys7 are only reachable in system mode.
// On failure it raises the appropriate exception itself and returns
// (nil, false); the caller must stop handling the current instruction.
func (c *CPU) getRegister(id byte, faultIP uint32) (*uint32, bool) {
	switch {
	case id <= isa.R15:
		return &c.regs[id], true
	case id == isa.SP:
		return &c.sp, true
	case id >= isa.Sys0 && id <= isa.Sys7:
		if c.mode != System {
			c.raiseException(isa.ExceptionUnpriviledgedMemory, faultIP)
			return nil, false
		}
		return &c.sys[id-isa.Sys0], true
	default:
		c.raiseException(isa.ExceptionInvalidInstruction, faultIP)
		return nil, false
	}
}

// raiseException implements the shared-handler-address mechanism used by
// both hardware exceptions and the int instruction: push the current ip
// (already advanced past the faulting instruction), stash
// diagnostic state in sys7/sys0/sys1, and jump to the handler. issuingException
// is set here and never cleared by this path; once any exception has been
// dispatched, a second one is unrecoverable and halts immediately, matching
// the reference implementation, which never resets is_issuing_exception
// once set.
func (c *CPU) raiseException(code byte, faultIP uint32) {
	if c.issuingException {
		c.halted = true
		c.haltReason = fmt.Sprintf("Nested exception: 0x%02x", code)
		return
	}
	if c.handlerAddress == 0 || c.handlerAddress >= c.mem.Size() {
		c.halted = true
		c.haltReason = fmt.Sprintf("Unhandled exception: 0x%02X", code)
		return
	}

	c.tracer.exception(code, faultIP)
	if !c.pushValue(c.ip) {
		c.halted = true
		c.haltReason = fmt.Sprintf("Unhandled exception: 0x%02X", isa.ExceptionStackOverflow)
		return
	}
	c.sys[7] = 0
	c.sys[0] = uint32(code)
	c.sys[1] = faultIP
	c.ip = c.handlerAddress
	c.issuingException = true
}

// raiseInterrupt implements the simplified single-handler interrupt model:
// id 0 is a no-op, any other id pushes the current ip (the instruction after
// the int), records the id in sys7, and transfers control to the shared
// handler address. Like raiseException, it
// sets issuingException on dispatch and never clears it itself.
func (c *CPU) raiseInterrupt(id byte, faultIP uint32) {
	if id == 0 {
		return
	}
	if c.issuingException {
		c.halted = true
		c.haltReason = fmt.Sprintf("Nested exception: 0x%02x", id)
		return
	}
	if c.handlerAddress == 0 || c.handlerAddress >= c.mem.Size() {
		c.halted = true
		c.haltReason = fmt.Sprintf("Unhandled exception: 0x%02X", id)
		return
	}

	c.tracer.interrupt(id)
	if !c.pushValue(c.ip) {
		c.halted = true
		c.haltReason = fmt.Sprintf("Unhandled exception: 0x%02X", isa.ExceptionStackOverflow)
		return
	}
	c.sys[7] = uint32(id)
	c.ip = c.handlerAddress
	c.issuingException = true
}

// pushValue and popValue perform the raw stack bounds check and memory
// access only; they do not raise exceptions themselves. The push/pop
// instruction handlers in execute.go translate a false return into a
// STACK_OVERFLOW/STACK_UNDERFLOW exception, while internal exception/
// interrupt entry treats it as an unrecoverable halt.
func (c *CPU) pushValue(v uint32) bool {
	if c.sp < 4 {
		return false
	}
	c.sp -= 4
	c.mem.Store32(c.sp, v)
	return true
}

func (c *CPU) popValue() (uint32, bool) {
	if c.sp >= c.mem.Size()-4 {
		return 0, false
	}
	v := c.mem.Load32(c.sp)
	c.sp += 4
	return v, true
}

// Register returns the current value of a general or sp register for
// status reporting; it does not enforce the system-register privilege
// check since it is read-only diagnostic access, not instruction execution.
func (c *CPU) Register(id byte) uint32 {
	switch {
	case id <= isa.R15:
		return c.regs[id]
	case id == isa.SP:
		return c.sp
	case id >= isa.Sys0 && id <= isa.Sys7:
		return c.sys[id-isa.Sys0]
	default:
		return 0
	}
}

// IP returns the current instruction pointer.
func (c *CPU) IP() uint32 { return c.ip }

// AttachVideo sets the video backend that serves the memory's framebuffer
// and keyboard MMIO windows, replacing any backend given to NewMemory; nil
// detaches it.
func (c *CPU) AttachVideo(out video.Output) {
	c.mem.video = out
}
