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

package emu

import "kr32/internal/isa"

// execute dispatches one decoded, valid instruction. ip is the address the
// instruction was fetched from (c.ip has already been advanced past it);
// ip is used as the faulting address for any exception raised here.
func (c *CPU) execute(inst Instruction, ip uint32) {
	op := inst.Op
	b := inst.Operands

	switch op.Opcode {
	case 0x01: // ldi reg, imm32
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		*dst = le32(b[1:5])

	case 0x02: // ldr dst, src
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		src, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		*dst = *src

	case 0x03: // ldm8 dst, addrReg
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		addr, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		*dst = uint32(c.mem.Load8(*addr))

	case 0x04: // ldm16
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		addr, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		*dst = uint32(c.mem.Load16(*addr))

	case 0x05: // ldm32
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		addr, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		*dst = c.mem.Load32(*addr)

	case 0x06: // str8 addrReg, srcReg
		addr, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		src, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		c.mem.Store8(*addr, byte(*src))

	case 0x07: // str16
		addr, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		src, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		c.mem.Store16(*addr, uint16(*src))

	case 0x08: // str32
		addr, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		src, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		c.mem.Store32(*addr, *src)

	case 0x09: // add dst, a, b
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x + y, true })
	case 0x0A: // sub
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x - y, true })
	case 0x0B: // mul
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x * y, true })
	case 0x0C: // div
		c.divOp(b, ip, isa.ExceptionDivideByZero, func(x, y uint32) uint32 { return x / y })
	case 0x0D: // rem
		c.divOp(b, ip, isa.ExceptionDivideByZero, func(x, y uint32) uint32 { return x % y })
	case 0x0E: // shr
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x >> (y & 31), true })
	case 0x0F: // shl
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x << (y & 31), true })
	case 0x10: // and
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x & y, true })
	case 0x11: // or
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x | y, true })
	case 0x12: // not dst, src (two-register, unary)
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		src, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		*dst = ^*src
	case 0x13: // xor
		c.binOp(b, ip, func(x, y uint32) (uint32, bool) { return x ^ y, true })

	case 0x14: // jnz cond, target
		cond, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		target, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		if *cond != 0 {
			c.ip = *target
		}

	case 0x15: // jz cond, target
		cond, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		target, ok := c.getRegister(b[1], ip)
		if !ok {
			return
		}
		if *cond == 0 {
			c.ip = *target
		}

	case 0x16: // jmp target
		target, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		c.ip = *target

	case 0x17: // link target (call)
		target, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		ret := c.ip
		if !c.pushValue(ret) {
			c.raiseException(isa.ExceptionStackOverflow, ip)
			return
		}
		c.ip = *target

	case 0x18: // ret
		addr, ok := c.popValue()
		if !ok {
			c.raiseException(isa.ExceptionStackUnderflow, ip)
			return
		}
		c.ip = addr

	case 0x19: // push src
		src, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		if !c.pushValue(*src) {
			c.raiseException(isa.ExceptionStackOverflow, ip)
		}

	case 0x1A: // pop dst
		dst, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		v, ok := c.popValue()
		if !ok {
			c.raiseException(isa.ExceptionStackUnderflow, ip)
			return
		}
		*dst = v

	case 0x40: // jnzi cond, imm32
		cond, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		if *cond != 0 {
			c.ip = le32(b[1:5])
		}

	case 0x41: // jzi cond, imm32
		cond, ok := c.getRegister(b[0], ip)
		if !ok {
			return
		}
		if *cond == 0 {
			c.ip = le32(b[1:5])
		}

	case 0x42: // jmpi imm32
		c.ip = le32(b[0:4])

	case 0x60: // hlt
		c.halted = true
		c.haltReason = "hlt"

	case 0x80: // sys id
		c.doSyscall(b[0], ip)

	case 0xF0: // int id
		c.raiseInterrupt(b[0], ip)

	default:
		c.raiseException(isa.ExceptionInvalidInstruction, ip)
	}
}

// binOp implements the uniform three-register arithmetic/logic shape:
// dst, a, b.
func (c *CPU) binOp(b []byte, ip uint32, f func(x, y uint32) (uint32, bool)) {
	dst, ok := c.getRegister(b[0], ip)
	if !ok {
		return
	}
	a, ok := c.getRegister(b[1], ip)
	if !ok {
		return
	}
	rhs, ok := c.getRegister(b[2], ip)
	if !ok {
		return
	}
	v, _ := f(*a, *rhs)
	*dst = v
}

func (c *CPU) divOp(b []byte, ip uint32, excCode byte, f func(x, y uint32) uint32) {
	dst, ok := c.getRegister(b[0], ip)
	if !ok {
		return
	}
	a, ok := c.getRegister(b[1], ip)
	if !ok {
		return
	}
	rhs, ok := c.getRegister(b[2], ip)
	if !ok {
		return
	}
	if *rhs == 0 {
		c.raiseException(excCode, ip)
		return
	}
	*dst = f(*a, *rhs)
}

// doSyscall implements the sys instruction's five sub-operations.
func (c *CPU) doSyscall(id byte, ip uint32) {
	switch id {
	case isa.SyscallBootVector:
		c.sys[0] = isa.BootVector
	case isa.SyscallMemorySize:
		c.sys[0] = c.mem.Size()
	case isa.SyscallGetHandler:
		c.sys[0] = c.handlerAddress
	case isa.SyscallSetHandler:
		c.handlerAddress = c.sys[0]
	case isa.SyscallEnterUserMode:
		if c.mode != System {
			c.raiseException(isa.ExceptionUnpriviledgedInvocation, ip)
			return
		}
		c.mode = User
	default:
		c.raiseException(isa.ExceptionInvalidInstruction, ip)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
