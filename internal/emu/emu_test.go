package emu

import (
	"testing"

	"kr32/internal/isa"
)

func newTestCPU(t *testing.T, image []byte, size uint32) *CPU {
	t.Helper()
	mem := NewMemory(size, nil)
	mem.LoadImage(image)
	return NewCPU(mem, nil)
}

func TestHaltStopsExecution(t *testing.T) {
	// ldi r0, 0x2A; hlt
	image := []byte{0x01, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x60}
	cpu := newTestCPU(t, image, 64)
	if err := cpu.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !cpu.Halted() {
		t.Fatal("expected CPU to be halted")
	}
	if got := cpu.Register(isa.R0); got != 0x2A {
		t.Errorf("r0 = 0x%x, want 0x2A", got)
	}
	if cpu.HaltReason() != "hlt" {
		t.Errorf("halt reason = %q, want \"hlt\"", cpu.HaltReason())
	}
}

func TestInvalidOpcodeHaltsUnhandled(t *testing.T) {
	image := []byte{0xAB} // undefined opcode, no handler installed
	cpu := newTestCPU(t, image, 64)
	cpu.Run()
	if !cpu.Halted() {
		t.Fatal("expected halt on invalid opcode with no handler")
	}
}

func TestDivideByZeroRaisesException(t *testing.T) {
	// Handler at byte 32: ldi r5, 0xDEAD; hlt - proves the handler ran.
	image := make([]byte, 64)
	prog := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, // ldi r0, 0
		0x01, 0x01, 0x00, 0x00, 0x00, 0x00, // ldi r1, 0
		0x0C, 0x02, 0x00, 0x01, // div r2, r0, r1 -> divide by zero
		0x60, // hlt (unreached)
	}
	copy(image, prog)
	handlerAddr := uint32(32)
	handler := []byte{
		0x01, 0x05, 0xAD, 0xDE, 0x00, 0x00, // ldi r5, 0xDEAD
		0x60, // hlt
	}
	copy(image[handlerAddr:], handler)

	mem := NewMemory(64, nil)
	mem.LoadImage(image)
	cpu := NewCPU(mem, nil)
	cpu.sp = 64 // stack grows down from the top of memory

	// Install the handler "by hand": write its address to sys0 then invoke
	// the set-handler syscall, the same two steps a boot stub would issue.
	cpu.sys[0] = handlerAddr
	cpu.doSyscall(isa.SyscallSetHandler, 0)

	if err := cpu.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cpu.Register(isa.R0 + 5); got != 0xDEAD {
		t.Errorf("r5 = 0x%x, want 0xDEAD (handler did not run)", got)
	}
	if code := cpu.Register(isa.Sys0); code != isa.ExceptionDivideByZero {
		t.Errorf("sys0 = 0x%x, want DIVIDE_BY_ZERO", code)
	}
}

func TestOutOfBoundsLoadReturnsZero(t *testing.T) {
	mem := NewMemory(16, nil)
	if got := mem.Load32(1000); got != 0 {
		t.Errorf("OOB load = 0x%x, want 0", got)
	}
}

func TestStackOverflowHaltsWhenUnrecoverable(t *testing.T) {
	// sp below the 4-byte minimum leaves no room to push either the
	// faulting push's operand or the exception entry's own return-address
	// push, so this is unconditionally a halt, handler or not.
	image := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, // ldi r0, 0
		0x19, 0x00, // push r0
	}
	mem := NewMemory(64, nil)
	mem.LoadImage(image)
	cpu := NewCPU(mem, nil)
	cpu.sp = 2

	cpu.Run()
	if !cpu.Halted() {
		t.Fatal("expected halt on unrecoverable stack overflow")
	}
}

func TestUserModeCannotReachSystemRegister(t *testing.T) {
	mem := NewMemory(64, nil)
	cpu := NewCPU(mem, nil)
	cpu.mode = User
	_, ok := cpu.getRegister(isa.Sys0, 0)
	if ok {
		t.Fatal("expected user-mode access to sys0 to fail")
	}
	if !cpu.Halted() {
		t.Fatal("expected halt (no handler installed) after unpriviledged access")
	}
}
