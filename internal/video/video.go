// Package video defines the KR32 graphical MMIO backend contract: a
// 120x80 one-byte-per-pixel framebuffer in RRRGGGBB format and a one-key
// keyboard state, plus two interchangeable implementations - an ebiten
// window (backend_ebiten.go) and a display-less headless stub
// (backend_headless.go) - selected by the "headless" build tag.
package video

import "kr32/internal/isa"

// Output is the interface the emulator's memory subsystem drives. Multi-
// byte framebuffer stores iterate consecutive pixel coordinates in raster
// order; the contract does not require atomic updates across multi-pixel
// stores (tearing is acceptable, per the concurrency model).
type Output interface {
	// ReadPixel returns the raw RRRGGGBB byte at a linear framebuffer
	// offset (0..isa.FramebufferSize-1).
	ReadPixel(offset int) byte
	// WritePixel stores the raw RRRGGGBB byte at a linear framebuffer
	// offset.
	WritePixel(offset int, value byte)
	// Scancode returns the last observed key's scancode and pressed state.
	Scancode() (code byte, pressed bool)
	// Run drives the window's event loop until it is closed or Stop is
	// called; a headless backend returns immediately. Called from the
	// emulator's main goroutine only when graphical mode is enabled.
	Run() error
	// Stop requests the window close so Run returns.
	Stop()
}

// PixelOffset converts an absolute MMIO address in the framebuffer range
// to a linear pixel offset, or -1 if out of range.
func PixelOffset(addr uint32) int {
	if addr < isa.FramebufferBase || addr >= isa.FramebufferBase+isa.FramebufferSize {
		return -1
	}
	return int(addr - isa.FramebufferBase)
}
