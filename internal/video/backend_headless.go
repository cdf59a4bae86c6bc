//go:build headless

package video

import "kr32/internal/isa"

// headlessOutput keeps framebuffer writes in memory so they read back, but
// displays nothing and reports no keyboard activity; it exists so the
// emulator builds and runs in environments without a display (CI, scripted
// tests) while keeping the MMIO contract.
type headlessOutput struct {
	pixels [isa.FramebufferSize]byte
}

// New constructs the display-less headless output.
func New() Output {
	return &headlessOutput{}
}

func (h *headlessOutput) ReadPixel(offset int) byte { return h.pixels[offset] }

func (h *headlessOutput) WritePixel(offset int, value byte) { h.pixels[offset] = value }

func (h *headlessOutput) Scancode() (byte, bool) { return 0, false }

func (h *headlessOutput) Run() error { return nil }

func (h *headlessOutput) Stop() {}
