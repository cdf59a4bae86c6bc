//go:build !headless

package video

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"kr32/internal/isa"
)

const windowScale = 6

// EbitenOutput drives a 120x80 window from the KR32 framebuffer MMIO
// region, and feeds ebiten key events into the one-byte scancode/state
// keyboard MMIO registers.
type EbitenOutput struct {
	mu         sync.RWMutex
	pixels     [isa.FramebufferSize]byte
	scancode   byte
	pressed    bool
	image      *ebiten.Image
	rgba       []byte
	stopped    bool
}

// New constructs the ebiten-backed graphical output.
func New() Output {
	return &EbitenOutput{
		rgba: make([]byte, isa.FramebufferWidth*isa.FramebufferHeight*4),
	}
}

func (e *EbitenOutput) ReadPixel(offset int) byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pixels[offset]
}

func (e *EbitenOutput) WritePixel(offset int, value byte) {
	e.mu.Lock()
	e.pixels[offset] = value
	e.mu.Unlock()
}

func (e *EbitenOutput) Scancode() (byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scancode, e.pressed
}

func (e *EbitenOutput) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

// Run opens the window and blocks until it is closed or Stop is called.
// Satisfies the ebiten.Game interface on *EbitenOutput itself, matching the
// reference backend's one-struct-is-the-game-loop shape.
func (e *EbitenOutput) Run() error {
	ebiten.SetWindowSize(isa.FramebufferWidth*windowScale, isa.FramebufferHeight*windowScale)
	ebiten.SetWindowTitle("kr32emu")
	ebiten.SetWindowResizable(true)
	return ebiten.RunGame(e)
}

func (e *EbitenOutput) Update() error {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}

	for _, key := range trackedKeys {
		if inpututil.IsKeyJustPressed(key) {
			e.setKey(key, true)
		}
		if inpututil.IsKeyJustReleased(key) {
			e.setKey(key, false)
		}
	}
	return nil
}

func (e *EbitenOutput) setKey(key ebiten.Key, pressed bool) {
	code, ok := scancodes[key]
	if !ok {
		return
	}
	e.mu.Lock()
	e.scancode = code
	e.pressed = pressed
	e.mu.Unlock()
}

// Draw converts the raw RRRGGGBB framebuffer to RGBA8888 and blits it.
// Colors are derived only at display time so that a write-then-read
// round-trip on the MMIO byte is exact for all 256 values.
func (e *EbitenOutput) Draw(screen *ebiten.Image) {
	if e.image == nil {
		e.image = ebiten.NewImage(isa.FramebufferWidth, isa.FramebufferHeight)
	}

	e.mu.RLock()
	for i, p := range e.pixels {
		r := (p >> 5) & 0x07
		g := (p >> 2) & 0x07
		b := p & 0x03
		o := i * 4
		e.rgba[o+0] = scale3(r)
		e.rgba[o+1] = scale3(g)
		e.rgba[o+2] = scale2(b)
		e.rgba[o+3] = 0xFF
	}
	e.mu.RUnlock()

	e.image.WritePixels(e.rgba)
	screen.DrawImage(e.image, nil)
}

func (e *EbitenOutput) Layout(_, _ int) (int, int) {
	return isa.FramebufferWidth, isa.FramebufferHeight
}

func scale3(v byte) byte { return v * 255 / 7 }
func scale2(v byte) byte { return v * 255 / 3 }

var trackedKeys = []ebiten.Key{
	ebiten.KeyArrowUp, ebiten.KeyArrowDown, ebiten.KeyArrowLeft, ebiten.KeyArrowRight,
	ebiten.KeySpace, ebiten.KeyEnter, ebiten.KeyEscape,
	ebiten.KeyA, ebiten.KeyB, ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF,
	ebiten.KeyG, ebiten.KeyH, ebiten.KeyI, ebiten.KeyJ, ebiten.KeyK, ebiten.KeyL,
	ebiten.KeyM, ebiten.KeyN, ebiten.KeyO, ebiten.KeyP, ebiten.KeyQ, ebiten.KeyR,
	ebiten.KeyS, ebiten.KeyT, ebiten.KeyU, ebiten.KeyV, ebiten.KeyW, ebiten.KeyX,
	ebiten.KeyY, ebiten.KeyZ,
}

// scancodes assigns a stable one-byte scancode to each tracked key; values
// are this emulator's own convention, not a hardware scancode set.
var scancodes = func() map[ebiten.Key]byte {
	m := make(map[ebiten.Key]byte, len(trackedKeys))
	for i, k := range trackedKeys {
		m[k] = byte(i + 1)
	}
	return m
}()
