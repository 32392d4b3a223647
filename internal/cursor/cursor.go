// Package cursor implements the Cursor Engine (§4.5): two fixed-size ARGB
// buffers, the active one, visibility and position, and the three
// presentation modes (atomic-plane, legacy ioctl, none).
package cursor

import (
	"context"
	"fmt"
	"sync"

	"github.com/crznic/kmscore/internal/kms"
)

// Size is the fixed cursor buffer dimension the spec mandates (64x64 ARGB).
const Size = 64

// Mode selects how the engine presents the cursor.
type Mode int

const (
	// ModeAtomicPlane drives a dedicated cursor-type plane via the Atomic
	// Request Builder — the preferred mode on atomic-capable devices.
	ModeAtomicPlane Mode = iota
	// ModeLegacy drives DRM_IOCTL_MODE_CURSOR/CURSOR2 — used on devices
	// without a free cursor plane or without atomic support.
	ModeLegacy
	// ModeNone disables hardware cursor presentation entirely (no cursor
	// plane available and legacy cursor ioctls unsupported/disabled via
	// DISABLE_CURSOR).
	ModeNone
)

// Setter is the device-specific back end the Engine drives; implemented
// once per Mode (atomic plane commit vs. legacy ioctl).
type Setter interface {
	// SetBuffer uploads argb (Size*Size*4 bytes) as the active cursor image,
	// or clears the cursor if argb is nil.
	SetBuffer(ctx context.Context, argb []byte) error
	// Move positions the cursor's hotspot at (x, y) in connector space.
	Move(ctx context.Context, x, y int32) error
}

// Engine is the Cursor Engine state for one connector (§4.5).
type Engine struct {
	mode   Mode
	setter Setter

	mu      sync.Mutex
	buffers [2][]byte // two ARGB buffers, Size*Size*4 bytes each
	active  int
	visible bool
	x, y    int32
}

// New builds an Engine. setter is nil when mode is ModeNone.
func New(mode Mode, setter Setter) *Engine {
	e := &Engine{mode: mode, setter: setter}
	e.buffers[0] = make([]byte, Size*Size*4)
	e.buffers[1] = make([]byte, Size*Size*4)
	return e
}

func (e *Engine) Mode() Mode { return e.mode }

// SetImage copies argb into the inactive buffer and flips it to active.
// The new image only reaches hardware once the render thread calls Sync;
// argb must be exactly Size*Size*4 bytes.
func (e *Engine) SetImage(ctx context.Context, argb []byte) error {
	if len(argb) != Size*Size*4 {
		return fmt.Errorf("cursor: image must be %dx%d ARGB (%d bytes), got %d", Size, Size, Size*Size*4, len(argb))
	}
	if e.mode == ModeNone {
		return nil
	}

	e.mu.Lock()
	next := e.active ^ 1
	copy(e.buffers[next], argb)
	e.active = next
	e.mu.Unlock()
	return nil
}

// SetVisible shows or hides the cursor. Takes effect on the next Sync.
func (e *Engine) SetVisible(ctx context.Context, visible bool) error {
	if e.mode == ModeNone {
		return nil
	}
	e.mu.Lock()
	e.visible = visible
	e.mu.Unlock()
	return nil
}

// SetPosition moves the cursor hotspot to (x, y). Takes effect on the next
// Sync.
func (e *Engine) SetPosition(ctx context.Context, x, y int32) error {
	if e.mode == ModeNone {
		return nil
	}
	e.mu.Lock()
	e.x, e.y = x, y
	e.mu.Unlock()
	return nil
}

// Sync pushes the engine's current buffer, visibility and position to the
// hardware backend. Called only from the render thread, and only when
// renderOneFrame observes one of the changeCursor* bits set, so a plain
// Setter never races a concurrent atomic commit touching the same plane.
func (e *Engine) Sync(ctx context.Context) error {
	if e.mode == ModeNone || e.setter == nil {
		return nil
	}

	e.mu.Lock()
	visible := e.visible
	buf := e.buffers[e.active]
	x, y := e.x, e.y
	e.mu.Unlock()

	if !visible {
		if err := e.setter.SetBuffer(ctx, nil); err != nil {
			return err
		}
	} else if err := e.setter.SetBuffer(ctx, buf); err != nil {
		return err
	}
	return e.setter.Move(ctx, x, y)
}

// Position returns the last set cursor hotspot.
func (e *Engine) Position() (x, y int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.x, e.y
}

// Visible reports whether the cursor is currently shown.
func (e *Engine) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// ChooseMode picks a Mode for a connector given its assigned cursor plane
// (nil if none was free, §9 Open Question 1) and whether atomic/legacy
// cursor support is available, honoring the DISABLE_CURSOR override.
func ChooseMode(cursorPlane *kms.Plane, atomicCapable bool, legacyCursorAvailable bool, disableCursor bool) Mode {
	if disableCursor {
		return ModeNone
	}
	if cursorPlane != nil && atomicCapable {
		return ModeAtomicPlane
	}
	if legacyCursorAvailable {
		return ModeLegacy
	}
	return ModeNone
}
