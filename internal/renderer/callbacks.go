package renderer

import (
	"time"

	"github.com/crznic/kmscore/internal/buffer"
)

// Callbacks are the caller-supplied hooks a Connector's render thread
// invokes across a frame's lifecycle (§4.1, §6 "Initialize callbacks").
// Every field is optional; a nil callback is simply skipped.
type Callbacks struct {
	// Initialized fires once Initialize has assigned hardware and started
	// the render thread, before the first frame is painted.
	Initialized func(c *Connector)

	// Paint is invoked from the render thread for every frame that reaches
	// the point of having a buffer to draw into; img satisfies
	// buffer.CPUAccessible for the Dumb/CPU strategies and test fakes.
	// Returning an error aborts that frame's commit.
	Paint func(c *Connector, img buffer.Image) error

	// Presented fires after a frame's atomic commit has been submitted and,
	// if vsync was enabled, its flip-completion event has been observed.
	Presented func(c *Connector, info PresentInfo)

	// Discarded fires when an image drops out of the two-generation pinned
	// window (§9 Open Question 3) and is no longer referenced by any
	// in-flight or pending commit, so the caller may recycle its storage.
	Discarded func(c *Connector, img buffer.Image)

	// Resized fires after a successful SetMode/Resume modeset changes the
	// connector's scanout dimensions.
	Resized func(c *Connector, width, height uint32)

	// Uninitialized fires once Uninitialize has released the connector's
	// hardware assignment.
	Uninitialized func(c *Connector)
}

// PresentFlag describes how a frame's presentation time was obtained.
type PresentFlag uint32

const (
	// PresentHWClock means Time came from the kernel's flip-completion
	// timestamp rather than a software sample.
	PresentHWClock PresentFlag = 1 << iota
	// PresentHWCompletion means a DRM_EVENT_FLIP_COMPLETE record with a
	// non-zero sequence or timestamp was received for this frame. Frame is
	// the renderer's own frame counter either way, and Period is not filled
	// in.
	PresentHWCompletion
	// PresentVSync means this frame waited for vblank/flip-completion
	// before Presented fired, as opposed to an async (tearing) commit.
	PresentVSync
)

// PresentInfo describes when and how a frame reached the screen (§4.6).
type PresentInfo struct {
	Time   time.Time
	Period time.Duration
	Frame  uint64
	Flags  PresentFlag
}
