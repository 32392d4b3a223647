// Package swapchain implements the fixed-size buffer cycle and per-buffer
// age counter every rendering strategy drives (§4.3).
package swapchain

import "github.com/crznic/kmscore/internal/buffer"

// Swapchain cycles through N buffer.Image slots and tracks each slot's age:
// the number of Advance calls since it was last the current buffer. Age 0
// means "never presented yet", matching the Testable Property that a fresh
// swapchain reports every slot as fully damaged.
type Swapchain struct {
	slots   []buffer.Image
	ages    []uint32
	current int
}

// New builds a swapchain over images, which must all share the same
// format/dimensions; the caller retains ownership and must Close each image
// after the swapchain is torn down.
func New(images []buffer.Image) *Swapchain {
	sc := &Swapchain{slots: images, ages: make([]uint32, len(images))}
	return sc
}

// Len returns the number of buffers in the cycle.
func (s *Swapchain) Len() int { return len(s.slots) }

// Current returns the image presentation should render into this frame.
func (s *Swapchain) Current() buffer.Image {
	if len(s.slots) == 0 {
		return nil
	}
	return s.slots[s.current]
}

// Age returns how many frames old the current buffer's content is: 0 means
// its content is undefined (never written), N means the last N-1 frames
// since it was current were skipped, allowing the caller to do partial
// (damage-only) redraws when Age equals Len (a full cycle has completed).
func (s *Swapchain) Age() uint32 {
	if len(s.ages) == 0 {
		return 0
	}
	return s.ages[s.current]
}

// Advance marks the current buffer as just-presented (age reset to 1) and
// moves to the next slot, aging every other slot by one.
func (s *Swapchain) Advance() {
	if len(s.slots) == 0 {
		return
	}
	for i := range s.ages {
		if i == s.current {
			s.ages[i] = 1
		} else if s.ages[i] != 0 {
			s.ages[i]++
		}
	}
	s.current = (s.current + 1) % len(s.slots)
}

// ResetAges clears every slot's age to 0, forcing a full redraw next frame
// (Connector.Resume calls it after re-committing the mode; a mode change
// builds a new swapchain instead, §4.4).
func (s *Swapchain) ResetAges() {
	for i := range s.ages {
		s.ages[i] = 0
	}
}

// Close closes every backing image.
func (s *Swapchain) Close() error {
	var firstErr error
	for _, img := range s.slots {
		if img == nil {
			continue
		}
		if err := img.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
