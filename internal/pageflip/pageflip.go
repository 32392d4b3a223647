// Package pageflip implements the Page-flip Tracker (§4.6): one mutex and
// outstanding-flip bookkeeping per device, plus event draining with a
// bounded poll timeout so a stuck driver cannot hang a render thread
// forever.
package pageflip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crznic/kmscore/internal/kms"
)

// pollTimeout bounds how long Wait blocks draining page-flip events before
// giving up, per connector, and how long Run blocks between polls of the
// device fd (§4.6).
const pollTimeout = 500 * time.Millisecond

// Completion is the kernel-reported result of one page flip: the vblank
// sequence number and timestamp DRM_EVENT_FLIP_COMPLETE carries.
type Completion struct {
	CrtcID uint32
	Seq    uint32
	TVSec  uint32
	TVUsec uint32
}

// Tracker tracks which CRTCs currently have a flip in flight. Its mutex
// guards only that registry; it does not serialize the commits themselves.
// One Tracker is shared by every Connector built against the same
// *kms.Device.
type Tracker struct {
	mu          sync.Mutex
	outstanding map[uint32]chan Completion // crtcID -> completion channel
}

// NewTracker returns a Tracker for one *kms.Device.
func NewTracker() *Tracker {
	return &Tracker{outstanding: make(map[uint32]chan Completion)}
}

// Begin registers crtcID as having a flip in flight, returning an error if
// one is already outstanding (callers must wait for completion first —
// Invariant: at most one in-flight commit per CRTC). Call before submitting
// the atomic commit that requests a page-flip event, so the completion event
// can never race the registration.
func (t *Tracker) Begin(crtcID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outstanding[crtcID]; ok {
		return fmt.Errorf("pageflip: crtc %d already has a flip in flight", crtcID)
	}
	t.outstanding[crtcID] = make(chan Completion, 1)
	return nil
}

// Cancel drops a registration made by Begin when the commit that was meant
// to carry it never reached the kernel (a failed commit generates no
// DRM_EVENT_FLIP_COMPLETE, so the channel would otherwise wait forever).
func (t *Tracker) Cancel(crtcID uint32) {
	t.mu.Lock()
	delete(t.outstanding, crtcID)
	t.mu.Unlock()
}

// Complete records crtcID's flip completion, unblocking any Wait call. It is
// the "drmHandleEvent-equivalent" callback invoked by the event-draining
// loop (Run) once it reads a DRM_EVENT_FLIP_COMPLETE record; tests may also
// call it directly to simulate completion.
func (t *Tracker) Complete(crtcID, seq, tvSec, tvUsec uint32) {
	t.mu.Lock()
	ch, ok := t.outstanding[crtcID]
	if ok {
		delete(t.outstanding, crtcID)
	}
	t.mu.Unlock()
	if ok {
		ch <- Completion{CrtcID: crtcID, Seq: seq, TVSec: tvSec, TVUsec: tvUsec}
	}
}

// Pending reports whether crtcID currently has a flip in flight.
func (t *Tracker) Pending(crtcID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.outstanding[crtcID]
	return ok
}

// Wait blocks until crtcID's outstanding flip (if any) completes, ctx is
// cancelled, or pollTimeout elapses — whichever comes first. Returns the
// zero Completion immediately if no flip is outstanding.
func (t *Tracker) Wait(ctx context.Context, crtcID uint32) (Completion, error) {
	t.mu.Lock()
	ch, ok := t.outstanding[crtcID]
	t.mu.Unlock()
	if !ok {
		return Completion{}, nil
	}

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()
	select {
	case comp := <-ch:
		return comp, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	case <-timer.C:
		return Completion{}, fmt.Errorf("pageflip: crtc %d: timed out waiting for flip completion after %s", crtcID, pollTimeout)
	}
}

// Run polls dev's fd and drains DRM_EVENT_FLIP_COMPLETE events until ctx is
// cancelled, dispatching each one through Complete. One Run loop serves every
// connector sharing dev, matching §4.6's device-wide page-flip mutex: this
// is the control thread that performs drmHandleEvent-equivalent draining,
// which may complete flips belonging to connectors other than whichever one
// happens to be waiting.
func (t *Tracker) Run(ctx context.Context, dev *kms.Device) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ready, err := pollReadable(dev, pollTimeout)
		if err != nil {
			time.Sleep(pollTimeout)
			continue
		}
		if !ready {
			continue
		}
		drainEvents(dev, t.Complete)
	}
}

// Drain performs one read of dev's fd and passes every
// DRM_EVENT_FLIP_COMPLETE record in it to onComplete; exposed for callers
// that want to drive draining themselves instead of spawning Run.
func Drain(dev *kms.Device, onComplete func(crtcID uint32, seq uint32, tvSec, tvUsec uint32)) error {
	return drainEvents(dev, onComplete)
}
