package kms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sys/unix"
)

// Atomic commit flags (DRM_MODE_ATOMIC_*).
const (
	FlagPageFlipEvent = 0x0001
	FlagAllowModeset  = 0x0400
	FlagTestOnly      = 0x0100
	FlagNonblock      = 0x0200
	FlagAsync         = 0x0002 // DRM_MODE_PAGE_FLIP_ASYNC reused as atomic async hint
)

// propSet is one (object, property, value) triple queued on a Request.
type propSet struct {
	objID  uint32
	propID uint32
	value  uint64
}

// Request is the Atomic Request Builder (§2). Callers add property/value
// pairs for CRTCs, connectors and planes, then Commit. Blobs (MODE_ID,
// gamma LUT, IN_FENCE_FD references) are created as kernel property blobs
// and destroyed by a successful Commit or by Discard.
type Request struct {
	device *Device
	sets   []propSet
	blobs  []uint32 // blob ids created by this request, destroyed after commit
}

// NewRequest starts building an atomic request against device.
func NewRequest(device *Device) *Request {
	return &Request{device: device}
}

// SetProp queues objID.propID = value.
func (r *Request) SetProp(objID, propID uint32, value uint64) *Request {
	r.sets = append(r.sets, propSet{objID, propID, value})
	return r
}

// SetPropByName resolves propName against props (a connector/CRTC/plane's
// Props map) before queuing the triple; returns ErrUnknownObject if the
// property doesn't exist on that object.
func (r *Request) SetPropByName(objID uint32, props PropIDs, propName string, value uint64) (*Request, error) {
	id, ok := props[propName]
	if !ok {
		return r, fmt.Errorf("%w: property %q", ErrUnknownObject, propName)
	}
	return r.SetProp(objID, id, value), nil
}

// NewBlob creates a kernel property blob from data (used for MODE_ID, gamma
// LUTs and IN_FORMATS) and returns its id. The blob is destroyed by a
// successful Commit or by Discard.
func (r *Request) NewBlob(data []byte) (uint32, error) {
	id, err := createPropBlob(r.device.FD, data)
	if err != nil {
		return 0, err
	}
	r.blobs = append(r.blobs, id)
	return id, nil
}

// Discard destroys any blobs this request created without committing.
func (r *Request) Discard() {
	for _, id := range r.blobs {
		destroyPropBlob(r.device.FD, id)
	}
	r.blobs = nil
	r.sets = nil
}

// CommitOpts controls how Commit submits the request.
type CommitOpts struct {
	AllowModeset bool
	Nonblock     bool
	TestOnly     bool
	UserData     uint64

	// RequestEvent asks the kernel to deliver a DRM_EVENT_FLIP_COMPLETE on
	// the device fd once this commit's flip finishes (§4.6); set when vsync
	// is enabled so pageflip.Tracker has something to wait on.
	RequestEvent bool

	// Async requests a tearing-allowed immediate flip rather than waiting
	// for the next vblank (§4.2, §4.6 Scenario E); callers should only set
	// this when the target plane/modifier hasn't been blacklisted via
	// Plane.IsSyncOnly.
	Async bool

	// MaxRetries/RetryDelay bound the EBUSY backoff loop (§4.8, §7).
	// MaxRetries is the total number of attempts, the first one included.
	// Defaults: 5 attempts, 4ms initial delay, doubling.
	MaxRetries int
	RetryDelay time.Duration
}

// Commit submits the queued property sets in one atomic ioctl, retrying on
// EBUSY (another commit or a legacy modeset is in flight) with exponential
// back-off via retry-go. On success it destroys the blobs it created and
// empties the request. A failed commit leaves the queued sets and blobs in
// place, so the caller can resubmit the same request or Discard it.
func (r *Request) Commit(ctx context.Context, opts CommitOpts) error {
	if len(r.sets) == 0 {
		r.Discard()
		return nil
	}

	objs, counts, props, values := flattenPropSets(r.sets)

	var flags uint32
	if opts.AllowModeset {
		flags |= FlagAllowModeset
	}
	if opts.Nonblock {
		flags |= FlagNonblock
	}
	if opts.TestOnly {
		flags |= FlagTestOnly
	}
	if opts.RequestEvent {
		flags |= FlagPageFlipEvent
	}
	if opts.Async {
		flags |= FlagAsync
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 4 * time.Millisecond
	}

	err := retry.Do(
		func() error {
			return atomicCommit(r.device.FD, flags, objs, counts, props, values, opts.UserData)
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, unix.EBUSY)
		}),
	)
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return ErrEBUSYRetriesExhausted
		}
		return fmt.Errorf("atomic commit: %w", err)
	}
	r.Discard()
	return nil
}

// flattenPropSets groups propSet triples by object id, preserving first-seen
// object order, into the parallel arrays DRM_IOCTL_MODE_ATOMIC expects.
func flattenPropSets(sets []propSet) (objs, counts, props []uint32, values []uint64) {
	order := make([]uint32, 0, len(sets))
	byObj := make(map[uint32][]propSet)
	for _, s := range sets {
		if _, ok := byObj[s.objID]; !ok {
			order = append(order, s.objID)
		}
		byObj[s.objID] = append(byObj[s.objID], s)
	}
	for _, obj := range order {
		group := byObj[obj]
		objs = append(objs, obj)
		counts = append(counts, uint32(len(group)))
		for _, s := range group {
			props = append(props, s.propID)
			values = append(values, s.value)
		}
	}
	return objs, counts, props, values
}
