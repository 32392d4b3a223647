// Package strategy implements the rendering-strategy contract and the
// Strategy Selector that picks among Self/Prime/Dumb/CPU for a connector
// (§4.2), mirroring the original SRM library's SRMRenderModeItself/Prime/
// Dumb/CPU (original_source/private/modes/SRMRenderMode*.c).
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/format"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

// ErrNoViableStrategy is returned when no kind in the selection order can be
// built: the plane offers no formats, or every allowed kind needs an
// Allocator and none was given.
var ErrNoViableStrategy = errors.New("strategy: no viable rendering strategy for this plane/device pair")

// Kind names a rendering strategy, in the original's preference order:
// try Self first (renderer GPU == scanout GPU, zero-copy), then Prime
// (cross-GPU import), then Dumb (CPU-mapped dumb buffers), then CPU
// (software rendering into a dumb buffer) as the universal fallback.
type Kind int

const (
	Self Kind = iota
	Prime
	Dumb
	CPU
)

func (k Kind) String() string {
	switch k {
	case Self:
		return "self"
	case Prime:
		return "prime"
	case Dumb:
		return "dumb"
	case CPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// Allocator is the renderer-GPU collaborator a strategy asks for new
// buffers; the concrete GL/EGL+GBM allocator lives outside this module
// (§1 out of scope) — strategies are written against this interface.
type Allocator interface {
	Allocate(ctx context.Context, f kms.FourCCMod, width, height uint32) (buffer.Image, error)
}

// Strategy is the common contract every rendering mode implements (§4.2).
type Strategy interface {
	Kind() Kind

	// InitSwapchain allocates the strategy's buffer cycle for the given
	// plane/format/dimensions and returns the resulting swapchain.
	InitSwapchain(ctx context.Context, plane *kms.Plane, f kms.FourCCMod, width, height uint32, count int) (*swapchain.Swapchain, error)

	// AdvanceFrame moves the swapchain forward after a completed
	// presentation, returning the image the caller should render into next.
	AdvanceFrame(sc *swapchain.Swapchain) buffer.Image

	// CurrentFBHandle returns the DRM framebuffer id to program into the
	// primary plane's FB_ID for the swapchain's current buffer. Every
	// strategy resolves it through the same framebuffer cache: an image with
	// a device-local Handle() (buffer.DumbImage) is used directly, any other
	// image is first imported into dev through its dma-buf.
	CurrentFBHandle(dev *kms.Device, sc *swapchain.Swapchain) (uint32, error)

	// CurrentWriteSync returns a sync_file fd the caller should wait on
	// before scanning out the current buffer, or -1 if none is needed.
	CurrentWriteSync(sc *swapchain.Swapchain) (int, error)

	// Teardown releases any strategy-owned resources beyond the swapchain
	// itself (which the caller closes separately).
	Teardown() error
}

// Selector chooses a Strategy for a (device, plane) pair given the caller's
// format preference order and environment overrides (§4.2, §6 env knobs).
type Selector struct {
	alloc Allocator
	// forced, if non-nil, restricts selection to exactly this kind —
	// kmscore.Open sets it to Self when envcfg.Snapshot.ForceGLAllocation
	// is on.
	forced *Kind
}

// NewSelector builds a Selector. alloc may be nil if only Dumb/CPU
// strategies will ever be selected (e.g. a headless test fake).
func NewSelector(alloc Allocator, forced *Kind) *Selector {
	return &Selector{alloc: alloc, forced: forced}
}

// Select picks the first kind, in preference order (or only the forced
// kind), that build accepts. Device capabilities are not consulted, and
// the kinds have no format lists of their own to match against.
func (s *Selector) Select(dev *kms.Device, plane *kms.Plane, planeFormats *format.Set) (Strategy, kms.FourCCMod, error) {
	order := []Kind{Self, Prime, Dumb, CPU}
	if s.forced != nil {
		order = []Kind{*s.forced}
	}

	for _, kind := range order {
		strat, f, ok := s.build(kind, dev, planeFormats)
		if !ok {
			continue
		}
		return strat, f, nil
	}
	return nil, kms.FourCCMod{}, ErrNoViableStrategy
}

// build constructs the strategy for kind and picks the first format of
// planeFormats.PreferredOrder(XRGB8888, ARGB8888), reporting ok=false if
// that yields no format or kind needs an Allocator the Selector lacks.
func (s *Selector) build(kind Kind, dev *kms.Device, planeFormats *format.Set) (Strategy, kms.FourCCMod, bool) {
	const argb8888 = 0x34325241 // DRM_FORMAT_ARGB8888
	const xrgb8888 = 0x34325258 // DRM_FORMAT_XRGB8888

	candidates := planeFormats.PreferredOrder(xrgb8888, argb8888)
	if len(candidates) == 0 {
		return nil, kms.FourCCMod{}, false
	}
	chosen := candidates[0]

	switch kind {
	case Self:
		if s.alloc == nil {
			return nil, kms.FourCCMod{}, false
		}
		return &selfStrategy{dev: dev, alloc: s.alloc, fbc: newFBCache()}, chosen, true
	case Prime:
		if s.alloc == nil {
			return nil, kms.FourCCMod{}, false
		}
		return &primeStrategy{dev: dev, alloc: s.alloc, fbc: newFBCache()}, chosen, true
	case Dumb:
		return &dumbStrategy{dev: dev, fbc: newFBCache()}, chosen, true
	case CPU:
		return &cpuStrategy{dev: dev, fbc: newFBCache()}, chosen, true
	default:
		return nil, kms.FourCCMod{}, false
	}
}

// AsyncCapable reports whether mod may be flipped asynchronously on plane,
// honoring a prior blacklist entry recorded after an EINVAL (§4.2, §4.6
// Scenario E, §7).
func AsyncCapable(plane *kms.Plane, mod uint64) bool {
	return !plane.IsSyncOnly(mod)
}

func fmtErr(kind Kind, op string, err error) error {
	return fmt.Errorf("strategy %s: %s: %w", kind, op, err)
}
