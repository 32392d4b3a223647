package strategy

import (
	"context"
	"fmt"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

// dumbStrategy renders off-GPU and uploads each frame into a CPU-mapped
// "dumb" buffer allocated directly on the scanout device — used when no
// GPU allocator is available on the scanout side at all (original
// SRMRenderModeDumb).
type dumbStrategy struct {
	dev *kms.Device
	fbc *fbCache
}

func (s *dumbStrategy) Kind() Kind { return Dumb }

func (s *dumbStrategy) InitSwapchain(ctx context.Context, plane *kms.Plane, f kms.FourCCMod, width, height uint32, count int) (*swapchain.Swapchain, error) {
	if f.Modifier != 0 {
		return nil, fmtErr(Dumb, "init", fmt.Errorf("dumb buffers require the linear modifier, got %#x", f.Modifier))
	}
	images := make([]buffer.Image, 0, count)
	for i := 0; i < count; i++ {
		img, err := createDumbImage(s.dev, f, width, height)
		if err != nil {
			for _, done := range images {
				done.Close()
			}
			return nil, fmtErr(Dumb, "create", err)
		}
		images = append(images, img)
	}
	return swapchain.New(images), nil
}

func (s *dumbStrategy) AdvanceFrame(sc *swapchain.Swapchain) buffer.Image {
	sc.Advance()
	return sc.Current()
}

func (s *dumbStrategy) CurrentFBHandle(dev *kms.Device, sc *swapchain.Swapchain) (uint32, error) {
	return s.fbc.handle(dev, sc.Current())
}

func (s *dumbStrategy) CurrentWriteSync(sc *swapchain.Swapchain) (int, error) {
	// Dumb buffers are CPU-mapped; the upload is synchronous before the
	// caller moves on to present, so there is no fence to wait on.
	return -1, nil
}

func (s *dumbStrategy) Teardown() error { return s.fbc.teardown(s.dev) }

// createDumbImage allocates a dumb buffer via DRM_IOCTL_MODE_CREATE_DUMB and
// wraps it as a buffer.Image; kept as a small seam so tests can substitute a
// fake without touching ioctls.
var createDumbImage = func(dev *kms.Device, f kms.FourCCMod, width, height uint32) (buffer.Image, error) {
	return buffer.NewDumbImage(dev, f, width, height)
}
