package strategy

import (
	"context"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

// selfStrategy renders directly into buffers allocated on the scanout GPU
// itself — zero-copy, the preferred case (original SRMRenderModeItself).
type selfStrategy struct {
	dev   *kms.Device
	alloc Allocator
	fbc   *fbCache
}

func (s *selfStrategy) Kind() Kind { return Self }

func (s *selfStrategy) InitSwapchain(ctx context.Context, plane *kms.Plane, f kms.FourCCMod, width, height uint32, count int) (*swapchain.Swapchain, error) {
	images := make([]buffer.Image, 0, count)
	for i := 0; i < count; i++ {
		img, err := s.alloc.Allocate(ctx, f, width, height)
		if err != nil {
			for _, done := range images {
				done.Close()
			}
			return nil, fmtErr(Self, "allocate", err)
		}
		images = append(images, img)
	}
	return swapchain.New(images), nil
}

func (s *selfStrategy) AdvanceFrame(sc *swapchain.Swapchain) buffer.Image {
	sc.Advance()
	return sc.Current()
}

func (s *selfStrategy) CurrentFBHandle(dev *kms.Device, sc *swapchain.Swapchain) (uint32, error) {
	return s.fbc.handle(dev, sc.Current())
}

func (s *selfStrategy) CurrentWriteSync(sc *swapchain.Swapchain) (int, error) {
	img := sc.Current()
	if img == nil {
		return -1, nil
	}
	return img.ExportSyncFile()
}

func (s *selfStrategy) Teardown() error { return s.fbc.teardown(s.dev) }
