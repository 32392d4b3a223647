package strategy

import (
	"context"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

// cpuStrategy is the universal fallback: software rendering into a
// CPU-mapped dumb buffer, for devices/connectors with no GPU path at all
// (original SRMRenderModeCPU). It differs from Dumb only in who is expected
// to write into the mapped memory (a software rasterizer vs. a GPU driver's
// upload path); the swapchain mechanics are identical.
type cpuStrategy struct {
	dev *kms.Device
	fbc *fbCache
}

func (s *cpuStrategy) Kind() Kind { return CPU }

func (s *cpuStrategy) InitSwapchain(ctx context.Context, plane *kms.Plane, f kms.FourCCMod, width, height uint32, count int) (*swapchain.Swapchain, error) {
	images := make([]buffer.Image, 0, count)
	for i := 0; i < count; i++ {
		img, err := createDumbImage(s.dev, f, width, height)
		if err != nil {
			for _, done := range images {
				done.Close()
			}
			return nil, fmtErr(CPU, "create", err)
		}
		images = append(images, img)
	}
	return swapchain.New(images), nil
}

func (s *cpuStrategy) AdvanceFrame(sc *swapchain.Swapchain) buffer.Image {
	sc.Advance()
	return sc.Current()
}

func (s *cpuStrategy) CurrentFBHandle(dev *kms.Device, sc *swapchain.Swapchain) (uint32, error) {
	return s.fbc.handle(dev, sc.Current())
}

func (s *cpuStrategy) CurrentWriteSync(sc *swapchain.Swapchain) (int, error) {
	return -1, nil
}

func (s *cpuStrategy) Teardown() error { return s.fbc.teardown(s.dev) }
