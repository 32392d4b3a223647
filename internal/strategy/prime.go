package strategy

import (
	"context"
	"fmt"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

// primeStrategy renders on the render GPU and imports the result into the
// scanout device via PRIME/dma-buf (original SRMRenderModePrime) — used
// when the renderer and scanout GPUs differ but both support dma-buf
// sharing.
type primeStrategy struct {
	dev     *kms.Device
	alloc   Allocator
	scanout []buffer.Image // never filled: the dma-buf import into dev happens in fbc
	fbc     *fbCache
}

func (s *primeStrategy) Kind() Kind { return Prime }

func (s *primeStrategy) InitSwapchain(ctx context.Context, plane *kms.Plane, f kms.FourCCMod, width, height uint32, count int) (*swapchain.Swapchain, error) {
	images := make([]buffer.Image, 0, count)
	for i := 0; i < count; i++ {
		img, err := s.alloc.Allocate(ctx, f, width, height)
		if err != nil {
			for _, done := range images {
				done.Close()
			}
			return nil, fmtErr(Prime, "allocate", err)
		}
		if !img.Caps().Has(buffer.CapScanoutCapable) {
			img.Close()
			return nil, fmtErr(Prime, "allocate", fmt.Errorf("render-side image is not scanout-capable for PRIME import"))
		}
		images = append(images, img)
	}
	return swapchain.New(images), nil
}

func (s *primeStrategy) AdvanceFrame(sc *swapchain.Swapchain) buffer.Image {
	sc.Advance()
	return sc.Current()
}

func (s *primeStrategy) CurrentFBHandle(dev *kms.Device, sc *swapchain.Swapchain) (uint32, error) {
	return s.fbc.handle(dev, sc.Current())
}

func (s *primeStrategy) CurrentWriteSync(sc *swapchain.Swapchain) (int, error) {
	img := sc.Current()
	if img == nil {
		return -1, nil
	}
	return img.ExportSyncFile()
}

func (s *primeStrategy) Teardown() error {
	var firstErr error
	for _, img := range s.scanout {
		if err := img.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.scanout = nil
	if err := s.fbc.teardown(s.dev); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
