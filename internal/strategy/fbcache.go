package strategy

import (
	"fmt"
	"sync"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
)

// fbCache turns a swapchain's buffer.Image entries into DRM framebuffer ids,
// keyed by Image identity, so CurrentFBHandle only pays the PRIME-import +
// ADDFB2 cost once per image instead of once per frame (§4.2, §4.3 "the
// renderer's framebuffer cache").
type fbCache struct {
	mu      sync.Mutex
	entries map[buffer.Image]*cachedFB
}

type cachedFB struct {
	fbID   uint32
	handle uint32
	owned  bool // true if this cache imported the GEM handle and must close it
}

func newFBCache() *fbCache {
	return &fbCache{entries: make(map[buffer.Image]*cachedFB)}
}

// handle returns img's framebuffer id on dev, importing and adding it on
// first use. Images that implement an optional Handle() uint32 (e.g.
// buffer.DumbImage, already local to dev) skip the PRIME import round-trip;
// everything else is imported via its exported dma-buf fd.
func (c *fbCache) handle(dev *kms.Device, img buffer.Image) (uint32, error) {
	if img == nil {
		return 0, fmt.Errorf("fbcache: nil image")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[img]; ok {
		return e.fbID, nil
	}

	var gemHandle uint32
	var owned bool
	if local, ok := img.(interface{ Handle() uint32 }); ok {
		gemHandle = local.Handle()
	} else {
		fd, err := img.ExportDMABUF()
		if err != nil {
			return 0, fmt.Errorf("fbcache: export dma-buf: %w", err)
		}
		h, err := dev.ImportGEMHandle(fd)
		if err != nil {
			return 0, fmt.Errorf("fbcache: import gem handle: %w", err)
		}
		gemHandle, owned = h, true
	}

	fbID, err := dev.AddFramebuffer(gemHandle, img.Width(), img.Height(), img.Format())
	if err != nil {
		if owned {
			dev.CloseGEMHandle(gemHandle)
		}
		return 0, fmt.Errorf("fbcache: add framebuffer: %w", err)
	}

	c.entries[img] = &cachedFB{fbID: fbID, handle: gemHandle, owned: owned}
	return fbID, nil
}

// teardown destroys every framebuffer this cache created and closes any GEM
// handle it imported itself.
func (c *fbCache) teardown(dev *kms.Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, e := range c.entries {
		if err := dev.DestroyFramebuffer(e.fbID); err != nil && firstErr == nil {
			firstErr = err
		}
		if e.owned {
			if err := dev.CloseGEMHandle(e.handle); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	c.entries = make(map[buffer.Image]*cachedFB)
	return firstErr
}
