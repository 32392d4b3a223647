// Package buffer defines the interfaces the renderer uses to consume
// framebuffers from an external GL/EGL + GBM allocator collaborator (§4.9,
// §6.3). No GPU-backed implementation lives here — GL/EGL and GBM bindings
// are out of scope (spec §1) — only the contract and a test fake.
package buffer

import "github.com/crznic/kmscore/internal/kms"

// Capability flags an Image reports about how it was allocated.
type Capability uint32

const (
	CapScanoutCapable Capability = 1 << iota
	CapLinear
	CapCPUMappable
)

func (c Capability) Has(f Capability) bool { return c&f != 0 }

// Image is one allocated buffer the renderer can turn into a framebuffer
// and scan out, or read back from for the CPU/Dumb strategies.
type Image interface {
	// Caps reports how this image may be used.
	Caps() Capability

	// Format is the (fourcc, modifier) pair this image was allocated with.
	Format() kms.FourCCMod

	// Width/Height are the image's pixel dimensions.
	Width() uint32
	Height() uint32

	// ExportDMABUF exports a dma-buf fd referencing this image's memory,
	// for importing into a *kms.Device as a framebuffer handle.
	ExportDMABUF() (fd int, err error)

	// ExportSyncFile exports an explicit-fence sync_file fd signalling
	// when rendering into this image has completed (§4.3 "write sync").
	ExportSyncFile() (fd int, err error)

	// Close releases the image's resources.
	Close() error
}

// CPUAccessible is an optional interface an Image may implement to expose
// its backing memory directly, analogous to io.ReaderFrom. Paint callbacks
// and the Dumb/CPU strategies type-assert for it rather than it being part
// of Image, since GPU-backed images generally can't offer it cheaply.
type CPUAccessible interface {
	// Pixels returns the image's mapped memory for direct CPU writes.
	Pixels() []byte

	// Stride returns the row pitch in bytes (may exceed Width()*bpp due to
	// alignment).
	Stride() uint32
}

// Importer imports a dma-buf fd from another process/allocator into a
// device-local Image (e.g. a lease client importing a buffer exported by
// the compositor).
type Importer interface {
	ImportDMABUF(dev *kms.Device, fd int, mod uint64, width, height uint32, fourcc uint32) (Image, error)
}
