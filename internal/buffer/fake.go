package buffer

import "github.com/crznic/kmscore/internal/kms"

// Fake is an in-memory Image used by internal/strategy and internal/renderer
// tests; it satisfies Image without touching dma-buf or GBM.
type Fake struct {
	caps     Capability
	format   kms.FourCCMod
	w, h     uint32
	closed   bool
	dmabufFD int
	pixels   []byte
}

// NewFake builds a Fake image with the given format/dimensions. dmabufFD is
// the value ExportDMABUF returns, so tests can assert on it. A 4-bytes-per-
// pixel backing buffer is allocated so Fake also satisfies CPUAccessible,
// letting paint callbacks exercise the same code path as a real DumbImage.
func NewFake(format kms.FourCCMod, w, h uint32, dmabufFD int) *Fake {
	return &Fake{
		caps:     CapScanoutCapable | CapLinear | CapCPUMappable,
		format:   format,
		w:        w,
		h:        h,
		dmabufFD: dmabufFD,
		pixels:   make([]byte, w*h*4),
	}
}

func (f *Fake) Caps() Capability           { return f.caps }
func (f *Fake) Format() kms.FourCCMod      { return f.format }
func (f *Fake) Width() uint32              { return f.w }
func (f *Fake) Height() uint32             { return f.h }
func (f *Fake) ExportDMABUF() (int, error) { return f.dmabufFD, nil }
func (f *Fake) ExportSyncFile() (int, error) { return -1, nil }
func (f *Fake) Closed() bool               { return f.closed }
func (f *Fake) Pixels() []byte             { return f.pixels }
func (f *Fake) Stride() uint32             { return f.w * 4 }

func (f *Fake) Close() error {
	f.closed = true
	return nil
}
