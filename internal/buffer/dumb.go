package buffer

import "github.com/crznic/kmscore/internal/kms"

// DumbImage is an Image backed by a CPU-mapped kms.DumbBuffer (§4.2
// Dumb/CPU strategies). It has no GPU rendering capability; paint callbacks
// write into Pixels() directly.
type DumbImage struct {
	dev    *kms.Device
	buf    *kms.DumbBuffer
	format kms.FourCCMod
	w, h   uint32
}

// NewDumbImage allocates a width x height dumb buffer in the given format.
// bpp is always 32, whatever the format; that matches the formats the
// Dumb/CPU strategies use (XRGB8888/ARGB8888, 4 bytes per pixel).
func NewDumbImage(dev *kms.Device, format kms.FourCCMod, w, h uint32) (*DumbImage, error) {
	buf, err := dev.CreateDumbBuffer(w, h, 32)
	if err != nil {
		return nil, err
	}
	return &DumbImage{dev: dev, buf: buf, format: format, w: w, h: h}, nil
}

func (d *DumbImage) Caps() Capability      { return CapScanoutCapable | CapLinear | CapCPUMappable }
func (d *DumbImage) Format() kms.FourCCMod { return d.format }
func (d *DumbImage) Width() uint32         { return d.w }
func (d *DumbImage) Height() uint32        { return d.h }
func (d *DumbImage) Pixels() []byte        { return d.buf.Pixels() }
func (d *DumbImage) Stride() uint32        { return d.buf.Stride() }

// Handle returns the image's device-local GEM handle, letting the
// renderer's framebuffer cache skip the PRIME import round-trip for
// buffers that already live on the target device.
func (d *DumbImage) Handle() uint32 { return d.buf.Handle }

func (d *DumbImage) ExportDMABUF() (int, error) { return d.buf.ExportFD() }
func (d *DumbImage) ExportSyncFile() (int, error) { return -1, nil }

func (d *DumbImage) Close() error { return d.buf.Close() }
