package kms

import "fmt"

// DumbBuffer is a CPU-mapped scanout buffer allocated with
// DRM_IOCTL_MODE_CREATE_DUMB (§4.2 Dumb/CPU strategies). It has no GPU
// rendering capability — callers write pixels directly into Pixels() — but
// every KMS driver supports it, making it the universal software fallback.
type DumbBuffer struct {
	dev    *Device
	Handle uint32
	Pitch  uint32
	Size   uint64
	mem    []byte
}

// CreateDumbBuffer allocates a width x height buffer at the given bits per
// pixel and maps it into the process.
func (d *Device) CreateDumbBuffer(width, height, bpp uint32) (*DumbBuffer, error) {
	handle, pitch, size, err := createDumbBuffer(d.FD, width, height, bpp)
	if err != nil {
		return nil, err
	}
	mem, err := mapDumbBuffer(d.FD, handle, size)
	if err != nil {
		destroyDumbBuffer(d.FD, handle)
		return nil, err
	}
	return &DumbBuffer{dev: d, Handle: handle, Pitch: pitch, Size: size, mem: mem}, nil
}

// Pixels returns the buffer's mapped memory for direct CPU writes.
func (b *DumbBuffer) Pixels() []byte { return b.mem }

// Stride returns the buffer's row pitch in bytes, as reported by the kernel
// (may exceed width*bytesPerPixel due to alignment).
func (b *DumbBuffer) Stride() uint32 { return b.Pitch }

// ExportFD exports the buffer's GEM handle as a dma-buf fd, for strategies
// that need to hand it to another subsystem (e.g. a leased client).
func (b *DumbBuffer) ExportFD() (int, error) {
	return primeHandleToFD(b.dev.FD, b.Handle)
}

// Close unmaps and destroys the underlying GEM object.
func (b *DumbBuffer) Close() error {
	if err := unmapDumbBuffer(b.mem); err != nil {
		return fmt.Errorf("unmap dumb buffer %d: %w", b.Handle, err)
	}
	b.mem = nil
	return destroyDumbBuffer(b.dev.FD, b.Handle)
}
