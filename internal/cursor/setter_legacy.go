package cursor

import (
	"context"
	"fmt"

	"github.com/crznic/kmscore/internal/kms"
)

// LegacySetter drives DRM_IOCTL_MODE_CURSOR2 directly (§4.5 ModeLegacy), for
// connectors with no free cursor-type plane or on devices lacking atomic
// support.
type LegacySetter struct {
	dev    *kms.Device
	crtcID uint32

	buf *kms.DumbBuffer
}

// NewLegacySetter builds a Setter that drives crtcID's legacy cursor.
func NewLegacySetter(dev *kms.Device, crtcID uint32) *LegacySetter {
	return &LegacySetter{dev: dev, crtcID: crtcID}
}

// SetBuffer uploads argb into the setter's backing dumb buffer (allocating
// it on first use) and issues a CURSOR2 set, or hides the cursor when argb
// is nil.
func (s *LegacySetter) SetBuffer(ctx context.Context, argb []byte) error {
	if argb == nil {
		return s.dev.SetCursor(s.crtcID, 0, 0, 0, 0, 0)
	}

	if s.buf == nil {
		buf, err := s.dev.CreateDumbBuffer(Size, Size, 32)
		if err != nil {
			return fmt.Errorf("cursor: allocate legacy cursor buffer: %w", err)
		}
		s.buf = buf
	}
	copy(s.buf.Pixels(), argb)
	return s.dev.SetCursor(s.crtcID, s.buf.Handle, Size, Size, 0, 0)
}

// Move repositions the legacy cursor.
func (s *LegacySetter) Move(ctx context.Context, x, y int32) error {
	return s.dev.MoveCursor(s.crtcID, x, y)
}

// Close releases the setter's backing dumb buffer.
func (s *LegacySetter) Close() error {
	if s.buf == nil {
		return nil
	}
	return s.buf.Close()
}
