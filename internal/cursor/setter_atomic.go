package cursor

import (
	"context"
	"fmt"

	"github.com/crznic/kmscore/internal/kms"
)

// AtomicSetter drives a dedicated cursor-type plane through the Atomic
// Request Builder (§4.5 ModeAtomicPlane), uploading into a lazily allocated
// Size x Size ARGB8888 dumb buffer and re-pointing FB_ID/CRTC_X/Y each Sync.
type AtomicSetter struct {
	dev   *kms.Device
	plane *kms.Plane
	crtc  *kms.CRTC

	buf  *kms.DumbBuffer
	fbID uint32
}

const cursorFourCC = 0x34325241 // DRM_FORMAT_ARGB8888

// NewAtomicSetter builds a Setter that drives cursorPlane on crtc.
func NewAtomicSetter(dev *kms.Device, cursorPlane *kms.Plane, crtc *kms.CRTC) *AtomicSetter {
	return &AtomicSetter{dev: dev, plane: cursorPlane, crtc: crtc}
}

// SetBuffer uploads argb into the setter's backing dumb buffer (allocating
// it on first use) and commits FB_ID onto the cursor plane, or sets FB_ID=0
// to hide the cursor when argb is nil.
func (s *AtomicSetter) SetBuffer(ctx context.Context, argb []byte) error {
	if argb == nil {
		req := kms.NewRequest(s.dev)
		defer req.Discard()
		if err := s.setProp(req, "FB_ID", 0); err != nil {
			return err
		}
		return req.Commit(ctx, kms.CommitOpts{})
	}

	if s.buf == nil {
		buf, err := s.dev.CreateDumbBuffer(Size, Size, 32)
		if err != nil {
			return fmt.Errorf("cursor: allocate atomic-plane buffer: %w", err)
		}
		fbID, err := s.dev.AddFramebuffer(buf.Handle, Size, Size, kms.FourCCMod{FourCC: cursorFourCC})
		if err != nil {
			buf.Close()
			return fmt.Errorf("cursor: add framebuffer: %w", err)
		}
		s.buf, s.fbID = buf, fbID
	}
	copy(s.buf.Pixels(), argb)

	req := kms.NewRequest(s.dev)
	defer req.Discard()
	if err := s.setProp(req, "FB_ID", uint64(s.fbID)); err != nil {
		return err
	}
	if err := s.setProp(req, "CRTC_ID", uint64(s.crtc.ID)); err != nil {
		return err
	}
	if err := s.setProp(req, "CRTC_W", Size); err != nil {
		return err
	}
	if err := s.setProp(req, "CRTC_H", Size); err != nil {
		return err
	}
	if err := s.setProp(req, "SRC_W", Size<<16); err != nil {
		return err
	}
	if err := s.setProp(req, "SRC_H", Size<<16); err != nil {
		return err
	}
	return req.Commit(ctx, kms.CommitOpts{})
}

// Move updates the cursor plane's CRTC_X/CRTC_Y in a separate commit, as the
// spec's repaint path keeps position updates independent of image uploads.
func (s *AtomicSetter) Move(ctx context.Context, x, y int32) error {
	req := kms.NewRequest(s.dev)
	defer req.Discard()
	if err := s.setProp(req, "CRTC_X", uint64(uint32(x))); err != nil {
		return err
	}
	if err := s.setProp(req, "CRTC_Y", uint64(uint32(y))); err != nil {
		return err
	}
	return req.Commit(ctx, kms.CommitOpts{})
}

func (s *AtomicSetter) setProp(req *kms.Request, name string, value uint64) error {
	_, err := req.SetPropByName(s.plane.ID, s.plane.Props, name, value)
	return err
}

// Close releases the setter's backing dumb buffer and framebuffer id.
func (s *AtomicSetter) Close() error {
	if s.buf == nil {
		return nil
	}
	if s.fbID != 0 {
		s.dev.DestroyFramebuffer(s.fbID)
	}
	return s.buf.Close()
}
