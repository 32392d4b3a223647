package renderer

import "github.com/crznic/kmscore/internal/kms"

// assignment is the hardware configuration chosen for a connector at
// initialize time (§9 Open Question 1 decision: assigned fresh each time,
// never handed over live between connectors).
type assignment struct {
	encoderID      uint32
	crtcID         uint32
	primaryPlaneID uint32
	cursorPlaneID  uint32 // 0 if none free
}

// pickAssignment finds an encoder/CRTC compatible with conn, plus a free
// primary plane and (best-effort) a free cursor plane compatible with that
// CRTC. Returns ErrNoPlaneAvailable if no encoder/CRTC/primary-plane
// combination is free.
func pickAssignment(dev *kms.Device, conn *kms.Connector) (assignment, error) {
	for _, encID := range conn.EncoderIDs {
		enc := dev.Encoder(encID)
		if enc == nil {
			continue
		}
		for _, crtc := range dev.CRTCs {
			if crtc.ConnectorID != 0 {
				continue // already driving another connector
			}
			mask := dev.CRTCMask(crtc.ID)
			if enc.PossibleCrtcs&mask == 0 {
				continue
			}

			primary := findFreePlane(dev, crtc.ID, kms.PlanePrimary)
			if primary == 0 {
				continue
			}
			cursorPlane := findFreePlane(dev, crtc.ID, kms.PlaneCursor)

			return assignment{
				encoderID:      encID,
				crtcID:         crtc.ID,
				primaryPlaneID: primary,
				cursorPlaneID:  cursorPlane,
			}, nil
		}
	}
	return assignment{}, ErrNoPlaneAvailable
}

func findFreePlane(dev *kms.Device, crtcID uint32, want kms.PlaneType) uint32 {
	mask := dev.CRTCMask(crtcID)
	for _, p := range dev.Planes {
		if p.Type != want {
			continue
		}
		if p.PossibleCrtcs&mask == 0 {
			continue
		}
		if p.ConnectorID != 0 {
			continue
		}
		return p.ID
	}
	return 0
}
