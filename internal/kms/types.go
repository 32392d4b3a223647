// Package kms models the kernel mode-setting resources a connector renderer
// needs: devices, connectors, encoders, CRTCs, planes and modes, plus the
// raw ioctl calls and the atomic request builder used to mutate them.
package kms

import "fmt"

// Capability flags reported by a Device.
type Capability uint32

const (
	CapDumbBuffer Capability = 1 << iota
	CapPrimeImport
	CapPrimeExport
	CapAddFB2Modifiers
	CapAsyncPageFlip
	CapAtomicAsyncPageFlip
	CapTimestampMonotonic
)

func (c Capability) Has(f Capability) bool { return c&f != 0 }

// ClientCap flags set on a device fd via DRM_IOCTL_SET_CLIENT_CAP.
type ClientCap uint32

const (
	ClientCapAtomic ClientCap = 1 << iota
	ClientCapUniversalPlanes
	ClientCapAspectRatio
	ClientCapStereo3D
	ClientCapWriteback
)

// ConnectorType mirrors the kernel's connector_type enumeration.
type ConnectorType uint32

const (
	ConnectorUnknown     ConnectorType = 0
	ConnectorHDMIA       ConnectorType = 11
	ConnectorDisplayPort ConnectorType = 10
	ConnectorEDP         ConnectorType = 14
	ConnectorDVID        ConnectorType = 3
	ConnectorVirtual     ConnectorType = 15
	ConnectorWriteback   ConnectorType = 18
)

func (t ConnectorType) String() string {
	switch t {
	case ConnectorHDMIA:
		return "HDMI-A"
	case ConnectorDisplayPort:
		return "DP"
	case ConnectorEDP:
		return "eDP"
	case ConnectorDVID:
		return "DVI-D"
	case ConnectorVirtual:
		return "Virtual"
	case ConnectorWriteback:
		return "Writeback"
	default:
		return "Unknown"
	}
}

// PlaneType distinguishes primary, overlay and cursor planes.
type PlaneType uint32

const (
	PlaneOverlay PlaneType = iota
	PlanePrimary
	PlaneCursor
)

// Subpixel layout reported by a connector's EDID.
type Subpixel uint32

const (
	SubpixelUnknown Subpixel = iota
	SubpixelHorizontalRGB
	SubpixelHorizontalBGR
	SubpixelVerticalRGB
	SubpixelVerticalBGR
	SubpixelNone
)

// Mode is one entry of a connector's mode list.
type Mode struct {
	Hdisplay  uint16
	Vdisplay  uint16
	RefreshHz uint32
	Preferred bool
	Name      string
	// Raw is the kernel's struct drm_mode_modeinfo bytes, opaque to callers,
	// passed back verbatim when building a MODE_ID property blob.
	Raw [68]byte
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Hdisplay, m.Vdisplay, m.RefreshHz)
}

// Encoder is a DRM_MODE_OBJECT_ENCODER.
type Encoder struct {
	ID            uint32
	PossibleCrtcs uint32 // bitmask, bit i => CRTC at Device.CRTCs[i] is compatible
}

// CRTC is a DRM_MODE_OBJECT_CRTC.
type CRTC struct {
	ID          uint32
	GammaSize   uint32
	Props       PropIDs
	mask        uint32 // this CRTC's bit position for PossibleCrtcs masks
	ConnectorID uint32 // 0 if unassociated (Invariant 1)
}

// PropIDs caches the property ids a plane or connector exposes, looked up
// once at enumeration time (kernel property ids are stable for a device's
// lifetime but differ across devices/drivers).
type PropIDs map[string]uint32

// Plane is a DRM_MODE_OBJECT_PLANE.
type Plane struct {
	ID            uint32
	Type          PlaneType
	PossibleCrtcs uint32
	Formats       []FourCCMod
	Props         PropIDs

	ConnectorID uint32 // 0 if unassociated (Invariant 1)

	// blacklist tracks modifiers that provoked an EINVAL on an async flip;
	// future flips for that modifier use synchronous commits only (§4.2, §7).
	blacklist map[uint64]bool
}

// FourCCMod is a (fourcc, modifier) pair — the unit a Format Set operates on.
type FourCCMod struct {
	FourCC   uint32
	Modifier uint64
}

// BlacklistModifier records that mod provoked EINVAL on an async flip.
func (p *Plane) BlacklistModifier(mod uint64) {
	if p.blacklist == nil {
		p.blacklist = make(map[uint64]bool)
	}
	p.blacklist[mod] = true
}

// IsSyncOnly reports whether mod has been blacklisted for async flips.
func (p *Plane) IsSyncOnly(mod uint64) bool {
	return p.blacklist != nil && p.blacklist[mod]
}

// Connector is a physical output (DRM_MODE_OBJECT_CONNECTOR).
type Connector struct {
	ID            uint32
	Type          ConnectorType
	TypeOrdinal   uint32 // per-type index used for naming, e.g. HDMI-A-1
	Connected     bool
	WidthMM       uint32
	HeightMM      uint32
	Subpixel      Subpixel
	Make          string
	Model         string
	Serial        string
	Props         PropIDs
	EncoderIDs    []uint32
	Modes         []Mode
	PreferredMode int // index into Modes, -1 if none

	// CrtcID/PrimaryPlaneID/CursorPlaneID are set by the renderer once a
	// hardware configuration is chosen at initialize, and cleared at
	// uninitialize (Invariant 1). 0 means unset.
	CrtcID         uint32
	EncoderID      uint32
	PrimaryPlaneID uint32
	CursorPlaneID  uint32
}

// Name returns the conventional "<Type>-<ordinal>" connector name.
func (c *Connector) Name() string {
	return fmt.Sprintf("%s-%d", c.Type, c.TypeOrdinal)
}

func (c *Connector) Mode(idx int) (Mode, bool) {
	if idx < 0 || idx >= len(c.Modes) {
		return Mode{}, false
	}
	return c.Modes[idx], true
}

// Device is a mapping from a render node path to its open fd, its
// enumerated resources and its capability set (§3 "Device").
type Device struct {
	Path   string
	FD     uintptr
	Driver string

	Caps       Capability
	ClientCaps ClientCap

	CRTCs      []*CRTC
	Encoders   []*Encoder
	Planes     []*Plane
	Connectors []*Connector
}

func (d *Device) CRTC(id uint32) *CRTC {
	for _, c := range d.CRTCs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (d *Device) Encoder(id uint32) *Encoder {
	for _, e := range d.Encoders {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (d *Device) Plane(id uint32) *Plane {
	for _, p := range d.Planes {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (d *Device) Connector(id uint32) *Connector {
	for _, c := range d.Connectors {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CRTCMask returns the bit that identifies crtc in an Encoder/Plane
// PossibleCrtcs bitmask, based on its position in Device.CRTCs.
func (d *Device) CRTCMask(crtcID uint32) uint32 {
	for i, c := range d.CRTCs {
		if c.ID == crtcID {
			return 1 << uint(i)
		}
	}
	return 0
}
