//go:build linux

package kms

import (
	"fmt"
	"unsafe"
)

// enumerateConnector performs the two-call GETCONNECTOR dance (count, then
// fill) and converts the raw mode list into []Mode, grounded on the
// teacher's getPreferredMode (api/pkg/drm/ioctl_linux.go).
func enumerateConnector(fd uintptr, id uint32) (*Connector, error) {
	var gc drmModeGetConnector
	gc.ConnectorID = id
	if err := ioctl(fd, ioctlModeGetConnector, unsafe.Pointer(&gc)); err != nil {
		return nil, fmt.Errorf("GETCONNECTOR(%d) count: %w", id, err)
	}

	modes := make([]drmModeModeInfo, gc.CountModes)
	encoders := make([]uint32, gc.CountEncoders)

	gc2 := drmModeGetConnector{
		ConnectorID:   id,
		CountModes:    gc.CountModes,
		CountEncoders: gc.CountEncoders,
	}
	if len(modes) > 0 {
		gc2.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	if len(encoders) > 0 {
		gc2.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}
	if err := ioctl(fd, ioctlModeGetConnector, unsafe.Pointer(&gc2)); err != nil {
		return nil, fmt.Errorf("GETCONNECTOR(%d) fill: %w", id, err)
	}

	c := &Connector{
		ID:            id,
		Type:          ConnectorType(gc2.ConnectorType),
		Connected:     gc2.Connection == 1,
		WidthMM:       gc2.MmWidth,
		HeightMM:      gc2.MmHeight,
		Subpixel:      Subpixel(gc2.Subpixel),
		EncoderIDs:    encoders,
		PreferredMode: -1,
	}

	for i, m := range modes {
		name := cString(m.Name[:])
		mode := Mode{
			Hdisplay:  m.Hdisplay,
			Vdisplay:  m.Vdisplay,
			RefreshHz: m.Vrefresh,
			Preferred: m.Type&modeFlagPreferred != 0,
			Name:      name,
		}
		copy(mode.Raw[:], unsafe.Slice((*byte)(unsafe.Pointer(&m)), unsafe.Sizeof(m)))
		if mode.Preferred && c.PreferredMode == -1 {
			c.PreferredMode = i
		}
		c.Modes = append(c.Modes, mode)
	}
	if c.PreferredMode == -1 && len(c.Modes) > 0 {
		c.PreferredMode = 0
	}

	props, err := getObjectProperties(fd, id, objTypeConnector)
	if err != nil {
		return nil, err
	}
	c.Props = props.ids

	return c, nil
}

func cString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
