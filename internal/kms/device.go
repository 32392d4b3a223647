package kms

import (
	"fmt"
	"log/slog"
	"os"
)

// Open opens a DRM render/primary node, becomes master and enumerates its
// resources into a *Device (§3 "Device", §6 "initialize a device").
//
// Grounded on the teacher's openDRM/New (api/pkg/drm/ioctl_linux.go,
// manager.go): acquire master, set DRM_CLIENT_CAP_UNIVERSAL_PLANES, then
// walk GETRESOURCES/GETPLANERESOURCES. Extended here to also request
// DRM_CLIENT_CAP_ATOMIC, without which the kernel refuses universal-plane
// atomic ioctls on some drivers.
func Open(path string, logger *slog.Logger) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := f.Fd()

	if err := setMaster(fd); err != nil {
		f.Close()
		return nil, err
	}

	d, err := enumerate(fd, path, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// OpenFD wraps an already-open DRM fd, such as one received from a lease
// grantor over SCM_RIGHTS (§6 lease flow, grounded on api/pkg/drm/client.go's
// LeaseResult.LeaseFD). A leased fd is already scoped to a lessee DRM master
// by the kernel; unlike Open, OpenFD does not call SET_MASTER.
func OpenFD(fd uintptr, name string, logger *slog.Logger) (*Device, error) {
	return enumerate(fd, name, logger)
}

func enumerate(fd uintptr, path string, logger *slog.Logger) (*Device, error) {
	var caps ClientCap
	if err := setClientCap(fd, clientCapUniversalPlanes, 1); err == nil {
		caps |= ClientCapUniversalPlanes
	} else {
		logger.Warn("DRM_CLIENT_CAP_UNIVERSAL_PLANES unavailable", "device", path, "err", err)
	}
	if err := setClientCap(fd, clientCapAtomic, 1); err == nil {
		caps |= ClientCapAtomic
	} else {
		logger.Warn("DRM_CLIENT_CAP_ATOMIC unavailable", "device", path, "err", err)
	}

	d := &Device{Path: path, FD: fd, ClientCaps: caps}

	crtcIDs, connIDs, encIDs, err := getCardRes(fd)
	if err != nil {
		return nil, err
	}
	if len(crtcIDs) == 0 || len(connIDs) == 0 {
		return nil, ErrNoResources
	}

	for _, id := range crtcIDs {
		props, err := getObjectProperties(fd, id, objTypeCRTC)
		if err != nil {
			logger.Warn("CRTC property enumeration failed", "crtc", id, "err", err)
		}
		gammaSize := uint32(0)
		if v, ok := props.values["GAMMA_LUT_SIZE"]; ok {
			gammaSize = uint32(v)
		}
		d.CRTCs = append(d.CRTCs, &CRTC{ID: id, GammaSize: gammaSize, Props: props.ids})
	}

	for _, id := range encIDs {
		d.Encoders = append(d.Encoders, &Encoder{ID: id})
	}

	planeIDs, err := getPlaneRes(fd)
	if err != nil {
		logger.Warn("plane resource enumeration failed", "device", path, "err", err)
	}
	for _, id := range planeIDs {
		p, err := getPlane(fd, id)
		if err != nil {
			logger.Warn("plane enumeration failed", "plane", id, "err", err)
			continue
		}
		d.Planes = append(d.Planes, p)
	}

	typeOrdinal := map[ConnectorType]uint32{}
	for _, id := range connIDs {
		c, err := enumerateConnector(fd, id)
		if err != nil {
			logger.Warn("connector enumeration failed", "connector", id, "err", err)
			continue
		}
		typeOrdinal[c.Type]++
		c.TypeOrdinal = typeOrdinal[c.Type]
		d.Connectors = append(d.Connectors, c)
	}

	logger.Info("kms device opened",
		"path", path,
		"crtcs", len(d.CRTCs),
		"connectors", len(d.Connectors),
		"encoders", len(d.Encoders),
		"planes", len(d.Planes),
		"atomic", caps.Has(ClientCapAtomic))

	return d, nil
}

// Close drops master and closes the device fd.
func (d *Device) Close(logger *slog.Logger) error {
	if err := dropMaster(d.FD); err != nil {
		logger.Warn("drop master failed", "device", d.Path, "err", err)
	}
	return os.NewFile(d.FD, d.Path).Close()
}

// CreateLease leases the given objects to a new DRM master, returning a
// fd suitable for SCM_RIGHTS hand-off to a client process (§6 lease
// creation, grounded on api/pkg/drm/client.go).
func (d *Device) CreateLease(objectIDs []uint32) (leaseFD int, lesseeID uint32, err error) {
	return createLease(d.FD, objectIDs)
}

// RevokeLease revokes a previously created lease.
func (d *Device) RevokeLease(lesseeID uint32) error {
	return revokeLease(d.FD, lesseeID)
}
