//go:build !linux

package kms

import "fmt"

var errUnsupported = fmt.Errorf("kms: DRM ioctls are only implemented on linux")

func setClientCap(fd uintptr, cap uint64, value uint64) error { return errUnsupported }
func setMaster(fd uintptr) error                              { return errUnsupported }
func dropMaster(fd uintptr) error                             { return errUnsupported }

func getCardRes(fd uintptr) (crtcIDs, connIDs, encIDs []uint32, err error) {
	return nil, nil, nil, errUnsupported
}

func getPlaneRes(fd uintptr) ([]uint32, error) { return nil, errUnsupported }
func getPlane(fd uintptr, id uint32) (*Plane, error) { return nil, errUnsupported }

func getObjectProperties(fd uintptr, objID uint32, objType uint32) (objProps, error) {
	return objProps{}, errUnsupported
}

func createPropBlob(fd uintptr, data []byte) (uint32, error) { return 0, errUnsupported }
func destroyPropBlob(fd uintptr, id uint32) error             { return errUnsupported }

func atomicCommit(fd uintptr, flags uint32, objs []uint32, counts []uint32, props []uint32, values []uint64, userData uint64) error {
	return errUnsupported
}

func createLease(fd uintptr, objectIDs []uint32) (leaseFD int, lesseeID uint32, err error) {
	return -1, 0, errUnsupported
}

func revokeLease(fd uintptr, lesseeID uint32) error { return errUnsupported }

func createDumbBuffer(fd uintptr, width, height, bpp uint32) (handle, pitch uint32, size uint64, err error) {
	return 0, 0, 0, errUnsupported
}

func mapDumbBuffer(fd uintptr, handle uint32, size uint64) ([]byte, error) {
	return nil, errUnsupported
}

func unmapDumbBuffer(mem []byte) error { return errUnsupported }

func destroyDumbBuffer(fd uintptr, handle uint32) error { return errUnsupported }

func addFB2(fd uintptr, handle, width, height, fourcc uint32, modifier uint64) (uint32, error) {
	return 0, errUnsupported
}

func rmFB(fd uintptr, fbID uint32) error { return errUnsupported }

func primeHandleToFD(fd uintptr, handle uint32) (int, error) { return -1, errUnsupported }

func primeFDToHandle(fd uintptr, dmaFD int) (uint32, error) { return 0, errUnsupported }

func gemClose(fd uintptr, handle uint32) error { return errUnsupported }

func setCursor2(fd uintptr, crtcID, handle, width, height uint32, hotX, hotY int32) error {
	return errUnsupported
}

func moveCursor2(fd uintptr, crtcID uint32, x, y int32) error { return errUnsupported }

type objProps struct {
	ids    PropIDs
	values map[string]uint64
}

const (
	objTypeCRTC      = 0xcccccccc
	objTypeConnector = 0xc0c0c0c0
	objTypeEncoder   = 0xe0e0e0e0
	objTypePlane     = 0xeeeeeeee
)
