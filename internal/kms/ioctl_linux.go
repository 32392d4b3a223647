//go:build linux

package kms

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DRM ioctl numbers, encoded the same way as the teacher's pkg/drm/ioctl_linux.go
// (_IO/_IOR/_IOW/_IOWR on type 'd'), extended here to cover universal planes,
// generic properties and atomic commits.
const (
	ioctlSetMaster   = 0x641e
	ioctlDropMaster  = 0x641f
	ioctlSetClientCap = 0x4010640d

	ioctlModeGetResources     = 0xc04064a0
	ioctlModeGetCrtc          = 0xc06864a1
	ioctlModeGetConnector     = 0xc05064a7
	ioctlModeGetEncoder       = 0xc01464a6
	ioctlModeGetPlaneResources = 0xc01064b5
	ioctlModeGetPlane         = 0xc04064b6
	ioctlModeObjGetProperties = 0xc01864b9
	ioctlModeGetProperty      = 0xc04064aa
	ioctlModeGetPropBlob      = 0xc01064ac
	ioctlModeCreatePropBlob   = 0xc01064bd
	ioctlModeDestroyPropBlob  = 0xc00464be
	ioctlModeAtomic           = 0xc03864bc

	ioctlModeCreateLease = 0xc01864c6
	ioctlModeRevokeLease = 0x400464c9

	// Dumb-buffer and framebuffer-import ioctls, extended here for the
	// Dumb/CPU strategies and the renderer's framebuffer cache (§4.2, §4.3).
	ioctlModeCreateDumb  = 0xc02064b2
	ioctlModeMapDumb     = 0xc01064b3
	ioctlModeDestroyDumb = 0xc00464b4
	ioctlModeAddFB2      = 0xc06864b8
	ioctlModeRmFB        = 0xc00464af
	ioctlPrimeHandleToFD = 0xc00c642d
	ioctlPrimeFDToHandle = 0xc00c642e
	ioctlGEMClose        = 0x40086409

	// Legacy (non-atomic) hardware cursor ioctl, for connectors without a
	// free cursor-type plane (§4.5 ModeLegacy).
	ioctlModeCursor2 = 0xc02464bb
)

// Client-cap values (DRM_CLIENT_CAP_*).
const (
	clientCapStereo3D        = 1
	clientCapUniversalPlanes = 2
	clientCapAtomic          = 3
	clientCapAspectRatio     = 4
	clientCapWritebackConn   = 5
)

// drm_mode_card_res.
type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

const modeFlagPreferred = 1 << 3 // DRM_MODE_TYPE_PREFERRED

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeGetEncoder struct {
	EncoderID     uint32
	EncoderType   uint32
	CrtcID        uint32
	PossibleCrtcs uint32
	PossibleClones uint32
}

type drmModeGetCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeModeInfo
}

type drmModeGetPlaneRes struct {
	PlaneIDPtr uint64
	CountPlanes uint32
}

type drmModeGetPlane struct {
	PlaneID       uint32
	CrtcID        uint32
	FbID          uint32
	PossibleCrtcs uint32
	GammaSize     uint32
	CountFormatTypes uint32
	FormatTypePtr uint64
	CrtcX         int32
	CrtcY         int32
	CrtcW         uint32
	CrtcH         uint32
	SrcX          uint32
	SrcY          uint32
	SrcH          uint32
	SrcW          uint32
}

type drmModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
}

type drmModeGetProperty struct {
	ValuesPtr   uint64
	EnumBlobPtr uint64
	PropID      uint32
	Flags       uint32
	Name        [32]byte
	CountValues uint32
	CountEnumBlobs uint32
}

type drmModeCreatePropBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

type drmModeDestroyPropBlob struct {
	BlobID uint32
}

type drmModeAtomic struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	ValuesPtr     uint64
	Reserved      uint64
	UserData      uint64
}

type drmModeCreateLease struct {
	ObjectIDs   uint64
	ObjectCount uint32
	Flags       uint32
	LesseeID    uint32
	FD          int32
}

type drmModeRevokeLease struct {
	LesseeID uint32
}

type drmSetClientCap struct {
	Capability uint64
	Value      uint64
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type drmModeDestroyDumb struct {
	Handle uint32
}

type drmModeFBCmd2 struct {
	FbID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Modifier    [4]uint64
}

type drmPrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

type drmGEMClose struct {
	Handle uint32
	Pad    uint32
}

type drmModeCursor2 struct {
	Flags  uint32
	CrtcID uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
	Handle uint32
	HotX   int32
	HotY   int32
}

const (
	cursorFlagBO   = 1 << 0 // DRM_MODE_CURSOR_BO
	cursorFlagMove = 1 << 1 // DRM_MODE_CURSOR_MOVE
)

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func setClientCap(fd uintptr, cap uint64, value uint64) error {
	c := drmSetClientCap{Capability: cap, Value: value}
	return ioctl(fd, ioctlSetClientCap, unsafe.Pointer(&c))
}

func setMaster(fd uintptr) error {
	if err := ioctl(fd, ioctlSetMaster, nil); err != nil {
		return fmt.Errorf("DRM_IOCTL_SET_MASTER: %w", err)
	}
	return nil
}

func dropMaster(fd uintptr) error {
	if err := ioctl(fd, ioctlDropMaster, nil); err != nil {
		return fmt.Errorf("DRM_IOCTL_DROP_MASTER: %w", err)
	}
	return nil
}

// getCardRes retrieves the raw CRTC/connector/encoder id lists (§3 "Device").
func getCardRes(fd uintptr) (crtcIDs, connIDs, encIDs []uint32, err error) {
	var res drmModeCardRes
	if err := ioctl(fd, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, nil, nil, fmt.Errorf("GETRESOURCES (count): %w", err)
	}
	crtcIDs = make([]uint32, res.CountCrtcs)
	connIDs = make([]uint32, res.CountConnectors)
	encIDs = make([]uint32, res.CountEncoders)

	res2 := drmModeCardRes{
		CountCrtcs:      res.CountCrtcs,
		CountConnectors: res.CountConnectors,
		CountEncoders:   res.CountEncoders,
	}
	if len(crtcIDs) > 0 {
		res2.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	}
	if len(connIDs) > 0 {
		res2.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connIDs[0])))
	}
	if len(encIDs) > 0 {
		res2.EncoderIDPtr = uint64(uintptr(unsafe.Pointer(&encIDs[0])))
	}
	if err := ioctl(fd, ioctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
		return nil, nil, nil, fmt.Errorf("GETRESOURCES (fill): %w", err)
	}
	return crtcIDs, connIDs, encIDs, nil
}

func getPlaneRes(fd uintptr) ([]uint32, error) {
	var pr drmModeGetPlaneRes
	if err := ioctl(fd, ioctlModeGetPlaneResources, unsafe.Pointer(&pr)); err != nil {
		return nil, fmt.Errorf("GETPLANERESOURCES (count): %w", err)
	}
	ids := make([]uint32, pr.CountPlanes)
	if len(ids) == 0 {
		return ids, nil
	}
	pr2 := drmModeGetPlaneRes{
		PlaneIDPtr:  uint64(uintptr(unsafe.Pointer(&ids[0]))),
		CountPlanes: pr.CountPlanes,
	}
	if err := ioctl(fd, ioctlModeGetPlaneResources, unsafe.Pointer(&pr2)); err != nil {
		return nil, fmt.Errorf("GETPLANERESOURCES (fill): %w", err)
	}
	return ids, nil
}

func getPlane(fd uintptr, id uint32) (*Plane, error) {
	gp := drmModeGetPlane{PlaneID: id}
	if err := ioctl(fd, ioctlModeGetPlane, unsafe.Pointer(&gp)); err != nil {
		return nil, fmt.Errorf("GETPLANE(%d) count: %w", id, err)
	}
	fourccs := make([]uint32, gp.CountFormatTypes)
	if len(fourccs) > 0 {
		gp2 := gp
		gp2.FormatTypePtr = uint64(uintptr(unsafe.Pointer(&fourccs[0])))
		if err := ioctl(fd, ioctlModeGetPlane, unsafe.Pointer(&gp2)); err != nil {
			return nil, fmt.Errorf("GETPLANE(%d) fill: %w", id, err)
		}
	}
	p := &Plane{ID: id, PossibleCrtcs: gp.PossibleCrtcs}
	for _, fc := range fourccs {
		p.Formats = append(p.Formats, FourCCMod{FourCC: fc, Modifier: 0 /* LINEAR, refined via IN_FORMATS blob */})
	}
	props, err := getObjectProperties(fd, id, objTypePlane)
	if err != nil {
		return nil, err
	}
	p.Props = props.ids
	if t, ok := props.values["type"]; ok {
		p.Type = PlaneType(t)
	}
	return p, nil
}

const (
	objTypeCRTC      = 0xcccccccc
	objTypeConnector = 0xc0c0c0c0
	objTypeEncoder   = 0xe0e0e0e0
	objTypePlane     = 0xeeeeeeee
)

type objProps struct {
	ids    PropIDs
	values map[string]uint64
}

// getObjectProperties enumerates every generic property on a mode object and
// resolves each property id to its name via GETPROPERTY, so callers can look
// up ids by name later when building an atomic request.
func getObjectProperties(fd uintptr, objID uint32, objType uint32) (objProps, error) {
	req := drmModeObjGetProperties{ObjID: objID}
	_ = objType // kernel infers object type validity from objID itself
	if err := ioctl(fd, ioctlModeObjGetProperties, unsafe.Pointer(&req)); err != nil {
		return objProps{}, fmt.Errorf("OBJ_GETPROPERTIES(%d) count: %w", objID, err)
	}
	propIDs := make([]uint32, req.CountProps)
	values := make([]uint64, req.CountProps)
	out := objProps{ids: make(PropIDs), values: make(map[string]uint64)}
	if req.CountProps == 0 {
		return out, nil
	}
	req2 := drmModeObjGetProperties{
		ObjID:         objID,
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&propIDs[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&values[0]))),
		CountProps:    req.CountProps,
	}
	if err := ioctl(fd, ioctlModeObjGetProperties, unsafe.Pointer(&req2)); err != nil {
		return objProps{}, fmt.Errorf("OBJ_GETPROPERTIES(%d) fill: %w", objID, err)
	}
	for i, pid := range propIDs {
		name, err := getPropertyName(fd, pid)
		if err != nil {
			continue
		}
		out.ids[name] = pid
		out.values[name] = values[i]
	}
	return out, nil
}

func getPropertyName(fd uintptr, propID uint32) (string, error) {
	gp := drmModeGetProperty{PropID: propID}
	if err := ioctl(fd, ioctlModeGetProperty, unsafe.Pointer(&gp)); err != nil {
		return "", fmt.Errorf("GETPROPERTY(%d): %w", propID, err)
	}
	n := 0
	for n < len(gp.Name) && gp.Name[n] != 0 {
		n++
	}
	return string(gp.Name[:n]), nil
}

func createPropBlob(fd uintptr, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	req := drmModeCreatePropBlob{
		Data:   uint64(uintptr(unsafe.Pointer(&data[0]))),
		Length: uint32(len(data)),
	}
	if err := ioctl(fd, ioctlModeCreatePropBlob, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("CREATEPROPBLOB: %w", err)
	}
	return req.BlobID, nil
}

func destroyPropBlob(fd uintptr, id uint32) error {
	if id == 0 {
		return nil
	}
	req := drmModeDestroyPropBlob{BlobID: id}
	if err := ioctl(fd, ioctlModeDestroyPropBlob, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DESTROYPROPBLOB(%d): %w", id, err)
	}
	return nil
}

// atomicCommit submits an atomic request. objs/counts/props/values are
// parallel-built by the Atomic Request Builder (atomic.go).
func atomicCommit(fd uintptr, flags uint32, objs []uint32, counts []uint32, props []uint32, values []uint64, userData uint64) error {
	req := drmModeAtomic{Flags: flags, CountObjs: uint32(len(objs)), UserData: userData}
	if len(objs) > 0 {
		req.ObjsPtr = uint64(uintptr(unsafe.Pointer(&objs[0])))
		req.CountPropsPtr = uint64(uintptr(unsafe.Pointer(&counts[0])))
	}
	if len(props) > 0 {
		req.PropsPtr = uint64(uintptr(unsafe.Pointer(&props[0])))
		req.ValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if err := ioctl(fd, ioctlModeAtomic, unsafe.Pointer(&req)); err != nil {
		return err
	}
	return nil
}

func createLease(fd uintptr, objectIDs []uint32) (leaseFD int, lesseeID uint32, err error) {
	if len(objectIDs) == 0 {
		return -1, 0, fmt.Errorf("no object ids")
	}
	req := drmModeCreateLease{
		ObjectIDs:   uint64(uintptr(unsafe.Pointer(&objectIDs[0]))),
		ObjectCount: uint32(len(objectIDs)),
	}
	if err := ioctl(fd, ioctlModeCreateLease, unsafe.Pointer(&req)); err != nil {
		return -1, 0, fmt.Errorf("CREATE_LEASE: %w", err)
	}
	return int(req.FD), req.LesseeID, nil
}

func revokeLease(fd uintptr, lesseeID uint32) error {
	req := drmModeRevokeLease{LesseeID: lesseeID}
	if err := ioctl(fd, ioctlModeRevokeLease, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("REVOKE_LEASE(%d): %w", lesseeID, err)
	}
	return nil
}

// createDumbBuffer allocates a CPU-mapped dumb buffer via
// DRM_IOCTL_MODE_CREATE_DUMB (§4.2 Dumb/CPU strategies).
func createDumbBuffer(fd uintptr, width, height, bpp uint32) (handle, pitch uint32, size uint64, err error) {
	req := drmModeCreateDumb{Height: height, Width: width, Bpp: bpp}
	if err := ioctl(fd, ioctlModeCreateDumb, unsafe.Pointer(&req)); err != nil {
		return 0, 0, 0, fmt.Errorf("CREATE_DUMB: %w", err)
	}
	return req.Handle, req.Pitch, req.Size, nil
}

// mapDumbBuffer maps handle's memory into the process via DRM_IOCTL_MODE_MAP_DUMB
// followed by mmap at the returned fake offset.
func mapDumbBuffer(fd uintptr, handle uint32, size uint64) ([]byte, error) {
	req := drmModeMapDumb{Handle: handle}
	if err := ioctl(fd, ioctlModeMapDumb, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("MAP_DUMB(%d): %w", handle, err)
	}
	mem, err := unix.Mmap(int(fd), int64(req.Offset), int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	return mem, nil
}

func unmapDumbBuffer(mem []byte) error {
	if mem == nil {
		return nil
	}
	return unix.Munmap(mem)
}

func destroyDumbBuffer(fd uintptr, handle uint32) error {
	req := drmModeDestroyDumb{Handle: handle}
	if err := ioctl(fd, ioctlModeDestroyDumb, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DESTROY_DUMB(%d): %w", handle, err)
	}
	return nil
}

// addFB2 registers handle as a scannable framebuffer via DRM_IOCTL_MODE_ADDFB2,
// the only ADDFB variant that carries an explicit format modifier.
func addFB2(fd uintptr, handle, width, height, fourcc uint32, modifier uint64) (uint32, error) {
	req := drmModeFBCmd2{Width: width, Height: height, PixelFormat: fourcc}
	req.Handles[0] = handle
	req.Modifier[0] = modifier
	if err := ioctl(fd, ioctlModeAddFB2, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("ADDFB2: %w", err)
	}
	return req.FbID, nil
}

func rmFB(fd uintptr, fbID uint32) error {
	id := fbID
	if err := ioctl(fd, ioctlModeRmFB, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("RMFB(%d): %w", fbID, err)
	}
	return nil
}

// primeHandleToFD exports a GEM handle as a dma-buf fd via
// DRM_IOCTL_PRIME_HANDLE_TO_FD (§4.3 "ExportDMABUF").
func primeHandleToFD(fd uintptr, handle uint32) (int, error) {
	req := drmPrimeHandle{Handle: handle, Flags: unix.O_CLOEXEC}
	if err := ioctl(fd, ioctlPrimeHandleToFD, unsafe.Pointer(&req)); err != nil {
		return -1, fmt.Errorf("PRIME_HANDLE_TO_FD(%d): %w", handle, err)
	}
	return int(req.FD), nil
}

// primeFDToHandle imports a dma-buf fd as a device-local GEM handle via
// DRM_IOCTL_PRIME_FD_TO_HANDLE (the renderer's framebuffer cache import path).
func primeFDToHandle(fd uintptr, dmaFD int) (uint32, error) {
	req := drmPrimeHandle{FD: int32(dmaFD)}
	if err := ioctl(fd, ioctlPrimeFDToHandle, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("PRIME_FD_TO_HANDLE(%d): %w", dmaFD, err)
	}
	return req.Handle, nil
}

func gemClose(fd uintptr, handle uint32) error {
	req := drmGEMClose{Handle: handle}
	if err := ioctl(fd, ioctlGEMClose, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("GEM_CLOSE(%d): %w", handle, err)
	}
	return nil
}

// setCursor2 uploads handle as crtcID's legacy hardware cursor image via
// DRM_IOCTL_MODE_CURSOR2 (§4.5 ModeLegacy); handle 0 clears the cursor.
func setCursor2(fd uintptr, crtcID, handle, width, height uint32, hotX, hotY int32) error {
	req := drmModeCursor2{Flags: cursorFlagBO, CrtcID: crtcID, Width: width, Height: height, Handle: handle, HotX: hotX, HotY: hotY}
	if err := ioctl(fd, ioctlModeCursor2, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("CURSOR2(set, crtc %d): %w", crtcID, err)
	}
	return nil
}

func moveCursor2(fd uintptr, crtcID uint32, x, y int32) error {
	req := drmModeCursor2{Flags: cursorFlagMove, CrtcID: crtcID, X: x, Y: y}
	if err := ioctl(fd, ioctlModeCursor2, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("CURSOR2(move, crtc %d): %w", crtcID, err)
	}
	return nil
}
