package kms

// ImportGEMHandle imports a dma-buf fd as a device-local GEM handle, for
// turning an exported buffer from another device/process into something
// AddFramebuffer can scan out (§4.3 renderer framebuffer cache).
func (d *Device) ImportGEMHandle(fd int) (uint32, error) {
	return primeFDToHandle(d.FD, fd)
}

// CloseGEMHandle releases a GEM handle previously obtained via
// ImportGEMHandle. Handles backed by a DumbBuffer are released through
// DumbBuffer.Close instead and must not be passed here.
func (d *Device) CloseGEMHandle(handle uint32) error {
	return gemClose(d.FD, handle)
}

// AddFramebuffer registers handle as a scannable framebuffer with the given
// geometry and (fourcc, modifier) pair, returning the fb id to set on
// FB_ID/CRTC_ID property commits.
func (d *Device) AddFramebuffer(handle uint32, width, height uint32, f FourCCMod) (uint32, error) {
	return addFB2(d.FD, handle, width, height, f.FourCC, f.Modifier)
}

// DestroyFramebuffer removes a framebuffer id created by AddFramebuffer. It
// does not touch the backing GEM handle.
func (d *Device) DestroyFramebuffer(fbID uint32) error {
	return rmFB(d.FD, fbID)
}

// SetCursor uploads handle as crtcID's legacy hardware cursor image via
// DRM_IOCTL_MODE_CURSOR2 (§4.5 ModeLegacy, for connectors without a free
// cursor-type plane). Pass handle 0 to hide the cursor.
func (d *Device) SetCursor(crtcID, handle, width, height uint32, hotX, hotY int32) error {
	return setCursor2(d.FD, crtcID, handle, width, height, hotX, hotY)
}

// MoveCursor repositions crtcID's legacy hardware cursor.
func (d *Device) MoveCursor(crtcID uint32, x, y int32) error {
	return moveCursor2(d.FD, crtcID, x, y)
}
