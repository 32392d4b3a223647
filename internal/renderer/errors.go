package renderer

import "errors"

var (
	ErrNotInitialized   = errors.New("renderer: connector is not initialized")
	ErrAlreadyRunning   = errors.New("renderer: connector is already initialized")
	ErrUnknownMode      = errors.New("renderer: mode index out of range for this connector")
	ErrNoPlaneAvailable = errors.New("renderer: no free primary plane/CRTC pairing for this connector")
	ErrSuspended        = errors.New("renderer: connector is suspended")
)
