// Package seat defines the device open/close collaborator the spec calls
// open_restricted/close_restricted (§6): acquiring a DRM device fd through
// a seat manager instead of opening the device node directly, so the
// renderer can run unprivileged under a display manager.
package seat

import "context"

// Opener opens and closes DRM device nodes on behalf of the renderer.
type Opener interface {
	// OpenRestricted acquires a usable fd for the device at path (major:minor
	// is derived from it), suitable for DRM ioctls.
	OpenRestricted(ctx context.Context, path string) (fd int, err error)
	// CloseRestricted releases a fd previously returned by OpenRestricted.
	CloseRestricted(fd int) error
}
