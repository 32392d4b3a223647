// Package hotplug defines the hotplug monitor collaborator (§6), which
// delivers connector connect/disconnect events on its Events channel, plus
// a sysfs-based reference implementation.
package hotplug

import "context"

// Event reports that a connector changed connection state. DevicePath is
// the sysfs status file that changed; ConnectorName is the connector's sysfs
// entry name (e.g. "card0-HDMI-A-1").
type Event struct {
	DevicePath    string
	ConnectorName string
}

// Monitor watches for connector hotplug events. A production host is
// expected to supply a udev-netlink-backed Monitor (out of scope, §1); this
// package's SysfsWatcher is adequate for development and the examples in
// this repo.
type Monitor interface {
	// Events returns a channel of hotplug events; closed when the monitor
	// is stopped.
	Events() <-chan Event
	// Run blocks dispatching events until ctx is cancelled.
	Run(ctx context.Context) error
	// Close stops the monitor.
	Close() error
}
