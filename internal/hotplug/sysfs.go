package hotplug

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// SysfsWatcher watches /sys/class/drm/*/status for writes, which the kernel
// performs on every connector reprobe (connect, disconnect, or an explicit
// userspace reprobe — mirrors the teacher's reprobeConnector in
// api/pkg/drm/ioctl_linux.go, which writes to this same path from the other
// direction).
type SysfsWatcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	logger  *slog.Logger
}

// NewSysfsWatcher globs sysfsRoot (normally "/sys/class/drm") for
// "<card>-<connector>/status" entries and watches each one.
func NewSysfsWatcher(sysfsRoot string, logger *slog.Logger) (*SysfsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hotplug: new watcher: %w", err)
	}

	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("hotplug: read %s: %w", sysfsRoot, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), "-") {
			continue
		}
		status := filepath.Join(sysfsRoot, e.Name(), "status")
		if _, err := os.Stat(status); err != nil {
			continue
		}
		if err := w.Add(status); err != nil {
			logger.Warn("hotplug: watch failed", "path", status, "err", err)
		}
	}

	return &SysfsWatcher{watcher: w, events: make(chan Event, 16), logger: logger}, nil
}

func (s *SysfsWatcher) Events() <-chan Event { return s.events }

func (s *SysfsWatcher) Run(ctx context.Context) error {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			connector := filepath.Base(filepath.Dir(ev.Name))
			select {
			case s.events <- Event{DevicePath: ev.Name, ConnectorName: connector}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("hotplug: watcher error", "err", err)
		}
	}
}

func (s *SysfsWatcher) Close() error {
	return s.watcher.Close()
}
