// Package kmscore is the public facade over the internal KMS/DRM rendering
// core: open a device, enumerate its connectors, and drive each through the
// Connector Renderer lifecycle (§6).
package kmscore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/crznic/kmscore/internal/envcfg"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/pageflip"
	"github.com/crznic/kmscore/internal/renderer"
	"github.com/crznic/kmscore/internal/seat"
	"github.com/crznic/kmscore/internal/strategy"
)

// Core owns one DRM device and every Connector built against it.
type Core struct {
	logger *slog.Logger
	env    envcfg.Snapshot
	opener seat.Opener

	device *kms.Device
	pf     *pageflip.Tracker
	sel    *strategy.Selector

	// connectors is read from Connectors()/Connector() by callers while each
	// Connector's own render goroutine runs independently, so lookups can't
	// hold a single mutex across the whole registry without serializing
	// unrelated connectors.
	connectors *xsync.MapOf[string, *renderer.Connector]

	pfCancel context.CancelFunc
}

// Options configures Open.
type Options struct {
	DevicePath string
	Opener     seat.Opener // nil opens the node directly with kms.Open
	Logger     *slog.Logger
	Allocator  strategy.Allocator // renderer-GPU allocator; nil restricts selection to Dumb/CPU
	EnvPrefix  string             // defaults to "KMSCORE"
}

// Open opens a DRM device (through the seat opener if the caller supplies
// one, otherwise directly) and enumerates its connectors.
func Open(ctx context.Context, opts Options) (*Core, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "KMSCORE"
	}
	env, err := envcfg.Load(prefix)
	if err != nil {
		return nil, fmt.Errorf("kmscore: load env config: %w", err)
	}
	if env.IsBlacklisted(opts.DevicePath) {
		return nil, fmt.Errorf("kmscore: device %s is blacklisted", opts.DevicePath)
	}

	var dev *kms.Device
	if opts.Opener != nil {
		fd, err := opts.Opener.OpenRestricted(ctx, opts.DevicePath)
		if err != nil {
			return nil, err
		}
		dev, err = kms.OpenFD(uintptr(fd), opts.DevicePath, logger)
		if err != nil {
			opts.Opener.CloseRestricted(fd)
			return nil, err
		}
	} else {
		dev, err = kms.Open(opts.DevicePath, logger)
		if err != nil {
			return nil, err
		}
	}

	var forced *strategy.Kind
	if env.ForceGLAllocation {
		k := strategy.Self
		forced = &k
	}

	c := &Core{
		logger:     logger,
		env:        env,
		opener:     opts.Opener,
		device:     dev,
		pf:         pageflip.NewTracker(),
		sel:        strategy.NewSelector(opts.Allocator, forced),
		connectors: xsync.NewMapOf[string, *renderer.Connector](),
	}

	for _, kc := range dev.Connectors {
		c.connectors.Store(kc.Name(), renderer.New(renderer.Deps{
			Device:    dev,
			Selector:  c.sel,
			PFTracker: c.pf,
			Logger:    logger,
		}, kc))
	}

	pfCtx, pfCancel := context.WithCancel(context.Background())
	c.pfCancel = pfCancel
	go c.pf.Run(pfCtx, dev)

	return c, nil
}

// Connectors returns every enumerated connector by name.
func (c *Core) Connectors() map[string]*renderer.Connector {
	out := make(map[string]*renderer.Connector, c.connectors.Size())
	c.connectors.Range(func(name string, conn *renderer.Connector) bool {
		out[name] = conn
		return true
	})
	return out
}

// Connector looks up one connector by its conventional name (e.g. "HDMI-A-1").
func (c *Core) Connector(name string) (*renderer.Connector, bool) {
	return c.connectors.Load(name)
}

// Device exposes the underlying device for lease creation (§6 lease flow).
func (c *Core) Device() *kms.Device { return c.device }

// Close uninitializes every still-running connector, stops the device's
// page-flip event-draining loop and closes the device.
func (c *Core) Close() error {
	c.connectors.Range(func(_ string, conn *renderer.Connector) bool {
		if conn.State() != renderer.StateUninitialized {
			conn.Uninitialize()
		}
		return true
	})
	if c.pfCancel != nil {
		c.pfCancel()
	}
	return c.device.Close(c.logger)
}
