// kms-lease-client requests a DRM lease fd from cmd/kms-lease-server over
// the SCM_RIGHTS socket protocol, then drives the leased connector through
// the Connector Renderer lifecycle for a fixed duration before releasing it.
//
// Grounded on the teacher's api/pkg/drm.Client (socket request, SCM_RIGHTS
// fd receipt, liveness connection) and cmd/helix-drm-manager's flag/signal
// plumbing (since superseded by cmd/kms-lease-server). The leased fd is
// wrapped with kms.OpenFD rather than kms.Open, since a lease is not a DRM
// master fd.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/drm"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/pageflip"
	"github.com/crznic/kmscore/internal/renderer"
	"github.com/crznic/kmscore/internal/strategy"
)

func main() {
	socketPath := flag.String("socket", envOrDefault("KMS_LEASE_SOCKET", "/run/kmscore-lease.sock"), "kms-lease-server unix socket")
	width := flag.Uint("width", 1920, "requested scanout width")
	height := flag.Uint("height", 1080, "requested scanout height")
	duration := flag.Duration("duration", 10*time.Second, "how long to render before releasing the lease")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := drm.NewClient(*socketPath)
	lease, err := client.RequestLease(uint32(*width), uint32(*height))
	if err != nil {
		logger.Error("lease request failed", "socket", *socketPath, "err", err)
		os.Exit(1)
	}
	defer lease.Close()
	defer func() { _ = client.ReleaseLease(lease.ConnectorID) }()

	logger.Info("lease granted", "connector_id", lease.ConnectorID, "connector", lease.ConnectorName)

	dev, err := kms.OpenFD(uintptr(lease.LeaseFD), lease.ConnectorName, logger)
	if err != nil {
		logger.Error("enumerate leased device failed", "err", err)
		os.Exit(1)
	}
	defer dev.Close(logger)

	var kc *kms.Connector
	for _, c := range dev.Connectors {
		if c.Name() == lease.ConnectorName {
			kc = c
			break
		}
	}
	if kc == nil {
		logger.Error("leased connector not found among enumerated connectors", "connector", lease.ConnectorName)
		os.Exit(1)
	}

	sel := strategy.NewSelector(nil, nil)
	pf := pageflip.NewTracker()
	pfCtx, pfCancel := context.WithCancel(ctx)
	defer pfCancel()
	go pf.Run(pfCtx, dev)

	conn := renderer.New(renderer.Deps{
		Device:    dev,
		Selector:  sel,
		PFTracker: pf,
		Logger:    logger,
	}, kc)

	if err := conn.Initialize(ctx, renderer.InitOpts{ModeIndex: -1, BufferCount: 2}, renderer.Callbacks{
		Paint: func(c *renderer.Connector, img buffer.Image) error {
			if cpu, ok := img.(buffer.CPUAccessible); ok {
				px := cpu.Pixels()
				for i := 0; i < len(px); i += 4 {
					px[i], px[i+1], px[i+2], px[i+3] = 0x20, 0x20, 0x20, 0xff
				}
			}
			return nil
		},
	}); err != nil {
		logger.Error("initialize failed", "err", err)
		os.Exit(1)
	}
	logger.Info("leased connector initialized", "connector", kc.Name(), "mode", conn.ActiveMode())

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(*duration)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			conn.Repaint()
		}
	}

	if err := conn.Uninitialize(); err != nil {
		logger.Error("uninitialize failed", "err", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
