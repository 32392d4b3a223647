// kmsctl is an example CLI: it opens a DRM device, lists its connectors and
// (optionally) drives one through the full renderer lifecycle for a fixed
// duration. Grounded on the teacher's cmd/helix-drm-manager (slog setup,
// envOrDefault, signal.NotifyContext).
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
	"github.com/crznic/kmscore/internal/renderer"
	"github.com/crznic/kmscore/pkg/kmscore"
)

func main() {
	device := flag.String("device", envOrDefault("KMSCTL_DEVICE", "/dev/dri/card0"), "DRM device node")
	connectorName := flag.String("connector", "", "connector to drive through the lifecycle (e.g. HDMI-A-1); lists connectors if empty")
	duration := flag.Duration("duration", 10*time.Second, "how long to render before uninitializing")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	core, err := kmscore.Open(ctx, kmscore.Options{DevicePath: *device, Logger: logger})
	if err != nil {
		logger.Error("open device failed", "device", *device, "err", err)
		os.Exit(1)
	}
	defer core.Close()

	if *connectorName == "" {
		for name, conn := range core.Connectors() {
			logger.Info("connector", "name", name, "state", conn.State())
		}
		return
	}

	conn, ok := core.Connector(*connectorName)
	if !ok {
		logger.Error("unknown connector", "name", *connectorName)
		os.Exit(1)
	}

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
		logger.Error("initialize failed", "connector", *connectorName, "err", err)
		os.Exit(1)
	}
	logger.Info("connector initialized", "connector", *connectorName, "mode", conn.ActiveMode())

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
