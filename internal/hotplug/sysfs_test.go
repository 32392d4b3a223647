package hotplug_test

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/hotplug"
)

func writeStatus(t *testing.T, root, card string) string {
	t.Helper()
	dir := filepath.Join(root, card)
	require.NoError(t, os.MkdirAll(dir, fs.FileMode(0o755)))
	status := filepath.Join(dir, "status")
	require.NoError(t, os.WriteFile(status, []byte("disconnected\n"), 0o644))
	return status
}

func TestSysfsWatcherReportsStatusWrites(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, root, "card0-HDMI-A-1")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	w, err := hotplug.NewSysfsWatcher(root, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "card0-HDMI-A-1", "status"), []byte("connected\n"), 0o644))

	select {
	case ev := <-w.Events():
		require.Equal(t, "card0-HDMI-A-1", ev.ConnectorName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hotplug event")
	}
}

func TestSysfsWatcherMissingRootErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_, err := hotplug.NewSysfsWatcher(filepath.Join(t.TempDir(), "does-not-exist"), logger)
	require.Error(t, err)
}

func TestSysfsWatcherClosesEventsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	writeStatus(t, root, "card0-HDMI-A-1")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	w, err := hotplug.NewSysfsWatcher(root, logger)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case <-done:
		_, open := <-w.Events()
		require.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
