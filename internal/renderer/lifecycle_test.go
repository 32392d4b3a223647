package renderer_test

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/pageflip"
	"github.com/crznic/kmscore/internal/renderer"
	"github.com/crznic/kmscore/internal/strategy"
)

const xrgb8888 = 0x34325258

type fakeAllocator struct{ n int }

func (a *fakeAllocator) Allocate(ctx context.Context, f kms.FourCCMod, w, h uint32) (buffer.Image, error) {
	a.n++
	return buffer.NewFake(f, w, h, a.n), nil
}

func testDevice() (*kms.Device, *kms.Connector) {
	crtc := &kms.CRTC{ID: 10, GammaSize: 256, Props: kms.PropIDs{"GAMMA_LUT": 1}}
	plane := &kms.Plane{
		ID:            20,
		Type:          kms.PlanePrimary,
		PossibleCrtcs: 1,
		Formats:       []kms.FourCCMod{{FourCC: xrgb8888, Modifier: 0}},
	}
	enc := &kms.Encoder{ID: 30, PossibleCrtcs: 1}
	conn := &kms.Connector{
		ID:            40,
		Type:          kms.ConnectorHDMIA,
		Connected:     true,
		EncoderIDs:    []uint32{30},
		PreferredMode: 0,
		Props:         kms.PropIDs{"content type": 2},
		Modes: []kms.Mode{
			{Hdisplay: 1920, Vdisplay: 1080, RefreshHz: 60, Preferred: true},
		},
	}
	dev := &kms.Device{
		CRTCs:      []*kms.CRTC{crtc},
		Planes:     []*kms.Plane{plane},
		Encoders:   []*kms.Encoder{enc},
		Connectors: []*kms.Connector{conn},
	}
	return dev, conn
}

func newTestConnector(t *testing.T) *renderer.Connector {
	t.Helper()
	dev, conn := testDevice()
	sel := strategy.NewSelector(&fakeAllocator{}, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := renderer.Deps{
		Device:    dev,
		Selector:  sel,
		PFTracker: pageflip.NewTracker(),
		Logger:    logger,
	}
	return renderer.New(deps, conn)
}

func TestInitializeAssignsHardwareAndStartsInitialized(t *testing.T) {
	c := newTestConnector(t)
	require.Equal(t, renderer.StateUninitialized, c.State())

	err := c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1, BufferCount: 2}, renderer.Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, renderer.StateInitialized, c.State())
	assert.Equal(t, 0, c.ActiveMode())
}

func TestDoubleInitializeFails(t *testing.T) {
	c := newTestConnector(t)
	require.NoError(t, c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, renderer.Callbacks{}))
	err := c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, renderer.Callbacks{})
	assert.Error(t, err)
}

func TestRepaintRequiresInitialized(t *testing.T) {
	c := newTestConnector(t)
	assert.ErrorIs(t, c.Repaint(), renderer.ErrNotInitialized)
}

func TestUninitializeReturnsToUninitialized(t *testing.T) {
	c := newTestConnector(t)
	require.NoError(t, c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, renderer.Callbacks{}))
	require.NoError(t, c.Uninitialize())
	assert.Equal(t, renderer.StateUninitialized, c.State())
}

func TestUnknownModeIndexFails(t *testing.T) {
	c := newTestConnector(t)
	err := c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: 5}, renderer.Callbacks{})
	assert.ErrorIs(t, err, renderer.ErrUnknownMode)
}

func TestInitializeFiresInitializedCallback(t *testing.T) {
	c := newTestConnector(t)
	var fired *renderer.Connector
	cb := renderer.Callbacks{Initialized: func(conn *renderer.Connector) { fired = conn }}
	require.NoError(t, c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, cb))
	assert.Same(t, c, fired)
}

func TestUninitializeFiresUninitializedCallback(t *testing.T) {
	c := newTestConnector(t)
	fired := false
	cb := renderer.Callbacks{Uninitialized: func(conn *renderer.Connector) { fired = true }}
	require.NoError(t, c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, cb))
	require.NoError(t, c.Uninitialize())
	assert.True(t, fired)
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	c := newTestConnector(t)
	require.NoError(t, c.Initialize(context.Background(), renderer.InitOpts{ModeIndex: -1}, renderer.Callbacks{}))
	require.NoError(t, c.Suspend())
	assert.Equal(t, renderer.StateSuspended, c.State())
	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, renderer.StateInitialized, c.State())
}
