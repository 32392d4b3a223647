package strategy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/format"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/strategy"
)

const xrgb8888 = 0x34325258

type fakeAllocator struct{ calls int }

func (a *fakeAllocator) Allocate(ctx context.Context, f kms.FourCCMod, w, h uint32) (buffer.Image, error) {
	a.calls++
	return buffer.NewFake(f, w, h, a.calls), nil
}

func TestSelectorPrefersSelfWhenAllocatorAvailable(t *testing.T) {
	alloc := &fakeAllocator{}
	sel := strategy.NewSelector(alloc, nil)
	planeFormats := format.New(kms.FourCCMod{FourCC: xrgb8888, Modifier: 0})

	strat, chosen, err := sel.Select(&kms.Device{}, &kms.Plane{}, planeFormats)
	require.NoError(t, err)
	assert.Equal(t, strategy.Self, strat.Kind())
	assert.Equal(t, uint32(xrgb8888), chosen.FourCC)
}

func TestSelectorFallsBackToDumbWithoutAllocator(t *testing.T) {
	sel := strategy.NewSelector(nil, nil)
	planeFormats := format.New(kms.FourCCMod{FourCC: xrgb8888, Modifier: 0})

	strat, _, err := sel.Select(&kms.Device{}, &kms.Plane{}, planeFormats)
	require.NoError(t, err)
	assert.Equal(t, strategy.Dumb, strat.Kind())
}

func TestSelectorHonorsForcedKind(t *testing.T) {
	cpu := strategy.CPU
	sel := strategy.NewSelector(&fakeAllocator{}, &cpu)
	planeFormats := format.New(kms.FourCCMod{FourCC: xrgb8888, Modifier: 0})

	strat, _, err := sel.Select(&kms.Device{}, &kms.Plane{}, planeFormats)
	require.NoError(t, err)
	assert.Equal(t, strategy.CPU, strat.Kind())
}

func TestSelectorReturnsErrNoViableStrategyOnEmptyFormats(t *testing.T) {
	sel := strategy.NewSelector(&fakeAllocator{}, nil)
	_, _, err := sel.Select(&kms.Device{}, &kms.Plane{}, format.New())
	assert.ErrorIs(t, err, strategy.ErrNoViableStrategy)
}

func TestSwapchainLifecycleThroughStrategy(t *testing.T) {
	alloc := &fakeAllocator{}
	sel := strategy.NewSelector(alloc, nil)
	planeFormats := format.New(kms.FourCCMod{FourCC: xrgb8888, Modifier: 0})
	strat, chosen, err := sel.Select(&kms.Device{}, &kms.Plane{}, planeFormats)
	require.NoError(t, err)

	sc, err := strat.InitSwapchain(context.Background(), &kms.Plane{}, chosen, 1920, 1080, 2)
	require.NoError(t, err)
	require.Equal(t, 2, sc.Len())

	first := sc.Current()
	img := strat.AdvanceFrame(sc)
	assert.NotEqual(t, first, img)
	require.NoError(t, strat.Teardown())
}
