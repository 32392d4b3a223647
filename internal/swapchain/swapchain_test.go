package swapchain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/swapchain"
)

func newImages(t *testing.T, n int) []buffer.Image {
	t.Helper()
	fmtPair := kms.FourCCMod{FourCC: 0x34325258, Modifier: 0}
	imgs := make([]buffer.Image, n)
	for i := range imgs {
		imgs[i] = buffer.NewFake(fmtPair, 1920, 1080, 100+i)
	}
	return imgs
}

func TestFreshSwapchainReportsZeroAge(t *testing.T) {
	sc := swapchain.New(newImages(t, 3))
	require.NotNil(t, sc.Current())
	assert.EqualValues(t, 0, sc.Age())
}

func TestAdvanceCyclesAndAges(t *testing.T) {
	sc := swapchain.New(newImages(t, 3))
	first := sc.Current()

	sc.Advance()
	assert.NotEqual(t, first, sc.Current())
	assert.EqualValues(t, 0, sc.Age(), "slot not yet presented should still read age 0")

	sc.Advance()
	sc.Advance()
	// after a full cycle, first's slot is current again; it was presented
	// three frames ago, so its age is 3
	assert.Equal(t, first, sc.Current())
	assert.EqualValues(t, 3, sc.Age())
}

func TestResetAgesClearsEverySlot(t *testing.T) {
	sc := swapchain.New(newImages(t, 2))
	sc.Advance()
	sc.Advance()
	sc.ResetAges()
	assert.EqualValues(t, 0, sc.Age())
}

func TestCloseClosesEveryImage(t *testing.T) {
	imgs := newImages(t, 2)
	sc := swapchain.New(imgs)
	require.NoError(t, sc.Close())
	for _, img := range imgs {
		assert.True(t, img.(*buffer.Fake).Closed())
	}
}
