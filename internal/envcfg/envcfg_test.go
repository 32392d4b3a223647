package envcfg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/envcfg"
)

func TestLoadAppliesDefaults(t *testing.T) {
	s, err := envcfg.Load("KMSCOREENVTEST")
	require.NoError(t, err)
	assert.False(t, s.ForceLegacyAPI)
	assert.Equal(t, 2, s.RenderModeSelfFBCount)
	assert.Equal(t, "", s.DeviceBlacklist)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("KMSCOREENVTEST_FORCE_LEGACY_API", "true")
	t.Setenv("KMSCOREENVTEST_RENDER_MODE_DUMB_FB_COUNT", "3")
	t.Setenv("KMSCOREENVTEST_DEVICE_BLACKLIST", "/dev/dri/card1,/dev/dri/card2")

	s, err := envcfg.Load("KMSCOREENVTEST")
	require.NoError(t, err)
	assert.True(t, s.ForceLegacyAPI)
	assert.Equal(t, 3, s.RenderModeDumbFBCount)
	assert.True(t, s.IsBlacklisted("/dev/dri/card1"))
	assert.True(t, s.IsBlacklisted("/dev/dri/card2"))
	assert.False(t, s.IsBlacklisted("/dev/dri/card0"))
}

func TestIsBlacklistedEmptyList(t *testing.T) {
	s := envcfg.Snapshot{}
	assert.False(t, s.IsBlacklisted("/dev/dri/card0"))
}
