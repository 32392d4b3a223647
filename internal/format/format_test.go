package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crznic/kmscore/internal/format"
	"github.com/crznic/kmscore/internal/kms"
)

const (
	xrgb8888 = 0x34325258
	argb8888 = 0x34325241
	nv12     = 0x3231564e
)

func TestHasAndLen(t *testing.T) {
	s := format.New(
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 0},
		kms.FourCCMod{FourCC: argb8888, Modifier: 1},
	)
	assert.True(t, s.Has(xrgb8888, 0))
	assert.False(t, s.Has(xrgb8888, 1))
	assert.Equal(t, 2, s.Len())
}

func TestIntersect(t *testing.T) {
	a := format.New(
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 0},
		kms.FourCCMod{FourCC: nv12, Modifier: 0},
	)
	b := format.New(
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 0},
		kms.FourCCMod{FourCC: argb8888, Modifier: 0},
	)
	got := a.Intersect(b)
	assert.Equal(t, 1, got.Len())
	assert.True(t, got.Has(xrgb8888, 0))
}

func TestWithoutModifier(t *testing.T) {
	s := format.New(
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 0},
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 5},
	)
	got := s.WithoutModifier(5)
	assert.Equal(t, 1, got.Len())
	assert.False(t, got.Has(xrgb8888, 5))
}

func TestPreferredOrderPutsPreferredFourCCsFirst(t *testing.T) {
	s := format.New(
		kms.FourCCMod{FourCC: nv12, Modifier: 0},
		kms.FourCCMod{FourCC: xrgb8888, Modifier: 0},
		kms.FourCCMod{FourCC: argb8888, Modifier: 0},
	)
	ordered := s.PreferredOrder(xrgb8888, argb8888)
	assert.Equal(t, uint32(xrgb8888), ordered[0].FourCC)
	assert.Equal(t, uint32(argb8888), ordered[1].FourCC)
	assert.Equal(t, uint32(nv12), ordered[2].FourCC)
}
