package kms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRTCMask(t *testing.T) {
	d := &Device{CRTCs: []*CRTC{{ID: 10}, {ID: 11}, {ID: 12}}}
	assert.EqualValues(t, 1, d.CRTCMask(10))
	assert.EqualValues(t, 2, d.CRTCMask(11))
	assert.EqualValues(t, 4, d.CRTCMask(12))
	assert.EqualValues(t, 0, d.CRTCMask(99))
}

func TestDeviceLookupsByID(t *testing.T) {
	d := &Device{
		CRTCs:      []*CRTC{{ID: 1}},
		Encoders:   []*Encoder{{ID: 2}},
		Planes:     []*Plane{{ID: 3}},
		Connectors: []*Connector{{ID: 4}},
	}
	assert.NotNil(t, d.CRTC(1))
	assert.Nil(t, d.CRTC(99))
	assert.NotNil(t, d.Encoder(2))
	assert.NotNil(t, d.Plane(3))
	assert.NotNil(t, d.Connector(4))
}

func TestPlaneModifierBlacklist(t *testing.T) {
	p := &Plane{}
	assert.False(t, p.IsSyncOnly(7))
	p.BlacklistModifier(7)
	assert.True(t, p.IsSyncOnly(7))
	assert.False(t, p.IsSyncOnly(8))
}

func TestFlattenPropSetsGroupsByObject(t *testing.T) {
	objs, counts, props, values := flattenPropSets([]propSet{
		{objID: 1, propID: 100, value: 1},
		{objID: 2, propID: 200, value: 2},
		{objID: 1, propID: 101, value: 3},
	})
	assert.Equal(t, []uint32{1, 2}, objs)
	assert.Equal(t, []uint32{2, 1}, counts)
	assert.Equal(t, []uint32{100, 101, 200}, props)
	assert.Equal(t, []uint64{1, 3, 2}, values)
}

func TestConnectorName(t *testing.T) {
	c := &Connector{Type: ConnectorHDMIA, TypeOrdinal: 2}
	assert.Equal(t, "HDMI-A-2", c.Name())
}
