package cursor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/cursor"
	"github.com/crznic/kmscore/internal/kms"
)

type fakeSetter struct {
	lastBuf   []byte
	lastX     int32
	lastY     int32
	setCalls  int
	moveCalls int
}

func (f *fakeSetter) SetBuffer(ctx context.Context, argb []byte) error {
	f.setCalls++
	f.lastBuf = argb
	return nil
}

func (f *fakeSetter) Move(ctx context.Context, x, y int32) error {
	f.moveCalls++
	f.lastX, f.lastY = x, y
	return nil
}

func TestSetImageRequiresExactSize(t *testing.T) {
	e := cursor.New(cursor.ModeAtomicPlane, &fakeSetter{})
	err := e.SetImage(context.Background(), []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSyncPushesWhenVisible(t *testing.T) {
	setter := &fakeSetter{}
	e := cursor.New(cursor.ModeAtomicPlane, setter)
	require.NoError(t, e.SetVisible(context.Background(), true))

	img := make([]byte, cursor.Size*cursor.Size*4)
	img[0] = 0xFF
	require.NoError(t, e.SetImage(context.Background(), img))
	assert.Equal(t, 0, setter.setCalls, "SetImage must not push to hardware on its own")

	require.NoError(t, e.Sync(context.Background()))
	assert.Equal(t, 1, setter.setCalls)
	assert.Equal(t, byte(0xFF), setter.lastBuf[0])
}

func TestSyncPushesNilBufferWhenHidden(t *testing.T) {
	setter := &fakeSetter{}
	e := cursor.New(cursor.ModeAtomicPlane, setter)

	img := make([]byte, cursor.Size*cursor.Size*4)
	require.NoError(t, e.SetImage(context.Background(), img))
	require.NoError(t, e.Sync(context.Background()))
	assert.Equal(t, 1, setter.setCalls)
	assert.Nil(t, setter.lastBuf)
}

func TestModeNoneIsANoop(t *testing.T) {
	e := cursor.New(cursor.ModeNone, nil)
	img := make([]byte, cursor.Size*cursor.Size*4)
	require.NoError(t, e.SetImage(context.Background(), img))
	require.NoError(t, e.SetVisible(context.Background(), true))
	require.NoError(t, e.SetPosition(context.Background(), 5, 5))
	require.NoError(t, e.Sync(context.Background()))
}

func TestSetPositionTracksLastValue(t *testing.T) {
	setter := &fakeSetter{}
	e := cursor.New(cursor.ModeAtomicPlane, setter)
	require.NoError(t, e.SetPosition(context.Background(), 10, 20))
	x, y := e.Position()
	assert.EqualValues(t, 10, x)
	assert.EqualValues(t, 20, y)
	assert.Equal(t, 0, setter.moveCalls, "SetPosition must not push to hardware on its own")

	require.NoError(t, e.Sync(context.Background()))
	assert.Equal(t, 1, setter.moveCalls)
	assert.EqualValues(t, 10, setter.lastX)
	assert.EqualValues(t, 20, setter.lastY)
}

func TestChooseMode(t *testing.T) {
	plane := &kms.Plane{}
	assert.Equal(t, cursor.ModeNone, cursor.ChooseMode(plane, true, true, true))
	assert.Equal(t, cursor.ModeAtomicPlane, cursor.ChooseMode(plane, true, true, false))
	assert.Equal(t, cursor.ModeLegacy, cursor.ChooseMode(nil, true, true, false))
	assert.Equal(t, cursor.ModeNone, cursor.ChooseMode(nil, true, false, false))
}
