package pageflip_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/pageflip"
)

func TestBeginRejectsDoubleOutstandingFlip(t *testing.T) {
	tr := pageflip.NewTracker()
	require.NoError(t, tr.Begin(1))
	assert.True(t, tr.Pending(1))

	err := tr.Begin(1)
	assert.Error(t, err)

	tr.Complete(1, 0, 0, 0)
	assert.False(t, tr.Pending(1))
}

func TestWaitReturnsImmediatelyWithNoOutstandingFlip(t *testing.T) {
	tr := pageflip.NewTracker()
	_, err := tr.Wait(context.Background(), 1)
	assert.NoError(t, err)
}

func TestWaitUnblocksOnCompletion(t *testing.T) {
	tr := pageflip.NewTracker()
	require.NoError(t, tr.Begin(1))

	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.Complete(1, 42, 1, 2)
	}()

	comp, err := tr.Wait(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 42, comp.Seq)
	assert.False(t, tr.Pending(1))
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	tr := pageflip.NewTracker()
	require.NoError(t, tr.Begin(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Wait(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancelDropsOutstandingWithoutCompletion(t *testing.T) {
	tr := pageflip.NewTracker()
	require.NoError(t, tr.Begin(1))
	tr.Cancel(1)
	assert.False(t, tr.Pending(1))
}
