package seat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crznic/kmscore/internal/seat"
)

func TestDirectOpenerOpenAndCloseRestricted(t *testing.T) {
	var o seat.Opener = seat.DirectOpener{}

	fd, err := o.OpenRestricted(context.Background(), "/dev/null")
	require.NoError(t, err)
	assert.Greater(t, fd, -1)

	assert.NoError(t, o.CloseRestricted(fd))
}

func TestDirectOpenerOpenRestrictedMissingPath(t *testing.T) {
	o := seat.DirectOpener{}
	_, err := o.OpenRestricted(context.Background(), "/nonexistent/drm/device/node")
	assert.Error(t, err)
}
