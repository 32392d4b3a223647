//go:build !linux

package pageflip

import (
	"time"

	"github.com/crznic/kmscore/internal/kms"
)

func drainEvents(dev *kms.Device, onComplete func(crtcID, seq, tvSec, tvUsec uint32)) error {
	return nil
}

func pollReadable(dev *kms.Device, timeout time.Duration) (bool, error) {
	return false, nil
}
