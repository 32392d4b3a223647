package renderer

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/strategy"
)

// renderLoop is the Connector's render thread (§4.1 step-by-step render
// loop, §5 "one OS thread per connector"). It runs as a goroutine pinned to
// an OS thread via LockOSThread — required in practice because a real
// GL/EGL context is thread-affine, even though the Go scheduler entity here
// is a goroutine rather than a raw OS thread (see GLOSSARY). It also
// services mode-change requests handed off by SetMode, since strat/chain
// may only be mutated from this goroutine (Invariant 1).
func (c *Connector) renderLoop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var frames uint64
	statsEvery := 300
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.modeReq:
			err := c.applyModeChange(ctx, req.modeIdx)
			if err != nil {
				err = c.revertMode(err)
			} else {
				err = c.move(StateInitialized)
			}
			req.reply <- err
			continue
		case <-c.repaint:
		}

		if c.State() == StateSuspended {
			continue
		}

		if err := c.renderOneFrame(ctx); err != nil {
			c.logger.Error("renderer: frame failed", "connector", c.Name(), "id", c.id, "err", err)
			continue
		}

		frames++
		if frames == 1 || int(frames)%statsEvery == 0 {
			elapsed := time.Since(start).Seconds()
			fps := float64(frames) / elapsed
			c.logger.Debug("renderer: frame stats",
				"connector", c.Name(), "id", c.id,
				"frames", frames, "fps", fps)
		}

		c.propMu.Lock()
		limit := c.refreshRateLimit
		c.propMu.Unlock()
		if limit > 0 {
			time.Sleep(time.Second / time.Duration(limit))
		}
	}
}

// renderOneFrame advances the swapchain, invokes the Paint callback, builds
// and commits one atomic request covering FB_ID/CRTC_ID plus whatever else
// changed since the last frame, syncs the cursor if it changed, and waits
// for the flip to complete if vsync is enabled (§4.6).
func (c *Connector) renderOneFrame(ctx context.Context) error {
	c.propMu.Lock()
	strat := c.strat
	chain := c.chain
	vsync := c.vsyncEnabled
	gamma := c.gamma
	contentType := c.contentType
	cursorEng := c.cursorEngine
	width, height := c.lastWidth, c.lastHeight
	c.propMu.Unlock()

	if strat == nil || chain == nil {
		return ErrNotInitialized
	}

	img := strat.AdvanceFrame(chain)
	if img == nil {
		return nil
	}
	c.logger.Debug("renderer: advanced frame",
		"connector", c.Name(), "id", c.id,
		"image_bytes", humanize.Bytes(uint64(img.Width())*uint64(img.Height())*4))

	if c.cb.Paint != nil {
		if err := c.cb.Paint(c, img); err != nil {
			return err
		}
	}
	c.advancePinned(img)

	fbID, err := strat.CurrentFBHandle(c.dev, chain)
	if err != nil {
		return err
	}

	req := kms.NewRequest(c.dev)
	defer req.Discard()

	primaryPlane := c.dev.Plane(c.conn.PrimaryPlaneID)
	crtc := c.dev.CRTC(c.conn.CrtcID)
	if primaryPlane != nil && crtc != nil {
		setPlaneProp(req, primaryPlane, "FB_ID", uint64(fbID))
		setPlaneProp(req, primaryPlane, "CRTC_ID", uint64(crtc.ID))
		setPlaneProp(req, primaryPlane, "CRTC_X", 0)
		setPlaneProp(req, primaryPlane, "CRTC_Y", 0)
		setPlaneProp(req, primaryPlane, "CRTC_W", uint64(width))
		setPlaneProp(req, primaryPlane, "CRTC_H", uint64(height))
		setPlaneProp(req, primaryPlane, "SRC_X", 0)
		setPlaneProp(req, primaryPlane, "SRC_Y", 0)
		setPlaneProp(req, primaryPlane, "SRC_W", uint64(width)<<16)
		setPlaneProp(req, primaryPlane, "SRC_H", uint64(height)<<16)
	}

	changes := c.clearChanges()

	if crtc != nil && changes&uint32(changeGamma) != 0 && len(gamma) > 0 && crtc.GammaSize > 0 {
		blob, err := req.NewBlob(gammaLUTBytes(gamma))
		if err == nil {
			if gammaProp, ok := lookupProp(crtc.Props, "GAMMA_LUT"); ok {
				req.SetProp(crtc.ID, gammaProp, uint64(blob))
			}
		}
	}
	if changes&uint32(changeContentType) != 0 {
		if ctProp, ok := lookupProp(c.conn.Props, "content type"); ok {
			req.SetProp(c.conn.ID, ctProp, uint64(contentType))
		}
	}

	cursorChanged := changes&uint32(changeCursorImage|changeCursorPos|changeCursorVisible) != 0
	if cursorChanged && cursorEng != nil {
		if err := cursorEng.Sync(ctx); err != nil {
			c.logger.Warn("renderer: cursor sync failed", "connector", c.Name(), "id", c.id, "err", err)
		}
	}

	async := primaryPlane != nil && !vsync && strategy.AsyncCapable(primaryPlane, c.format.Modifier)

	if vsync {
		if err := c.pf.Begin(c.conn.CrtcID); err != nil {
			return err
		}
	}

	commitErr := req.Commit(ctx, kms.CommitOpts{RequestEvent: vsync, Async: async})
	if commitErr != nil && async && errors.Is(commitErr, unix.EINVAL) {
		primaryPlane.BlacklistModifier(c.format.Modifier)
		async = false
		commitErr = req.Commit(ctx, kms.CommitOpts{RequestEvent: vsync, Async: false})
	}
	if commitErr != nil {
		if vsync {
			c.pf.Cancel(c.conn.CrtcID)
		}
		return commitErr
	}

	c.frameSeq++
	info := PresentInfo{Time: time.Now(), Frame: c.frameSeq}

	if vsync {
		comp, err := c.pf.Wait(ctx, c.conn.CrtcID)
		if err != nil {
			return err
		}
		if comp.Seq != 0 || comp.TVSec != 0 || comp.TVUsec != 0 {
			info.Time = time.Unix(int64(comp.TVSec), int64(comp.TVUsec)*1000)
			info.Flags |= PresentHWClock | PresentHWCompletion
		}
		info.Flags |= PresentVSync
	}

	if c.cb.Presented != nil {
		c.cb.Presented(c, info)
	}
	return nil
}

// advancePinned shifts img into the two-generation pinned window and fires
// Discarded for whichever image just dropped out of it (§9 Open Question 3).
func (c *Connector) advancePinned(img buffer.Image) {
	discarded := c.pinned[0]
	c.pinned[0] = c.pinned[1]
	c.pinned[1] = img
	if discarded == nil || discarded == c.pinned[0] || discarded == c.pinned[1] {
		return
	}
	if c.cb.Discarded != nil {
		c.cb.Discarded(c, discarded)
	}
}

func setPlaneProp(req *kms.Request, plane *kms.Plane, name string, value uint64) {
	if id, ok := lookupProp(plane.Props, name); ok {
		req.SetProp(plane.ID, id, value)
	}
}

func lookupProp(props kms.PropIDs, name string) (uint32, bool) {
	id, ok := props[name]
	return id, ok
}

// gammaLUTBytes packs a 16-bit R/G/B gamma LUT into the little-endian byte
// layout struct drm_color_lut expects (three uint16 fields, padded to
// 8 bytes per entry).
func gammaLUTBytes(lut []uint16) []byte {
	out := make([]byte, len(lut)/3*8)
	for i := 0; i+2 < len(lut); i += 3 {
		base := (i / 3) * 8
		putU16(out[base:], lut[i])
		putU16(out[base+2:], lut[i+1])
		putU16(out[base+4:], lut[i+2])
	}
	return out
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
