package renderer

import (
	"context"
	"fmt"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/kms"
)

// commitModeset issues the MODE_ID/ACTIVE/CRTC_ID atomic commit that turns
// the CRTC on (or re-points it at a new mode): a MODESET-flagged commit is
// the only way the kernel accepts a changed MODE_ID blob (§4.4, §4.6).
func (c *Connector) commitModeset(ctx context.Context, mode kms.Mode) error {
	crtc := c.dev.CRTC(c.conn.CrtcID)
	if crtc == nil {
		return fmt.Errorf("renderer: modeset: no CRTC assigned")
	}

	req := kms.NewRequest(c.dev)
	defer req.Discard()

	if modeIDProp, ok := lookupProp(crtc.Props, "MODE_ID"); ok {
		blob, err := req.NewBlob(mode.Raw[:])
		if err != nil {
			return fmt.Errorf("renderer: modeset: create MODE_ID blob: %w", err)
		}
		req.SetProp(crtc.ID, modeIDProp, uint64(blob))
	}
	if activeProp, ok := lookupProp(crtc.Props, "ACTIVE"); ok {
		req.SetProp(crtc.ID, activeProp, 1)
	}
	if crtcIDProp, ok := lookupProp(c.conn.Props, "CRTC_ID"); ok {
		req.SetProp(c.conn.ID, crtcIDProp, uint64(crtc.ID))
	}

	return req.Commit(ctx, kms.CommitOpts{AllowModeset: true})
}

// applyModeChange runs exclusively on the render thread (invoked from
// renderLoop's modeReq case), rebuilding the swapchain at the new mode's
// dimensions and committing a real modeset before the old chain is torn
// down, so renderOneFrame never observes a closed chain (§4.4).
func (c *Connector) applyModeChange(ctx context.Context, modeIdx int) error {
	mode, ok := c.conn.Mode(modeIdx)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownMode, modeIdx)
	}

	if c.pf.Pending(c.conn.CrtcID) {
		if _, err := c.pf.Wait(ctx, c.conn.CrtcID); err != nil {
			c.logger.Warn("renderer: set mode: draining outstanding flip failed", "connector", c.Name(), "id", c.id, "err", err)
		}
	}

	c.propMu.Lock()
	strat := c.strat
	oldChain := c.chain
	bufCount := oldChain.Len()
	c.propMu.Unlock()

	primaryPlane := c.dev.Plane(c.conn.PrimaryPlaneID)
	newChain, err := strat.InitSwapchain(ctx, primaryPlane, c.format, uint32(mode.Hdisplay), uint32(mode.Vdisplay), bufCount)
	if err != nil {
		return fmt.Errorf("renderer: set mode: init swapchain: %w", err)
	}

	if err := c.commitModeset(ctx, mode); err != nil {
		newChain.Close()
		return fmt.Errorf("renderer: set mode: commit: %w", err)
	}

	c.propMu.Lock()
	c.chain = newChain
	c.activeModeIdx = modeIdx
	width, height := uint32(mode.Hdisplay), uint32(mode.Vdisplay)
	resized := width != c.lastWidth || height != c.lastHeight
	c.lastWidth, c.lastHeight = width, height
	c.pinned = [2]buffer.Image{}
	c.propMu.Unlock()

	if oldChain != nil {
		oldChain.Close()
	}

	if resized && c.cb.Resized != nil {
		c.cb.Resized(c, width, height)
	}
	return nil
}

// revertMode is called when applyModeChange fails: it tries to fall back to
// the previously active mode (StateChangingMode/StateResuming ->
// StateRevertingMode -> StateInitialized), and only gives up to
// StateUninitialized if even that transition is rejected.
func (c *Connector) revertMode(cause error) error {
	if err := c.move(StateRevertingMode); err != nil {
		c.move(StateUninitialized)
		return fmt.Errorf("renderer: mode change failed (%w) and could not revert: %w", cause, err)
	}
	if err := c.move(StateInitialized); err != nil {
		c.move(StateUninitialized)
		return fmt.Errorf("renderer: mode change failed (%w) and could not return to initialized: %w", cause, err)
	}
	return fmt.Errorf("renderer: mode change failed, reverted to previous mode: %w", cause)
}
