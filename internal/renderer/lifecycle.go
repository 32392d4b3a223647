package renderer

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/cursor"
	"github.com/crznic/kmscore/internal/format"
	"github.com/crznic/kmscore/internal/kms"
)

// InitOpts configures Initialize.
type InitOpts struct {
	ModeIndex     int // -1 selects the connector's preferred mode
	BufferCount   int
	DisableCursor bool
}

// Initialize assigns hardware (encoder/CRTC/planes), builds the rendering
// strategy's swapchain, commits the initial modeset and starts the render
// thread (§6 "initialize"). cb's callbacks are invoked from the render
// thread for every frame from this point on.
func (c *Connector) Initialize(ctx context.Context, opts InitOpts, cb Callbacks) error {
	if err := c.move(StateInitializing); err != nil {
		return err
	}

	modeIdx := opts.ModeIndex
	if modeIdx < 0 {
		modeIdx = c.conn.PreferredMode
	}
	mode, ok := c.conn.Mode(modeIdx)
	if !ok {
		c.move(StateUninitialized)
		return fmt.Errorf("%w: index %d (have %d modes)", ErrUnknownMode, modeIdx, len(c.conn.Modes))
	}

	asg, err := pickAssignment(c.dev, c.conn)
	if err != nil {
		c.move(StateUninitialized)
		return err
	}

	primaryPlane := c.dev.Plane(asg.primaryPlaneID)
	planeFormats := format.New(primaryPlane.Formats...)

	bufCount := opts.BufferCount
	if bufCount <= 0 {
		bufCount = 2
	}

	strat, chosenFmt, err := c.sel.Select(c.dev, primaryPlane, planeFormats)
	if err != nil {
		c.move(StateUninitialized)
		return err
	}

	chain, err := strat.InitSwapchain(ctx, primaryPlane, chosenFmt, uint32(mode.Hdisplay), uint32(mode.Vdisplay), bufCount)
	if err != nil {
		strat.Teardown()
		c.move(StateUninitialized)
		return err
	}

	// Commit the assignment to the shared device registry (Invariant 1).
	if crtc := c.dev.CRTC(asg.crtcID); crtc != nil {
		crtc.ConnectorID = c.conn.ID
	}
	primaryPlane.ConnectorID = c.conn.ID
	var cursorPlane *kms.Plane
	if asg.cursorPlaneID != 0 {
		cursorPlane = c.dev.Plane(asg.cursorPlaneID)
		if cursorPlane != nil {
			cursorPlane.ConnectorID = c.conn.ID
		}
	}

	c.conn.CrtcID = asg.crtcID
	c.conn.EncoderID = asg.encoderID
	c.conn.PrimaryPlaneID = asg.primaryPlaneID
	c.conn.CursorPlaneID = asg.cursorPlaneID

	if err := c.commitModeset(ctx, mode); err != nil {
		chain.Close()
		strat.Teardown()
		if crtc := c.dev.CRTC(asg.crtcID); crtc != nil {
			crtc.ConnectorID = 0
		}
		primaryPlane.ConnectorID = 0
		if cursorPlane != nil {
			cursorPlane.ConnectorID = 0
		}
		c.conn.CrtcID, c.conn.EncoderID, c.conn.PrimaryPlaneID, c.conn.CursorPlaneID = 0, 0, 0, 0
		c.move(StateUninitialized)
		return fmt.Errorf("renderer: initialize: commit modeset: %w", err)
	}

	cursorMode := cursor.ChooseMode(cursorPlane, c.dev.ClientCaps.Has(kms.ClientCapAtomic), true, opts.DisableCursor)
	var cursorSetter cursor.Setter
	switch cursorMode {
	case cursor.ModeAtomicPlane:
		if crtc := c.dev.CRTC(asg.crtcID); crtc != nil && cursorPlane != nil {
			cursorSetter = cursor.NewAtomicSetter(c.dev, cursorPlane, crtc)
		}
	case cursor.ModeLegacy:
		cursorSetter = cursor.NewLegacySetter(c.dev, asg.crtcID)
	}

	c.propMu.Lock()
	c.strat = strat
	c.chain = chain
	c.format = chosenFmt
	c.activeModeIdx = modeIdx
	c.lastWidth = uint32(mode.Hdisplay)
	c.lastHeight = uint32(mode.Vdisplay)
	c.vsyncEnabled = true
	c.cursorEngine = cursor.New(cursorMode, cursorSetter)
	c.cb = cb
	c.propMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg = conc.NewWaitGroup()
	c.wg.Go(func() { c.renderLoop(runCtx) })

	if err := c.move(StateInitialized); err != nil {
		return err
	}
	c.logger.Info("renderer: connector initialized",
		"connector", c.Name(), "id", c.id,
		"mode", mode.String(), "strategy", strat.Kind(), "fourcc", chosenFmt.FourCC)
	if cb.Initialized != nil {
		cb.Initialized(c)
	}
	return nil
}

// Uninitialize stops the render thread and releases the connector's
// hardware assignment (§6 "uninitialize", Invariant 1).
func (c *Connector) Uninitialize() error {
	if err := c.move(StateUninitializing); err != nil {
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.wg != nil {
		c.wg.Wait()
	}

	c.propMu.Lock()
	strat := c.strat
	chain := c.chain
	cb := c.cb
	c.strat = nil
	c.chain = nil
	c.cursorEngine = nil
	c.pinned = [2]buffer.Image{}
	c.propMu.Unlock()

	if chain != nil {
		chain.Close()
	}
	if strat != nil {
		strat.Teardown()
	}

	if crtc := c.dev.CRTC(c.conn.CrtcID); crtc != nil {
		crtc.ConnectorID = 0
	}
	if p := c.dev.Plane(c.conn.PrimaryPlaneID); p != nil {
		p.ConnectorID = 0
	}
	if c.conn.CursorPlaneID != 0 {
		if p := c.dev.Plane(c.conn.CursorPlaneID); p != nil {
			p.ConnectorID = 0
		}
	}
	c.conn.CrtcID = 0
	c.conn.EncoderID = 0
	c.conn.PrimaryPlaneID = 0
	c.conn.CursorPlaneID = 0

	if err := c.move(StateUninitialized); err != nil {
		return err
	}
	if cb.Uninitialized != nil {
		cb.Uninitialized(c)
	}
	return nil
}

// Repaint requests a new frame be rendered and presented. Idempotent: a
// repaint already pending absorbs this call (§5).
func (c *Connector) Repaint() error {
	if c.State() == StateUninitialized {
		return ErrNotInitialized
	}
	c.requestRepaint()
	return nil
}

// SetMode changes the connector's active mode. The actual swapchain rebuild
// and modeset commit run on the render thread (Invariant 1); SetMode hands
// off a request over modeReq and blocks for the reply (§4.4).
func (c *Connector) SetMode(ctx context.Context, modeIdx int) error {
	if _, ok := c.conn.Mode(modeIdx); !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownMode, modeIdx)
	}
	if modeIdx == c.ActiveMode() {
		return nil // already active (Testable Property 5: idempotent no-op)
	}
	if err := c.move(StateChangingMode); err != nil {
		return err
	}

	reply := make(chan error, 1)
	select {
	case c.modeReq <- modeChangeRequest{modeIdx: modeIdx, reply: reply}:
	case <-ctx.Done():
		c.move(StateInitialized)
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCursorImage uploads a new 64x64 ARGB cursor image.
func (c *Connector) SetCursorImage(ctx context.Context, argb []byte) error {
	c.propMu.Lock()
	eng := c.cursorEngine
	c.propMu.Unlock()
	if eng == nil {
		return ErrNotInitialized
	}
	if err := eng.SetImage(ctx, argb); err != nil {
		return err
	}
	c.setChange(changeCursorImage)
	c.requestRepaint()
	return nil
}

// SetCursorVisible shows or hides the cursor.
func (c *Connector) SetCursorVisible(ctx context.Context, visible bool) error {
	c.propMu.Lock()
	eng := c.cursorEngine
	c.propMu.Unlock()
	if eng == nil {
		return ErrNotInitialized
	}
	if err := eng.SetVisible(ctx, visible); err != nil {
		return err
	}
	c.setChange(changeCursorVisible)
	c.requestRepaint()
	return nil
}

// SetCursorPos moves the cursor hotspot.
func (c *Connector) SetCursorPos(ctx context.Context, x, y int32) error {
	c.propMu.Lock()
	eng := c.cursorEngine
	c.propMu.Unlock()
	if eng == nil {
		return ErrNotInitialized
	}
	if err := eng.SetPosition(ctx, x, y); err != nil {
		return err
	}
	c.setChange(changeCursorPos)
	c.requestRepaint()
	return nil
}

// SetGamma installs a new gamma LUT, applied as a CRTC GAMMA_LUT blob on the
// next commit (§4.7).
func (c *Connector) SetGamma(lut []uint16) error {
	if c.State() == StateUninitialized {
		return ErrNotInitialized
	}
	c.propMu.Lock()
	c.gamma = lut
	c.propMu.Unlock()
	c.setChange(changeGamma)
	c.requestRepaint()
	return nil
}

// ContentType values for the connector's "content type" property (HDMI
// InfoFrame); the property's value 0 is "No Data".
type ContentType uint32

const (
	ContentTypeGraphics ContentType = iota + 1
	ContentTypePhoto
	ContentTypeCinema
	ContentTypeGame
)

// SetContentType sets the HDMI content-type hint (§4.7).
func (c *Connector) SetContentType(ct ContentType) error {
	if c.State() == StateUninitialized {
		return ErrNotInitialized
	}
	c.propMu.Lock()
	c.contentType = uint32(ct)
	c.propMu.Unlock()
	c.setChange(changeContentType)
	c.requestRepaint()
	return nil
}

// EnableVSync toggles waiting for vblank/flip-completion between frames.
func (c *Connector) EnableVSync(enabled bool) error {
	if c.State() == StateUninitialized {
		return ErrNotInitialized
	}
	c.propMu.Lock()
	c.vsyncEnabled = enabled
	c.propMu.Unlock()
	return nil
}

// SetRefreshRateLimit caps the repaint rate to at most limitHz (0 disables
// the cap, relying solely on vblank pacing).
func (c *Connector) SetRefreshRateLimit(limitHz uint32) error {
	if c.State() == StateUninitialized {
		return ErrNotInitialized
	}
	c.propMu.Lock()
	c.refreshRateLimit = limitHz
	c.propMu.Unlock()
	return nil
}

// Suspend parks the render thread without tearing down hardware state,
// used across a VT switch or DPMS-off (§4.1).
func (c *Connector) Suspend() error {
	if err := c.move(StateSuspending); err != nil {
		return err
	}
	return c.move(StateSuspended)
}

// Resume reactivates a suspended connector: one MODESET commit re-asserts
// the active mode, the swapchain's buffer ages are reset so the next paint
// treats every buffer as stale content, and a repaint is requested — which
// produces the next frame's commit and flip asynchronously on the render
// thread, consistent with Repaint's own async design (§4.1, §6 Scenario F).
func (c *Connector) Resume(ctx context.Context) error {
	if err := c.move(StateResuming); err != nil {
		return err
	}
	if err := c.move(StateRevertingMode); err != nil {
		return err
	}

	mode, ok := c.conn.Mode(c.ActiveMode())
	if !ok {
		c.move(StateUninitialized)
		return fmt.Errorf("%w: index %d", ErrUnknownMode, c.ActiveMode())
	}
	if err := c.commitModeset(ctx, mode); err != nil {
		c.move(StateUninitialized)
		return fmt.Errorf("renderer: resume: commit modeset: %w", err)
	}

	c.propMu.Lock()
	if c.chain != nil {
		c.chain.ResetAges()
	}
	c.propMu.Unlock()

	if err := c.move(StateInitialized); err != nil {
		return err
	}
	c.requestRepaint()
	return nil
}

// ActiveMode returns the currently active mode index, or -1 if never set.
func (c *Connector) ActiveMode() int {
	c.propMu.Lock()
	defer c.propMu.Unlock()
	return c.activeModeIdx
}

// Device returns the underlying *kms.Device this connector is attached to.
func (c *Connector) Device() *kms.Device { return c.dev }
