package renderer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/crznic/kmscore/internal/buffer"
	"github.com/crznic/kmscore/internal/cursor"
	"github.com/crznic/kmscore/internal/kms"
	"github.com/crznic/kmscore/internal/pageflip"
	"github.com/crznic/kmscore/internal/strategy"
	"github.com/crznic/kmscore/internal/swapchain"
)

// changeBit names one flag in the atomic-changes bitset a Connector's render
// thread consults at the top of each frame (§5 "atomic-changes bitset").
type changeBit uint32

const (
	changeCursorImage changeBit = 1 << iota
	changeCursorPos
	changeCursorVisible
	changeGamma
	changeContentType
)

// Deps bundles the collaborators a Connector needs. The fields are concrete
// types, not interfaces; tests fill them with hand-built values (§4.9).
type Deps struct {
	Device    *kms.Device
	Selector  *strategy.Selector
	PFTracker *pageflip.Tracker
	Logger    *slog.Logger
}

// Connector is the Connector Renderer for one physical output (§4.1).
type Connector struct {
	dev    *kms.Device
	conn   *kms.Connector
	sel    *strategy.Selector
	pf     *pageflip.Tracker
	logger *slog.Logger
	id     string // correlation id threaded through every log line for this connector

	stateMu sync.Mutex
	state   State

	propMu           sync.Mutex
	cursorEngine     *cursor.Engine
	gamma            []uint16
	contentType      uint32
	vsyncEnabled     bool
	refreshRateLimit uint32

	changes atomic.Uint32 // bitset of changeBit, peeked without blocking propMu

	repaint chan struct{} // size-1 binary semaphore (§5)

	// modeReq hands a pending SetMode request off to the render thread, the
	// only goroutine allowed to touch strat/chain (Invariant 1). Buffered
	// size 1: at most one mode change is ever in flight, enforced by
	// StateChangingMode rejecting a second SetMode call.
	modeReq chan modeChangeRequest

	strat  strategy.Strategy
	chain  *swapchain.Swapchain
	format kms.FourCCMod

	activeModeIdx        int
	lastWidth, lastHeight uint32

	// pinned retains the last two generations of presented images so a
	// caller's Paint/Discarded pair never races a buffer still referenced by
	// an in-flight commit (§9 Open Question 3). Render-thread only.
	pinned [2]buffer.Image

	// frameSeq counts frames successfully committed; render-thread only.
	frameSeq uint64

	cb Callbacks

	wg     *conc.WaitGroup
	cancel context.CancelFunc
}

// modeChangeRequest is sent over Connector.modeReq by SetMode and serviced
// exclusively by renderLoop's goroutine.
type modeChangeRequest struct {
	modeIdx int
	reply   chan error
}

// New builds a Connector bound to kmsConn, initially Uninitialized.
func New(deps Deps, kmsConn *kms.Connector) *Connector {
	return &Connector{
		dev:           deps.Device,
		conn:          kmsConn,
		sel:           deps.Selector,
		pf:            deps.PFTracker,
		logger:        deps.Logger,
		id:            uuid.NewString(),
		state:         StateUninitialized,
		repaint:       make(chan struct{}, 1),
		modeReq:       make(chan modeChangeRequest, 1),
		activeModeIdx: -1,
	}
}

// Name returns the connector's conventional name (e.g. "HDMI-A-1").
func (c *Connector) Name() string { return c.conn.Name() }

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// move attempts a state transition, returning *ErrInvalidTransition if it's
// not a legal edge (§4.1).
func (c *Connector) move(to State) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.state.canTransitionTo(to) {
		return &ErrInvalidTransition{From: c.state, To: to}
	}
	c.logger.Debug("renderer: state transition", "connector", c.Name(), "id", c.id, "from", c.state, "to", to)
	c.state = to
	return nil
}

// requestRepaint is the idempotent "send, drop if full" semaphore push
// (§5 "repaint semaphore").
func (c *Connector) requestRepaint() {
	select {
	case c.repaint <- struct{}{}:
	default:
	}
}

func (c *Connector) setChange(bit changeBit) {
	for {
		old := c.changes.Load()
		if old&uint32(bit) != 0 {
			return
		}
		if c.changes.CompareAndSwap(old, old|uint32(bit)) {
			return
		}
	}
}

func (c *Connector) clearChanges() uint32 {
	return c.changes.Swap(0)
}
