package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Iambic keying protocol state machine (Mode A / Mode B).
 *
 * Description:	The keyer decides, purely from paddle state and
 *		latches, what element to send next.  It never polls:
 *		transitions are driven by the engine's synchronous
 *		events, so decisions land on exact sample boundaries.
 *
 *		Snapshots are taken at two distinct moments.  The
 *		paddle state at tone START feeds Mode B's squeeze rule;
 *		the state at silence start feeds the repetition rule.
 *		Confusing the two is the classic iambic keyer bug.
 *
 *		The keyer shares the engine's mutex.  Public methods
 *		take it; the event-handler methods (ToneStart etc.) are
 *		invoked by the engine with the lock already held and
 *		use the engine's *Locked command variants.
 *
 *---------------------------------------------------------------*/

import (
	"sync/atomic"
	"time"
)

// KeyerMode selects the iambic variant.  Mode B sends one extra
// trailing element when a squeeze is released mid-element; Mode A does
// not.
type KeyerMode int

const (
	ModeA KeyerMode = iota
	ModeB
)

// KeyerState is the keyer's position in the element cycle.
type KeyerState int

const (
	KeyerIdle KeyerState = iota
	KeyerTonePlaying
	KeyerInterElementSpace
)

type element int

const (
	elemDit element = iota
	elemDah
)

func (e element) opposite() element {
	if e == elemDit {
		return elemDah
	}
	return elemDit
}

// KeySender carries key transitions to the radio.  It is invoked on
// every edge, under the engine lock, so it must not block; hand the
// transition to a channel or buffered writer and return.  A nil sender
// means sidetone-only operation.
type KeySender func(down bool, timestamp string, handle uint32)

// watchdogTimeout bounds how long a non-idle keyer state may persist
// without an engine event before the next paddle update forces a stop.
// A stuck radio key is real-world harm; this is the self-heal.
const watchdogTimeout = 1000 * time.Millisecond

// Keyer implements the iambic protocol on top of an Engine.
type Keyer struct {
	engine atomic.Pointer[Engine]

	// Everything below is guarded by the active engine's mutex.
	// Public methods acquire it through lockEngine, which re-checks the
	// pointer after locking so a caller racing an engine swap can never
	// mutate keyer state under a stale mutex.
	mode    KeyerMode
	wpm     int
	state   KeyerState
	current element

	lastTransition time.Time

	dit, dah bool // live paddle state

	// Alternation latches: set when a paddle becomes pressed after the
	// start of the current element or gap.
	ditLatch, dahLatch bool
	// Latches carried over from the just-finished tone, folded out at
	// ToneComplete so they survive until the decision point.
	toneLatchDit, toneLatchDah bool

	// Paddle snapshots.
	toneSnapDit, toneSnapDah   bool // at tone start (Mode B rule)
	spaceSnapDit, spaceSnapDah bool // at silence start (repetition rule)

	sendKey   KeySender
	timestamp func() string
	handle    uint32
	keyDown   bool

	now func() time.Time // test hook
}

/*-------------------------------------------------------------------
 *
 * Name:	NewKeyer
 *
 * Purpose:	Create a keyer bound to an engine and subscribe it to
 *		the engine's events.
 *
 *--------------------------------------------------------------------*/

func NewKeyer(e *Engine, mode KeyerMode, wpm int) *Keyer {
	var k = &Keyer{
		mode: mode,
		wpm:  min(max(wpm, MinWpm), MaxWpm),
		now:  time.Now,
	}
	k.engine.Store(e)
	e.SetWpm(k.wpm)
	e.Subscribe(k)
	return k
}

// lockEngine locks the active engine's mutex and returns that engine.
// The pointer is re-checked after locking: if SetEngine swapped it in
// between, the stale lock is released and the acquisition retried, so
// keyer state is only ever touched under the mutex that currently
// guards it.
func (k *Keyer) lockEngine() *Engine {
	for {
		var e = k.engine.Load()
		e.mu.Lock()
		if k.engine.Load() == e {
			return e
		}
		e.mu.Unlock()
	}
}

// SetKeySender installs the radio-key callback, its timestamp provider
// and the client handle passed back on every transition.
func (k *Keyer) SetKeySender(send KeySender, timestamp func() string, handle uint32) {
	var e = k.lockEngine()
	defer e.mu.Unlock()
	k.sendKey = send
	k.timestamp = timestamp
	k.handle = handle
}

// SetModeB switches between Mode A (false) and Mode B (true).
func (k *Keyer) SetModeB(b bool) {
	var e = k.lockEngine()
	defer e.mu.Unlock()
	if b {
		k.mode = ModeB
	} else {
		k.mode = ModeA
	}
}

// SetWpm changes the keying speed, clamped to [5,60], for both the
// keyer's element timing and the engine's ramps.
func (k *Keyer) SetWpm(wpm int) {
	var e = k.lockEngine()
	defer e.mu.Unlock()
	k.wpm = min(max(wpm, MinWpm), MaxWpm)
	e.wpm = k.wpm
	e.regenerate()
}

/*-------------------------------------------------------------------
 *
 * Name:	SetEngine
 *
 * Purpose:	Swap the underlying engine (audio device hot-plug).
 *
 * Description:	The keyer's decision state is independent of sample
 *		position, so it survives the swap.  Callers must stop
 *		the old engine's audio backend first; events from the
 *		old engine must have drained before the swap.
 *
 *		The pointer is published while the old mutex is held:
 *		any input goroutine that locked the old engine and
 *		passed lockEngine's re-check finishes its critical
 *		section before the store, and every later caller lands
 *		on the new mutex.  The new engine is prepared first,
 *		inside the old critical section — it is unpublished at
 *		that point, so the nested lock cannot contend or invert
 *		(there is one swap caller at a time).
 *
 *--------------------------------------------------------------------*/

func (k *Keyer) SetEngine(e *Engine) {
	var old = k.lockEngine()
	if old == e {
		old.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.wpm = k.wpm
	e.regenerate()
	e.events = k
	e.mu.Unlock()

	old.stopLocked()
	old.events = NopEvents{}
	k.engine.Store(e)
	old.mu.Unlock()
}

// Engine returns the engine currently driving this keyer.
func (k *Keyer) Engine() *Engine {
	return k.engine.Load()
}

func (k *Keyer) elementMs(el element) float64 {
	if el == elemDah {
		return 3 * ditMs(k.wpm)
	}
	return ditMs(k.wpm)
}

/*-------------------------------------------------------------------
 *
 * Name:	UpdatePaddleState
 *
 * Purpose:	Feed a paddle edge into the keyer.  Called by the input
 *		layer (serial, GPIO, MIDI, network) from any goroutine.
 *
 * Inputs:	dit, dah	- Current physical paddle state.
 *
 * Description:	When idle, a pressed paddle starts the next element
 *		immediately; both pressed at once sends dit first, by
 *		convention.  Mid-element or mid-gap, a paddle that
 *		becomes pressed without having been pressed at the
 *		start of the current element/gap sets its latch.
 *
 *		Every call first runs the watchdog: a non-idle state
 *		older than a second means an engine event was lost, and
 *		the keyer forces a stop before touching the new input.
 *
 *--------------------------------------------------------------------*/

func (k *Keyer) UpdatePaddleState(dit, dah bool) {
	var e = k.lockEngine()
	defer e.mu.Unlock()

	if k.state != KeyerIdle && k.now().Sub(k.lastTransition) > watchdogTimeout {
		k.stopLocked(e)
	}

	switch k.state {
	case KeyerTonePlaying:
		if dit && !k.toneSnapDit {
			k.ditLatch = true
		}
		if dah && !k.toneSnapDah {
			k.dahLatch = true
		}
	case KeyerInterElementSpace:
		if dit && !k.spaceSnapDit {
			k.ditLatch = true
		}
		if dah && !k.spaceSnapDah {
			k.dahLatch = true
		}
	}

	k.dit, k.dah = dit, dah

	if k.state == KeyerIdle && (dit || dah) {
		if dit {
			k.startElementLocked(e, elemDit)
		} else {
			k.startElementLocked(e, elemDah)
		}
	}
}

// StraightKey keys the engine directly, bypassing the iambic state
// machine (for straight-key or bug operation).
func (k *Keyer) StraightKey(down bool) {
	var e = k.lockEngine()
	defer e.mu.Unlock()
	k.setKeyLocked(down)
	if down {
		e.startIndefiniteToneLocked()
	} else {
		e.stopLocked()
	}
}

// Stop forces an immediate key-up and resets to Idle, clearing all
// latches and snapshots.
func (k *Keyer) Stop() {
	var e = k.lockEngine()
	defer e.mu.Unlock()
	k.stopLocked(e)
}

func (k *Keyer) stopLocked(e *Engine) {
	k.setKeyLocked(false)
	k.state = KeyerIdle
	k.lastTransition = k.now()
	k.clearDecisionStateLocked()
	e.stopLocked()
}

func (k *Keyer) clearDecisionStateLocked() {
	k.ditLatch, k.dahLatch = false, false
	k.toneLatchDit, k.toneLatchDah = false, false
	k.toneSnapDit, k.toneSnapDah = false, false
	k.spaceSnapDit, k.spaceSnapDah = false, false
}

func (k *Keyer) startElementLocked(e *Engine, el element) {
	k.current = el
	e.startToneLocked(k.elementMs(el))
}

func (k *Keyer) setKeyLocked(down bool) {
	if k.keyDown == down {
		return
	}
	k.keyDown = down
	if k.sendKey == nil {
		return
	}
	var ts string
	if k.timestamp != nil {
		ts = k.timestamp()
	}
	k.sendKey(down, ts, k.handle)
}

/*-------------------------------------------------------------------
 *
 * Engine event handlers.
 *
 * The engine invokes these synchronously with its mutex held, in
 * strict sample order.  They are exported only to satisfy the Events
 * interface; applications never call them.
 *
 *--------------------------------------------------------------------*/

// ToneStart captures the paddle snapshot at this exact instant (not at
// the earlier decision instant — Mode B depends on the difference) and
// asserts the radio key.
func (k *Keyer) ToneStart() {
	k.toneSnapDit, k.toneSnapDah = k.dit, k.dah
	k.ditLatch, k.dahLatch = false, false
	k.toneLatchDit, k.toneLatchDah = false, false
	k.state = KeyerTonePlaying
	k.lastTransition = k.now()
	k.setKeyLocked(true)
}

// ToneComplete deasserts the radio key, captures the silence-start
// snapshot, folds the tone-period latches out of the way, and queues
// the fixed one-dit inter-element gap.
func (k *Keyer) ToneComplete() {
	if k.state != KeyerTonePlaying {
		return // stray event after Stop
	}
	k.setKeyLocked(false)
	k.toneLatchDit, k.toneLatchDah = k.ditLatch, k.dahLatch
	k.ditLatch, k.dahLatch = false, false
	k.spaceSnapDit, k.spaceSnapDah = k.dit, k.dah
	k.state = KeyerInterElementSpace
	k.lastTransition = k.now()
	k.engine.Load().queueSilenceLocked(ditMs(k.wpm), 0)
}

// BeforeSilenceEnd is the decision point.  Priority order: alternation,
// repetition, Mode B squeeze completion, none.
func (k *Keyer) BeforeSilenceEnd() {
	if k.state != KeyerInterElementSpace {
		return
	}
	var e = k.engine.Load()
	var opp = k.current.opposite()

	// (1) Alternation: opposite paddle pressed now, or latched during
	// the just-finished tone or gap.
	if k.live(opp) || k.latched(opp) {
		k.startElementLocked(e, opp)
		return
	}

	// (2) Repetition: same paddle held at silence start or pressed now.
	if k.spaceSnap(k.current) || k.live(k.current) {
		k.startElementLocked(e, k.current)
		return
	}

	// (3) Mode B only: both paddles were held when the finished tone
	// started and both are released now — send one trailing opposite
	// element, then stop.
	if k.mode == ModeB && k.toneSnapDit && k.toneSnapDah && !k.dit && !k.dah {
		k.startElementLocked(e, opp)
		return
	}

	// (4) Nothing to send; SilenceComplete takes us idle.
}

// SilenceComplete means the gap ended with no tone queued.  A paddle
// edge that landed after the decision point — inside the one-ramp lead
// window — was latched but never seen by BeforeSilenceEnd; going idle
// on it would strand edge-driven inputs until the next physical edge,
// so it is keyed here.  Only then is the keyer fully idle.
func (k *Keyer) SilenceComplete() {
	if k.state != KeyerInterElementSpace {
		return
	}
	var e = k.engine.Load()
	var opp = k.current.opposite()
	switch {
	case k.live(opp) || k.latched(opp):
		k.startElementLocked(e, opp)
	case k.live(k.current) || k.latched(k.current):
		k.startElementLocked(e, k.current)
	default:
		k.state = KeyerIdle
		k.lastTransition = k.now()
		k.clearDecisionStateLocked()
	}
}

// BecomeIdle is the audio backend's cue, not the keyer's.
func (k *Keyer) BecomeIdle() {}

func (k *Keyer) live(el element) bool {
	if el == elemDit {
		return k.dit
	}
	return k.dah
}

func (k *Keyer) latched(el element) bool {
	if el == elemDit {
		return k.ditLatch || k.toneLatchDit
	}
	return k.dahLatch || k.toneLatchDah
}

func (k *Keyer) spaceSnap(el element) bool {
	if el == elemDit {
		return k.spaceSnapDit
	}
	return k.spaceSnapDah
}
