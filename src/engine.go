package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Waveform synthesis engine for CW sidetone.
 *
 * Description:	The engine owns a small set of precomputed sample
 *		patches (one steady cycle, ramp-up, ramp-down) and a
 *		playback state machine.  Audio is produced on demand:
 *		the platform audio callback pulls samples with Read,
 *		and all tone/silence timing is tracked in sample counts
 *		rather than wall-clock timers.
 *
 *		State transitions fire events synchronously, from
 *		inside Read (or from inside the command that caused
 *		them), while the engine mutex is held.  Event handlers
 *		issue follow-up commands through the unexported
 *		*Locked variants; the public command methods take the
 *		mutex themselves and are safe from any goroutine.
 *		This is the whole synchronization story: one mutex,
 *		shared with the Keyer, no reentrant locking.
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"sync"
)

// PlaybackState is the engine's position in the tone lifecycle.
// Exactly one state is active at any sample.
type PlaybackState int

const (
	Silent PlaybackState = iota
	RampUp
	Sustain
	RampDown
	TimedSilence
)

func (s PlaybackState) String() string {
	switch s {
	case Silent:
		return "Silent"
	case RampUp:
		return "RampUp"
	case Sustain:
		return "Sustain"
	case RampDown:
		return "RampDown"
	case TimedSilence:
		return "TimedSilence"
	}
	return "?"
}

// StopPolicy selects the trade-off between click avoidance and stop
// latency.  StopGraceful lets the current cycle and ramp-down play out;
// StopAggressive silences immediately, accepting the click.
type StopPolicy int

const (
	StopGraceful StopPolicy = iota
	StopAggressive
)

// Events is the engine's transition notification interface.
//
// Handlers are invoked synchronously while the engine mutex is held,
// usually from inside Read on the audio thread.  They must complete in
// bounded time, must not block, and must issue any follow-up engine
// commands through the unexported *Locked methods rather than the
// public API.
type Events interface {
	// ToneStart fires when a ramp-up begins (assert the radio key).
	ToneStart()
	// ToneComplete fires when a ramp-down finishes (deassert the key,
	// decide or queue what follows).
	ToneComplete()
	// BeforeSilenceEnd fires shortly before a timed silence runs out.
	// It is the decision point for the next element, late enough to see
	// the freshest paddle state, early enough that a queued tone starts
	// with no audible gap.
	BeforeSilenceEnd()
	// SilenceComplete fires when a timed silence ends with no tone
	// queued.
	SilenceComplete()
	// BecomeIdle fires on entry to untimed silence with nothing
	// pending.  Low-latency backends use it to stop the stream.
	BecomeIdle()
}

// NopEvents is an Events implementation that ignores everything.
// Embed it to subscribe to a subset of transitions.
type NopEvents struct{}

func (NopEvents) ToneStart()        {}
func (NopEvents) ToneComplete()     {}
func (NopEvents) BeforeSilenceEnd() {}
func (NopEvents) SilenceComplete()  {}
func (NopEvents) BecomeIdle()       {}

const (
	MinFrequency = 100
	MaxFrequency = 2000
	MinWpm       = 5
	MaxWpm       = 60
)

// Engine is the waveform synthesis engine.  Create one per audio device
// with NewEngine; swap in a fresh one when the output device changes.
type Engine struct {
	mu sync.Mutex

	sampleRate int
	frequency  int // requested, already validated
	spc        int // samples per cycle after snapping
	volume     int // percent 0..100
	wpm        int

	patches patchSet

	state            PlaybackState
	pos              int   // index into the active patch
	sustainCycles    int   // full cycles left to sustain
	silenceRemaining int   // samples of timed silence left
	indefinite       bool  // straight-key: sustain until Stop
	clock            int64 // samples rendered since creation

	// At most one queued tone and one queued silence.  Each is an
	// intention for the next transition; a later call supersedes it.
	pendingToneSamples   int // tone to start when the timed silence ends
	queuedToneSamples    int // tone to start when the ramp-down ends
	queuedToneIndefinite bool
	queuedSilence        int // silence to start when the ramp-down ends
	queuedSilenceTone    int // optional tone after that silence
	hasQueuedSilence     bool

	leadSamples    int // how early BeforeSilenceEnd fires
	beforeEndFired bool
	stopPolicy     StopPolicy

	events Events

	// Backend hooks, distinct from the Events subscriber: a low-latency
	// output backend stops its stream on idle and restarts it on wake.
	// Both run under the engine lock and must not block.
	idleFn func()
	wakeFn func()
}

/*-------------------------------------------------------------------
 *
 * Name:	NewEngine
 *
 * Purpose:	Create an engine with sensible CW defaults
 *		(600 Hz, 50%, 20 WPM).
 *
 * Inputs:	sampleRate	- Fixed internal rate in samples/sec.
 *				  Device rate conversion is the audio
 *				  backend's problem, not ours.
 *
 *--------------------------------------------------------------------*/

func NewEngine(sampleRate int) *Engine {
	var e = &Engine{
		sampleRate: sampleRate,
		frequency:  600,
		volume:     50,
		wpm:        20,
		events:     NopEvents{},
	}
	e.regenerate()
	return e
}

// Subscribe sets the single event subscriber.  The previous subscriber
// stops receiving events.
func (e *Engine) Subscribe(ev Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev == nil {
		ev = NopEvents{}
	}
	e.events = ev
}

// OnIdle installs a hook called whenever the engine becomes fully idle,
// and OnWake one called when activity begins from silence.  Both run
// under the engine lock: signal a goroutine, do not stop streams inline.
func (e *Engine) OnIdle(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idleFn = fn
}

func (e *Engine) OnWake(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wakeFn = fn
}

func (e *Engine) notifyIdle() {
	e.events.BecomeIdle()
	if e.idleFn != nil {
		e.idleFn()
	}
}

// regenerate rebuilds the patches from current settings.  Caller holds
// the mutex (or is the constructor).
func (e *Engine) regenerate() {
	e.spc = samplesPerCycle(e.sampleRate, e.frequency)
	e.patches = generatePatches(e.sampleRate, e.spc, float64(e.volume)/100.0, e.wpm)
	e.leadSamples = len(e.patches.rampUp)

	// A settings change mid-element may shrink the active patch.
	switch e.state {
	case RampUp:
		e.pos = min(e.pos, len(e.patches.rampUp))
	case RampDown:
		e.pos = min(e.pos, len(e.patches.rampDown))
	case Sustain:
		e.pos = min(e.pos, len(e.patches.cycle))
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	SetFrequency / SetVolume / SetWpm
 *
 * Purpose:	Parameter commands.  The real-time path never fails
 *		visibly: out-of-range frequency is silently ignored,
 *		volume and WPM are clamped.  Each regenerates the
 *		patches.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) SetFrequency(hz int) {
	if hz < MinFrequency || hz > MaxFrequency {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frequency = hz
	e.regenerate()
}

func (e *Engine) SetVolume(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = min(max(percent, 0), 100)
	e.regenerate()
}

func (e *Engine) SetWpm(wpm int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wpm = min(max(wpm, MinWpm), MaxWpm)
	e.regenerate()
}

// SetStopPolicy selects graceful or aggressive Stop behavior.
func (e *Engine) SetStopPolicy(p StopPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPolicy = p
}

// SampleRate returns the engine's fixed internal rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// ActualFrequency returns the emitted frequency after snapping to a
// whole number of samples per cycle.
func (e *Engine) ActualFrequency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.sampleRate) / float64(e.spc)
}

// Clock returns the number of samples rendered since creation.
func (e *Engine) Clock() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// State returns the current playback state.
func (e *Engine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// samplesForMs converts a millisecond duration to a sample count.
func (e *Engine) samplesForMs(ms float64) int {
	return int(math.Round(ms * float64(e.sampleRate) / 1000.0))
}

/*-------------------------------------------------------------------
 *
 * Name:	StartTone
 *
 * Purpose:	Start (or schedule) a timed tone.
 *
 * Description:	During a timed silence the request is deferred until
 *		the silence's countdown reaches zero; silence completes
 *		atomically.  Otherwise any active tone is cut short
 *		(it still finishes its ramp, keeping the output
 *		click-free) and the new tone follows immediately.
 *
 *		If the duration converts to fewer samples than the two
 *		ramps combined, sustain is zero and the emitted tone is
 *		exactly rampUp+rampDown samples long.  Very short tones
 *		run longer than requested; that is policy, not a bug.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) StartTone(durationMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startToneLocked(durationMs)
}

func (e *Engine) startToneLocked(durationMs float64) {
	var total = e.samplesForMs(durationMs)
	switch e.state {
	case TimedSilence:
		e.pendingToneSamples = total
	case Silent:
		e.beginTone(total, false)
	case RampUp, Sustain:
		// Cut the active tone short and chain the new one after the
		// ramp-down.
		e.indefinite = false
		e.sustainCycles = 0
		e.queuedToneSamples = total
		e.queuedToneIndefinite = false
	case RampDown:
		e.queuedToneSamples = total
		e.queuedToneIndefinite = false
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	StartSilenceThenTone
 *
 * Purpose:	Begin a timed silence immediately and record the tone
 *		to start when its countdown reaches zero.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) StartSilenceThenTone(silenceMs, toneMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginSilence(e.samplesForMs(silenceMs), e.samplesForMs(toneMs))
}

/*-------------------------------------------------------------------
 *
 * Name:	QueueSilence
 *
 * Purpose:	Record a silence (and optional following tone) to begin
 *		once the current tone's ramp-down completes.
 *
 * Description:	If the engine is already silent there is nothing to
 *		wait for and the silence starts immediately.  A second
 *		call supersedes the first; intentions never accumulate
 *		into a list.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) QueueSilence(silenceMs, followingToneMs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queueSilenceLocked(silenceMs, followingToneMs)
}

func (e *Engine) queueSilenceLocked(silenceMs, followingToneMs float64) {
	var silence = e.samplesForMs(silenceMs)
	var tone = e.samplesForMs(followingToneMs)
	if e.state == Silent {
		e.beginSilence(silence, tone)
		return
	}
	e.queuedSilence = silence
	e.queuedSilenceTone = tone
	e.hasQueuedSilence = true
}

/*-------------------------------------------------------------------
 *
 * Name:	StartIndefiniteTone / Stop
 *
 * Purpose:	Straight-key semantics: sustain until Stop.
 *
 * Description:	Stop honors the stop policy.  Graceful lets the active
 *		cycle finish and plays the full ramp-down; aggressive
 *		silences on the next sample.  Either way all queued
 *		intentions are dropped.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) StartIndefiniteTone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startIndefiniteToneLocked()
}

func (e *Engine) startIndefiniteToneLocked() {
	switch e.state {
	case Silent, TimedSilence:
		e.beginTone(0, true)
	case RampUp, Sustain:
		e.indefinite = true
	case RampDown:
		e.queuedToneSamples = len(e.patches.rampUp) + len(e.patches.rampDown)
		e.queuedToneIndefinite = true
	}
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	e.pendingToneSamples = 0
	e.queuedToneSamples = 0
	e.queuedToneIndefinite = false
	e.hasQueuedSilence = false
	e.indefinite = false

	switch e.state {
	case Silent:
		return
	case TimedSilence:
		e.state = Silent
		e.notifyIdle()
		return
	}

	if e.stopPolicy == StopAggressive {
		e.state = Silent
		e.pos = 0
		e.sustainCycles = 0
		e.notifyIdle()
		return
	}

	// Graceful: drop the remaining sustain; the state machine rides the
	// existing ramp logic down to silence.
	e.sustainCycles = 0
}

// beginTone enters RampUp.  Caller holds the mutex.
func (e *Engine) beginTone(totalSamples int, indefinite bool) {
	if e.state == Silent && e.wakeFn != nil {
		e.wakeFn()
	}
	var sustain = totalSamples - len(e.patches.rampUp) - len(e.patches.rampDown)
	if sustain < 0 {
		sustain = 0
	}
	e.sustainCycles = sustain / e.spc
	e.indefinite = indefinite
	e.state = RampUp
	e.pos = 0
	e.events.ToneStart()
}

// beginSilence enters TimedSilence.  Caller holds the mutex.
func (e *Engine) beginSilence(samples, pendingTone int) {
	if e.state == Silent && e.wakeFn != nil {
		e.wakeFn()
	}
	e.state = TimedSilence
	e.silenceRemaining = samples
	e.pendingToneSamples = pendingTone
	e.beforeEndFired = false
	e.pos = 0
}

// afterRampDown dispatches to whatever was queued behind the tone that
// just finished.  Caller holds the mutex; state is still RampDown.
func (e *Engine) afterRampDown() {
	e.events.ToneComplete()

	switch {
	case e.hasQueuedSilence:
		// The silence intention outranks a queued tone behind the same
		// ramp-down; drop the tone so it cannot fire late, after the
		// silence chain completes.
		var silence, tone = e.queuedSilence, e.queuedSilenceTone
		e.hasQueuedSilence = false
		e.queuedSilence = 0
		e.queuedSilenceTone = 0
		e.queuedToneSamples = 0
		e.queuedToneIndefinite = false
		e.beginSilence(silence, tone)
	case e.queuedToneSamples > 0:
		var total, indef = e.queuedToneSamples, e.queuedToneIndefinite
		e.queuedToneSamples = 0
		e.queuedToneIndefinite = false
		e.beginTone(total, indef)
	default:
		e.state = Silent
		e.pos = 0
		e.notifyIdle()
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	Read
 *
 * Purpose:	Pull function for the audio callback.
 *
 * Inputs:	out	- Mono float32 buffer to fill completely.
 *
 * Returns:	len(out), always.  Read never blocks and never fails.
 *
 * Description:	A state-machine loop: each state consumes samples from
 *		its patch (or counts down silence) until the buffer is
 *		full or the patch is exhausted, in which case it
 *		transitions and keeps filling within the same call.  A
 *		tiny callback buffer therefore never stalls a
 *		transition, and events always fire in strict sample
 *		order.
 *
 *--------------------------------------------------------------------*/

func (e *Engine) Read(out []float32) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var n = 0
	for n < len(out) {
		switch e.state {

		case Silent:
			for n < len(out) {
				out[n] = 0
				n++
				e.clock++
			}

		case RampUp:
			var patch = e.patches.rampUp
			for n < len(out) && e.pos < len(patch) {
				out[n] = patch[e.pos]
				n++
				e.pos++
				e.clock++
			}
			if e.pos >= len(patch) {
				e.pos = 0
				if e.indefinite || e.sustainCycles > 0 {
					e.state = Sustain
				} else {
					e.state = RampDown
				}
			}

		case Sustain:
			var patch = e.patches.cycle
			for n < len(out) && e.pos < len(patch) {
				out[n] = patch[e.pos]
				n++
				e.pos++
				e.clock++
			}
			if e.pos >= len(patch) {
				e.pos = 0
				if !e.indefinite {
					e.sustainCycles--
					if e.sustainCycles <= 0 {
						e.state = RampDown
					}
				}
			}

		case RampDown:
			var patch = e.patches.rampDown
			for n < len(out) && e.pos < len(patch) {
				out[n] = patch[e.pos]
				n++
				e.pos++
				e.clock++
			}
			if e.pos >= len(patch) {
				e.pos = 0
				e.afterRampDown()
			}

		case TimedSilence:
			if !e.beforeEndFired && e.silenceRemaining <= e.leadSamples {
				e.beforeEndFired = true
				e.events.BeforeSilenceEnd()
			}
			if e.silenceRemaining <= 0 {
				if e.pendingToneSamples > 0 {
					var total = e.pendingToneSamples
					e.pendingToneSamples = 0
					e.beginTone(total, false)
				} else {
					e.state = Silent
					e.events.SilenceComplete()
					if e.state == Silent && e.pendingToneSamples == 0 {
						e.notifyIdle()
					}
				}
				continue
			}

			// Stop short of the decision point so BeforeSilenceEnd
			// fires at the right sample even mid-buffer.
			var limit = e.silenceRemaining
			if !e.beforeEndFired && limit > e.leadSamples {
				limit -= e.leadSamples
			}
			var chunk = min(limit, len(out)-n)
			for i := 0; i < chunk; i++ {
				out[n] = 0
				n++
				e.clock++
			}
			e.silenceRemaining -= chunk
		}
	}
	return n
}
