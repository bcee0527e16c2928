package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Message keying: play a text string through the engine.
 *
 * Description:	The sender drives the engine the same way the keyer
 *		does, through the event interface, so message timing is
 *		just as sample-accurate as paddle keying.  Each tone is
 *		started with its following gap and tone chained via
 *		QueueSilence, one link at a time; the engine holds at
 *		most one queued intention, which is all a linear
 *		message needs.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
)

// MessageSender plays encoded text through an Engine.  It subscribes to
// the engine's events; a keyer and a sender cannot share one engine at
// the same time.
type MessageSender struct {
	engine *Engine

	// Guarded by the engine mutex.
	wpm    int
	segs   []Segment
	idx    int // segment currently sounding (always a tone index)
	active bool
	onDone func()
}

// NewMessageSender creates a sender and subscribes it to the engine.
func NewMessageSender(e *Engine, wpm int) *MessageSender {
	var s = &MessageSender{
		engine: e,
		wpm:    min(max(wpm, MinWpm), MaxWpm),
	}
	e.SetWpm(s.wpm)
	e.Subscribe(s)
	return s
}

// OnDone installs a completion callback, invoked under the engine lock
// when the final element has fully rung out.
func (s *MessageSender) OnDone(fn func()) {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.onDone = fn
}

// unitMs is the sender's Morse unit in milliseconds.
func (s *MessageSender) unitMs() float64 {
	return ditMs(s.wpm)
}

/*-------------------------------------------------------------------
 *
 * Name:	Send
 *
 * Purpose:	Start keying a message.
 *
 * Errors:	ErrBusy if a message is already in flight; callers queue
 *		their own traffic.
 *
 *--------------------------------------------------------------------*/

var ErrBusy = errors.New("cwkeyer: message already in flight")

func (s *MessageSender) Send(text string) error {
	var segs = EncodeSegments(text)

	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()

	if s.active {
		return ErrBusy
	}
	if len(segs) == 0 {
		return nil
	}
	s.segs = segs
	s.idx = 0
	s.active = true
	s.engine.startToneLocked(float64(segs[0].Units) * s.unitMs())
	return nil
}

// Abort cuts the message off immediately.
func (s *MessageSender) Abort() {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.active = false
	s.segs = nil
	s.engine.stopLocked()
}

// Sending reports whether a message is still in flight.
func (s *MessageSender) Sending() bool {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.active
}

/*-------------------------------------------------------------------
 *
 * Engine event handlers (engine mutex held).
 *
 *--------------------------------------------------------------------*/

func (s *MessageSender) ToneStart() {}

// ToneComplete chains the next gap+tone pair behind the ramp-down that
// just finished.
func (s *MessageSender) ToneComplete() {
	if !s.active {
		return
	}
	if s.idx+2 >= len(s.segs) {
		// Last tone done; the engine goes idle on its own.
		return
	}
	var gap = s.segs[s.idx+1]
	var tone = s.segs[s.idx+2]
	s.idx += 2
	s.engine.queueSilenceLocked(
		float64(gap.Units)*s.unitMs(),
		float64(tone.Units)*s.unitMs(),
	)
}

func (s *MessageSender) BeforeSilenceEnd() {}
func (s *MessageSender) SilenceComplete()  {}

func (s *MessageSender) BecomeIdle() {
	if !s.active {
		return
	}
	s.active = false
	s.segs = nil
	if s.onDone != nil {
		s.onDone()
	}
}
