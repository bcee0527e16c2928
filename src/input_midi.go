package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	MIDI paddle input.
 *
 * Description:	Several USB paddle interfaces (and a lot of homebrew
 *		ones) present as MIDI devices: dit and dah are note-on/
 *		note-off pairs on two fixed notes.  We listen on the
 *		first input port matching a name substring.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Default note assignments, matching the common keyer interfaces.
const (
	DefaultDitNote uint8 = 60 // middle C
	DefaultDahNote uint8 = 62
)

// MIDIPaddle converts note events on two notes into paddle updates.
type MIDIPaddle struct {
	keyer            *Keyer
	ditNote, dahNote uint8

	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()

	mu       sync.Mutex
	dit, dah bool
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenMIDIPaddle
 *
 * Purpose:	Find a MIDI input port by name substring and start
 *		listening for paddle notes.
 *
 * Inputs:	portName	- Substring match against port names;
 *				  empty matches the first port.
 *
 *--------------------------------------------------------------------*/

func OpenMIDIPaddle(portName string, ditNote, dahNote uint8, k *Keyer) (*MIDIPaddle, error) {
	var drv, err = rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}

	var ins, insErr = drv.Ins()
	if insErr != nil {
		drv.Close() //nolint:errcheck
		return nil, fmt.Errorf("midi port list: %w", insErr)
	}

	var in drivers.In
	for _, candidate := range ins {
		if portName == "" || strings.Contains(candidate.String(), portName) {
			in = candidate
			break
		}
	}
	if in == nil {
		drv.Close() //nolint:errcheck
		return nil, fmt.Errorf("no MIDI input port matching %q (%d ports present)", portName, len(ins))
	}

	var m = &MIDIPaddle{
		keyer:   k,
		ditNote: ditNote,
		dahNote: dahNote,
		drv:     drv,
		in:      in,
	}

	var stopFn, listenErr = midi.ListenTo(in, m.onMessage,
		midi.HandleError(func(err error) {
			log.Error("midi listener error, releasing paddles", "port", in.String(), "err", err)
			m.keyer.UpdatePaddleState(false, false)
		}))
	if listenErr != nil {
		drv.Close() //nolint:errcheck
		return nil, fmt.Errorf("midi listen on %s: %w", in.String(), listenErr)
	}
	m.stop = stopFn

	log.Info("midi paddle opened", "port", in.String(), "dit_note", ditNote, "dah_note", dahNote)
	return m, nil
}

func (m *MIDIPaddle) onMessage(msg midi.Message, _ int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		m.update(key, true)
	case msg.GetNoteEnd(&ch, &key):
		m.update(key, false)
	}
}

func (m *MIDIPaddle) update(note uint8, pressed bool) {
	m.mu.Lock()
	switch note {
	case m.ditNote:
		m.dit = pressed
	case m.dahNote:
		m.dah = pressed
	default:
		m.mu.Unlock()
		return
	}
	var dit, dah = m.dit, m.dah
	m.mu.Unlock()
	m.keyer.UpdatePaddleState(dit, dah)
}

// Close stops the listener and the driver.
func (m *MIDIPaddle) Close() error {
	if m.stop != nil {
		m.stop()
	}
	if m.in != nil {
		m.in.Close() //nolint:errcheck
	}
	return m.drv.Close()
}
