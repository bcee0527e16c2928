package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Serial-port radio key output.
 *
 * Description:	Keys the transmitter through RTS or DTR, the way
 *		every soundcard-mode interface has done it since the
 *		beginning.  The KeySender callback runs under the
 *		engine lock and must not block, and serial ioctls can;
 *		so the callback only posts to a channel and a dedicated
 *		goroutine drives the line.  Transitions are coalesced:
 *		only the latest state matters to the hardware.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

// KeyLine selects which control line keys the radio.
type KeyLine int

const (
	KeyLineRTS KeyLine = iota
	KeyLineDTR
)

// SerialKeyOutput drives a serial control line from key transitions.
type SerialKeyOutput struct {
	device string
	line   KeyLine
	t      *term.Term
	ch     chan bool
	done   chan struct{}
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialKeyOutput
 *
 * Purpose:	Open the port with the key line deasserted and start
 *		the line-driver goroutine.
 *
 *--------------------------------------------------------------------*/

func OpenSerialKeyOutput(device string, line KeyLine) (*SerialKeyOutput, error) {
	var t, err = term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open key output %s: %w", device, err)
	}

	var o = &SerialKeyOutput{
		device: device,
		line:   line,
		t:      t,
		ch:     make(chan bool, 16),
		done:   make(chan struct{}),
	}
	o.set(false)
	go o.driveLoop()

	log.Info("serial key output opened", "device", device, "line", line.String())
	return o, nil
}

func (l KeyLine) String() string {
	if l == KeyLineDTR {
		return "DTR"
	}
	return "RTS"
}

// Sender adapts the output into the keyer's KeySender callback.
func (o *SerialKeyOutput) Sender() KeySender {
	return func(down bool, _ string, _ uint32) {
		select {
		case o.ch <- down:
		default:
			// Channel full: the driver goroutine is behind, and the
			// queued transitions are already stale.  Drop; the next
			// edge carries the current state.
		}
	}
}

func (o *SerialKeyOutput) driveLoop() {
	for {
		select {
		case down := <-o.ch:
			// Coalesce any backlog to the newest state.
			for {
				select {
				case down = <-o.ch:
					continue
				default:
				}
				break
			}
			o.set(down)
		case <-o.done:
			return
		}
	}
}

func (o *SerialKeyOutput) set(down bool) {
	var err error
	if o.line == KeyLineDTR {
		err = o.t.SetDTR(down)
	} else {
		err = o.t.SetRTS(down)
	}
	if err != nil {
		log.Error("serial key line set failed", "device", o.device, "down", down, "err", err)
	}
}

// Close forces key-up and releases the port.
func (o *SerialKeyOutput) Close() error {
	o.set(false)
	close(o.done)
	return o.t.Close()
}
