package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Serial-port paddle input.
 *
 * Description:	The time-honored hardware interface: paddle contacts
 *		wired to the CTS (dit) and DSR (dah) modem status
 *		lines, powered from RTS/DTR which we drive high on
 *		open.  Status lines are polled; at a 2 ms default
 *		period the polling jitter is far below the shortest
 *		element we can send (16.7 ms at 60 WPM) and also serves
 *		as contact debounce.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

const defaultPollInterval = 2 * time.Millisecond

// SerialPaddle polls a serial port's modem status lines as paddle
// contacts and feeds them to a Keyer.
type SerialPaddle struct {
	device      string
	poll        time.Duration
	straightKey bool

	keyer *Keyer
	fd    int
	done  chan struct{}
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialPaddle
 *
 * Purpose:	Open the port, raise RTS/DTR to power the paddle
 *		circuit, and start the polling goroutine.
 *
 * Inputs:	device		- e.g. /dev/ttyUSB0.
 *		straightKey	- When true, the CTS contact keys the
 *				  engine directly instead of running the
 *				  iambic state machine.
 *
 *--------------------------------------------------------------------*/

func OpenSerialPaddle(device string, k *Keyer, straightKey bool) (*SerialPaddle, error) {
	var fd, err = unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial paddle %s: %w", device, err)
	}

	// Power the contacts.
	var bits = unix.TIOCM_RTS | unix.TIOCM_DTR
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCMSET, bits); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, fmt.Errorf("raise RTS/DTR on %s: %w", device, err)
	}

	var s = &SerialPaddle{
		device:      device,
		poll:        defaultPollInterval,
		straightKey: straightKey,
		keyer:       k,
		fd:          fd,
		done:        make(chan struct{}),
	}
	go s.pollLoop()

	log.Info("serial paddle opened", "device", device, "straight_key", straightKey)
	return s, nil
}

func (s *SerialPaddle) pollLoop() {
	var ticker = time.NewTicker(s.poll)
	defer ticker.Stop()

	var lastDit, lastDah bool
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		var bits, err = unix.IoctlGetInt(s.fd, unix.TIOCMGET)
		if err != nil {
			log.Error("serial paddle read failed, stopping", "device", s.device, "err", err)
			s.keyer.Stop()
			return
		}
		var dit = bits&unix.TIOCM_CTS != 0
		var dah = bits&unix.TIOCM_DSR != 0
		if dit == lastDit && dah == lastDah {
			continue
		}
		lastDit, lastDah = dit, dah

		if s.straightKey {
			s.keyer.StraightKey(dit)
		} else {
			s.keyer.UpdatePaddleState(dit, dah)
		}
	}
}

// Close stops polling and releases the port.  The control lines drop
// with the file descriptor, unpowering the paddle circuit.
func (s *SerialPaddle) Close() error {
	close(s.done)
	return unix.Close(s.fd)
}
