package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Act as a virtual keyer port for use by other
 *		applications, implemented with a pseudo terminal.
 *
 * Description:	Logging programs and contest software expect a serial
 *		device, not a TCP socket.  We supply a pseudo terminal
 *		speaking the same line protocol as the network key
 *		service: the client writes PADDLE/STOP lines, and every
 *		radio key transition is written back as a KEY line.
 *
 *		The slave name changes from run to run, so a symlink at
 *		a fixed path points at it, same trick as every other
 *		virtual TNC.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
)

// DefaultPtySymlink is where the slave symlink goes unless the caller
// chooses otherwise.
const DefaultPtySymlink = "/tmp/cwkeyer"

// PtyKeyPort is a pseudo-terminal client interface to a Keyer.
type PtyKeyPort struct {
	keyer   *Keyer
	master  *os.File
	slave   *os.File
	symlink string

	events chan keyEvent
	done   chan struct{}
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenPtyKeyPort
 *
 * Purpose:	Create the pseudo terminal, publish the symlink, and
 *		start the listener.
 *
 * Inputs:	symlink	- Fixed path for clients to open; empty for
 *			  DefaultPtySymlink.
 *
 *--------------------------------------------------------------------*/

func OpenPtyKeyPort(symlink string, k *Keyer) (*PtyKeyPort, error) {
	if symlink == "" {
		symlink = DefaultPtySymlink
	}

	var master, slave, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	os.Remove(symlink) //nolint:errcheck
	if err := os.Symlink(slave.Name(), symlink); err != nil {
		master.Close() //nolint:errcheck
		slave.Close()  //nolint:errcheck
		return nil, fmt.Errorf("symlink %s: %w", symlink, err)
	}

	var p = &PtyKeyPort{
		keyer:   k,
		master:  master,
		slave:   slave,
		symlink: symlink,
		events:  make(chan keyEvent, 64),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	go p.writeLoop()

	log.Info("virtual keyer port created", "slave", slave.Name(), "symlink", symlink)
	return p, nil
}

// SlaveName returns the pty device path clients actually open.
func (p *PtyKeyPort) SlaveName() string {
	return p.slave.Name()
}

// Sender adapts the port into the keyer's KeySender callback, same
// non-blocking contract as the network key service.
func (p *PtyKeyPort) Sender() KeySender {
	return func(down bool, timestamp string, handle uint32) {
		select {
		case p.events <- keyEvent{down, timestamp, handle}:
		default:
		}
	}
}

func (p *PtyKeyPort) readLoop() {
	defer p.keyer.UpdatePaddleState(false, false)

	var scanner = bufio.NewScanner(p.master)
	for scanner.Scan() {
		var dit, dah, ok = ParsePaddleLine(scanner.Text())
		if !ok {
			continue
		}
		p.keyer.UpdatePaddleState(dit, dah)
	}
}

func (p *PtyKeyPort) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			var down = 0
			if ev.down {
				down = 1
			}
			var line = fmt.Sprintf("KEY %d %s %d\n", down, ev.timestamp, ev.handle)
			if _, err := p.master.WriteString(line); err != nil {
				log.Error("pty write", "err", err)
				return
			}
		}
	}
}

// Close tears down the pty and removes the symlink.
func (p *PtyKeyPort) Close() error {
	close(p.done)
	os.Remove(p.symlink) //nolint:errcheck
	p.slave.Close()      //nolint:errcheck
	return p.master.Close()
}
