package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Network keying: remote key signal out, remote paddles in.
 *
 * Description:	A line-oriented TCP service.  Every radio key
 *		transition is broadcast to all connected clients as
 *
 *			KEY <0|1> <timestamp> <clientHandle>
 *
 *		and clients may inject paddle state with
 *
 *			PADDLE <0|1> <0|1>
 *
 *		or force a key-up with
 *
 *			STOP
 *
 *		Transitions arrive from under the engine lock, so the
 *		KeySender only posts to a channel; a broadcaster
 *		goroutine does the socket writes with a short deadline
 *		and drops clients that cannot keep up.  Slow TCP peers
 *		must never be able to delay keying.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const netkeyWriteDeadline = 200 * time.Millisecond

type keyEvent struct {
	down      bool
	timestamp string
	handle    uint32
}

// NetKeyServer broadcasts key transitions and accepts remote paddles.
type NetKeyServer struct {
	keyer *Keyer
	ln    net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	events chan keyEvent
	done   chan struct{}
}

/*-------------------------------------------------------------------
 *
 * Name:	ListenNetKey
 *
 * Purpose:	Start the TCP service on addr (e.g. ":7355").
 *
 *--------------------------------------------------------------------*/

func ListenNetKey(addr string, k *Keyer) (*NetKeyServer, error) {
	var ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netkey listen %s: %w", addr, err)
	}

	var s = &NetKeyServer{
		keyer:  k,
		ln:     ln,
		conns:  make(map[net.Conn]struct{}),
		events: make(chan keyEvent, 64),
		done:   make(chan struct{}),
	}
	go s.acceptLoop()
	go s.broadcastLoop()

	log.Info("netkey service listening", "addr", ln.Addr().String())
	return s, nil
}

// Port returns the bound TCP port, for DNS-SD announcement.
func (s *NetKeyServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Sender adapts the server into the keyer's KeySender callback.
func (s *NetKeyServer) Sender() KeySender {
	return func(down bool, timestamp string, handle uint32) {
		select {
		case s.events <- keyEvent{down, timestamp, handle}:
		default:
			// Broadcast backlog; the monitor misses an edge rather
			// than the keyer missing a sample.
		}
	}
}

func (s *NetKeyServer) acceptLoop() {
	for {
		var conn, err = s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			log.Error("netkey accept", "err", err)
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		log.Info("netkey client connected", "remote", conn.RemoteAddr().String())
		go s.readLoop(conn)
	}
}

func (s *NetKeyServer) broadcastLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			var down = 0
			if ev.down {
				down = 1
			}
			var line = fmt.Sprintf("KEY %d %s %d\n", down, ev.timestamp, ev.handle)
			s.mu.Lock()
			for conn := range s.conns {
				conn.SetWriteDeadline(time.Now().Add(netkeyWriteDeadline)) //nolint:errcheck
				if _, err := conn.Write([]byte(line)); err != nil {
					log.Warn("netkey client dropped", "remote", conn.RemoteAddr().String(), "err", err)
					conn.Close() //nolint:errcheck
					delete(s.conns, conn)
				}
			}
			s.mu.Unlock()
		}
	}
}

// readLoop parses client commands until the connection dies.
func (s *NetKeyServer) readLoop(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close() //nolint:errcheck
		// A vanished client must not leave a paddle held.
		s.keyer.UpdatePaddleState(false, false)
	}()

	var scanner = bufio.NewScanner(conn)
	for scanner.Scan() {
		var dit, dah, ok = ParsePaddleLine(scanner.Text())
		if !ok {
			continue
		}
		s.keyer.UpdatePaddleState(dit, dah)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	ParsePaddleLine
 *
 * Purpose:	Parse one client command line.
 *
 * Returns:	Paddle state and ok=true for PADDLE and STOP lines;
 *		ok=false for anything unrecognized (ignored, so the
 *		protocol can grow).
 *
 *--------------------------------------------------------------------*/

func ParsePaddleLine(line string) (dit, dah, ok bool) {
	var fields = strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false, false, false
	}
	switch strings.ToUpper(fields[0]) {
	case "STOP":
		return false, false, true
	case "PADDLE":
		if len(fields) != 3 {
			return false, false, false
		}
		if (fields[1] != "0" && fields[1] != "1") || (fields[2] != "0" && fields[2] != "1") {
			return false, false, false
		}
		return fields[1] == "1", fields[2] == "1", true
	}
	return false, false, false
}

// Close stops the service and disconnects all clients.
func (s *NetKeyServer) Close() error {
	close(s.done)
	var err = s.ln.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close() //nolint:errcheck
	}
	s.conns = map[net.Conn]struct{}{}
	s.mu.Unlock()
	return err
}
