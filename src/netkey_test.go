package cwkeyer

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaddleLine(t *testing.T) {
	var cases = []struct {
		line     string
		dit, dah bool
		ok       bool
	}{
		{"PADDLE 1 0", true, false, true},
		{"PADDLE 0 1", false, true, true},
		{"PADDLE 1 1", true, true, true},
		{"PADDLE 0 0", false, false, true},
		{"paddle 1 0", true, false, true},
		{"  PADDLE 1 0  ", true, false, true},
		{"STOP", false, false, true},
		{"stop", false, false, true},
		{"", false, false, false},
		{"PADDLE", false, false, false},
		{"PADDLE 1", false, false, false},
		{"PADDLE 2 0", false, false, false},
		{"PADDLE x y", false, false, false},
		{"KEY 1 ts 0", false, false, false},
		{"HELLO", false, false, false},
	}

	for _, c := range cases {
		var dit, dah, ok = ParsePaddleLine(c.line)
		assert.Equal(t, c.ok, ok, "line %q", c.line)
		assert.Equal(t, c.dit, dit, "line %q", c.line)
		assert.Equal(t, c.dah, dah, "line %q", c.line)
	}
}

func TestNetKeyBroadcastFormat(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var s, err = ListenNetKey("127.0.0.1:0", k)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	k.SetKeySender(s.Sender(), func() string { return "TS" }, 7)

	var conn, dialErr = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	require.NoError(t, dialErr)
	defer conn.Close() //nolint:errcheck

	// Give the accept loop a moment to register the client.
	time.Sleep(100 * time.Millisecond)

	k.StraightKey(true)
	k.StraightKey(false)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var scanner = bufio.NewScanner(conn)

	require.True(t, scanner.Scan())
	assert.Equal(t, "KEY 1 TS 7", scanner.Text())
	require.True(t, scanner.Scan())
	assert.Equal(t, "KEY 0 TS 7", scanner.Text())
}

func TestNetKeyRemotePaddle(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var s, err = ListenNetKey("127.0.0.1:0", k)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	var conn, dialErr = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	require.NoError(t, dialErr)
	defer conn.Close() //nolint:errcheck

	_, writeErr := conn.Write([]byte("PADDLE 1 0\n"))
	require.NoError(t, writeErr)

	// The paddle press arrives on the read goroutine; wait for the
	// engine to leave silence.
	require.Eventually(t, func() bool {
		return e.State() != Silent
	}, 2*time.Second, 10*time.Millisecond)

	_, writeErr = conn.Write([]byte("STOP\n"))
	require.NoError(t, writeErr)

	require.Eventually(t, func() bool {
		pump(e, 4000)
		return e.State() == Silent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNetKeyDisconnectReleasesPaddles(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var s, err = ListenNetKey("127.0.0.1:0", k)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	var conn, dialErr = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	require.NoError(t, dialErr)

	_, writeErr := conn.Write([]byte("PADDLE 1 1\n"))
	require.NoError(t, writeErr)
	require.Eventually(t, func() bool {
		return e.State() != Silent
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	// The deferred release stops the alternation; with no paddles
	// held, pumping drains to silence.
	require.Eventually(t, func() bool {
		pump(e, 20000)
		return e.State() == Silent
	}, 2*time.Second, 10*time.Millisecond)
}
