package cwkeyer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPtyKeyPortPaddleInput(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var symlink = filepath.Join(t.TempDir(), "cwkeyer")
	var p, err = OpenPtyKeyPort(symlink, k)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	var slave, openErr = os.OpenFile(symlink, os.O_RDWR, 0)
	require.NoError(t, openErr, "symlink must resolve to the slave")
	defer slave.Close() //nolint:errcheck

	_, writeErr := slave.WriteString("PADDLE 1 0\n")
	require.NoError(t, writeErr)

	require.Eventually(t, func() bool {
		return e.State() != Silent
	}, 2*time.Second, 10*time.Millisecond)

	_, writeErr = slave.WriteString("STOP\n")
	require.NoError(t, writeErr)

	require.Eventually(t, func() bool {
		pump(e, 10000)
		return e.State() == Silent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPtyKeyPortBroadcastsKeyLines(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var symlink = filepath.Join(t.TempDir(), "cwkeyer")
	var p, err = OpenPtyKeyPort(symlink, k)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	k.SetKeySender(p.Sender(), func() string { return "TS" }, 3)

	var slave, openErr = os.OpenFile(p.SlaveName(), os.O_RDWR, 0)
	require.NoError(t, openErr)
	defer slave.Close() //nolint:errcheck

	k.StraightKey(true)
	k.StraightKey(false)

	slave.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var scanner = bufio.NewScanner(slave)
	var got []string
	for scanner.Scan() {
		var line = strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "KEY ") {
			got = append(got, line)
		}
		if len(got) == 2 {
			break
		}
	}

	require.Len(t, got, 2)
	assert.Equal(t, "KEY 1 TS 3", got[0])
	assert.Equal(t, "KEY 0 TS 3", got[1])
}

func TestPtyKeyPortSymlinkRemovedOnClose(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var symlink = filepath.Join(t.TempDir(), "cwkeyer")
	var p, err = OpenPtyKeyPort(symlink, k)
	require.NoError(t, err)

	_, statErr := os.Lstat(symlink)
	require.NoError(t, statErr)

	require.NoError(t, p.Close())

	_, statErr = os.Lstat(symlink)
	assert.True(t, os.IsNotExist(statErr))
}
