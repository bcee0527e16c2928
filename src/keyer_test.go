package cwkeyer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyEdge is one radio-key transition with the engine sample clock at
// which it happened.  The sender runs under the engine lock, so the
// direct clock read is race-free.
type keyEdge struct {
	down  bool
	clock int64
}

func newTestKeyer(t *testing.T, mode KeyerMode) (*Engine, *Keyer, *[]keyEdge) {
	t.Helper()
	var e = NewEngine(48000)
	var k = NewKeyer(e, mode, 20)
	var edges []keyEdge
	k.SetKeySender(func(down bool, _ string, _ uint32) {
		edges = append(edges, keyEdge{down, e.clock})
	}, nil, 0)
	return e, k, &edges
}

// downDurations pairs up down/up edges into element lengths in samples.
func downDurations(edges []keyEdge) []int64 {
	var out []int64
	for i := 0; i+1 < len(edges); i += 2 {
		out = append(out, edges[i+1].clock-edges[i].clock)
	}
	return out
}

func TestSingleTapSendsOneDit(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e, 10000)

	require.Len(t, *edges, 2)
	assert.Equal(t, []int64{2880}, downDurations(*edges), "a dit at 20 WPM is 2880 samples")
	assert.Equal(t, Silent, e.State())
}

func TestDahPaddleSendsDah(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(false, true)
	k.UpdatePaddleState(false, false)
	pump(e, 20000)

	assert.Equal(t, []int64{8640}, downDurations(*edges))
}

func TestHeldDitRepeats(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeA)

	k.UpdatePaddleState(true, false)
	pump(e, 30000) // enough for five dit+gap periods

	var durs = downDurations(*edges)
	require.GreaterOrEqual(t, len(durs), 4)
	for _, d := range durs {
		assert.Equal(t, int64(2880), d)
	}

	// Element period is dit + one-dit gap.
	assert.Equal(t, int64(5760), (*edges)[2].clock-(*edges)[0].clock)
	assert.Equal(t, int64(5760), (*edges)[4].clock-(*edges)[2].clock)
}

func TestSqueezeAlternatesDitFirst(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, true)
	pump(e, 60000)

	var durs = downDurations(*edges)
	require.GreaterOrEqual(t, len(durs), 4)
	assert.Equal(t, []int64{2880, 8640, 2880, 8640}, durs[:4], "simultaneous press from idle sends dit first, then alternates")
}

func TestModeBSqueezeReleaseSendsOneTrailingElement(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, true) // dit starts, both snapshotted
	pump(e, 1000)
	k.UpdatePaddleState(false, false) // release mid-dit
	pump(e, 40000)

	var durs = downDurations(*edges)
	require.Equal(t, []int64{2880, 8640}, durs, "the dit, then exactly one trailing dah")
	assert.Equal(t, Silent, e.State())
}

func TestModeASqueezeReleaseSendsNothingExtra(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeA)

	k.UpdatePaddleState(true, true)
	pump(e, 1000)
	k.UpdatePaddleState(false, false)
	pump(e, 40000)

	assert.Equal(t, []int64{2880}, downDurations(*edges), "Mode A stops when the squeeze releases")
}

func TestOppositePaddleTapDuringToneIsLatched(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	// Hold dit; tap and release dah entirely within the first dit.
	// The latch must survive until the decision point.
	k.UpdatePaddleState(true, false)
	pump(e, 500)
	k.UpdatePaddleState(true, true)
	pump(e, 500)
	k.UpdatePaddleState(true, false)
	pump(e, 30000)

	var durs = downDurations(*edges)
	require.GreaterOrEqual(t, len(durs), 2)
	assert.Equal(t, int64(2880), durs[0])
	assert.Equal(t, int64(8640), durs[1], "tapped dah sounds after the dit despite early release")
}

func TestRepetitionUsesSilenceStartSnapshot(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	// Hold dit through the tone, release just after the gap begins.
	// The snapshot at silence start says held, so one more dit plays.
	k.UpdatePaddleState(true, false)
	pump(e, 3000) // dit done at 2880, now 120 samples into the gap
	k.UpdatePaddleState(false, false)
	pump(e, 20000)

	assert.Equal(t, []int64{2880, 2880}, downDurations(*edges))
}

func TestPressInsideLeadWindowStillKeys(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	// One clean dit: tone 0..2880, gap 2880..5760, decision at 5520.
	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e, 5600)

	// Press after the decision point but before the gap ends.  The
	// inputs are edge-driven, so if this press dies with the gap the
	// keyer stays silent under a held paddle.
	k.UpdatePaddleState(true, false)
	pump(e, 2800) // gap ends at 5760; now mid second dit
	k.UpdatePaddleState(false, false)
	pump(e, 10000)

	require.Equal(t, []keyEdge{
		{true, 0}, {false, 2880},
		{true, 5760}, {false, 8640},
	}, *edges, "the late press keys exactly one dit at the gap boundary")
	assert.Equal(t, Silent, e.State())
}

func TestTapInsideLeadWindowIsNotLost(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e, 5600)

	// Tap and release entirely within the final ramp-length of the gap.
	// The latch alone must carry it across the silence boundary.
	k.UpdatePaddleState(false, true)
	k.UpdatePaddleState(false, false)
	pump(e, 20000)

	require.Equal(t, []keyEdge{
		{true, 0}, {false, 2880},
		{true, 5760}, {false, 14400},
	}, *edges, "the latched dah sounds in full")
	assert.Equal(t, Silent, e.State())
}

func TestWatchdogForcesKeyUp(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	var t0 = time.Now()
	var fake = t0
	k.now = func() time.Time { return fake }

	k.UpdatePaddleState(true, false)
	pump(e, 1000) // mid-tone, key is down

	require.Equal(t, []keyEdge{{true, 0}}, *edges)

	// No engine events for two seconds (dead audio backend).  The next
	// paddle update must force the key up rather than trust the engine.
	fake = t0.Add(2 * time.Second)
	k.UpdatePaddleState(false, false)

	require.Len(t, *edges, 2)
	assert.False(t, (*edges)[1].down)

	// And a fresh press keys normally again.
	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e, 20000)
	require.GreaterOrEqual(t, len(*edges), 3)
	assert.True(t, (*edges)[2].down)
	assert.Equal(t, Silent, e.State())
}

func TestStraightKey(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.StraightKey(true)
	pump(e, 48000)
	assert.Equal(t, Sustain, e.State(), "straight key sustains indefinitely")

	k.StraightKey(false)
	pump(e, 1000)
	assert.Equal(t, Silent, e.State())

	require.Len(t, *edges, 2)
	assert.True(t, (*edges)[0].down)
	assert.False(t, (*edges)[1].down)
}

func TestStopForcesIdle(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, true)
	pump(e, 1000)
	k.Stop()

	require.Len(t, *edges, 2)
	assert.False(t, (*edges)[1].down)

	// The squeeze latches died with the Stop: nothing else plays.
	k.UpdatePaddleState(false, false)
	pump(e, 40000)
	assert.Len(t, *edges, 2)
	assert.Equal(t, Silent, e.State())
}

func TestSetWpmChangesElementLength(t *testing.T) {
	var e, k, edges = newTestKeyer(t, ModeB)

	k.SetWpm(30) // dit = 40ms = 1920 samples
	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e, 10000)

	assert.Equal(t, []int64{1920}, downDurations(*edges))
}

func TestSetEngineSwapsCleanly(t *testing.T) {
	var e1, k, edges = newTestKeyer(t, ModeB)

	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e1, 10000)
	require.Len(t, *edges, 2)

	var e2 = NewEngine(44100)
	k.SetEngine(e2)
	assert.Same(t, e2, k.Engine())

	k.UpdatePaddleState(true, false)
	k.UpdatePaddleState(false, false)
	pump(e2, 10000)

	assert.Equal(t, Silent, e1.State(), "old engine no longer keyed")
	assert.Len(t, *edges, 4, "new engine drives the same keyer")

	// Old engine events no longer reach the keyer.
	e1.StartTone(60)
	pump(e1, 4000)
	assert.Len(t, *edges, 4)
}

func TestSetEngineRacesPaddleInput(t *testing.T) {
	// Paddle edges from several goroutines while engines are swapped
	// underneath them.  Meaningful under -race: every keyer mutation
	// must happen under the mutex that currently guards it.
	var k = NewKeyer(NewEngine(8000), ModeB, 20)

	var done = make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-done:
					return
				default:
				}
				k.UpdatePaddleState(j%2 == 0, n%2 == 0)
			}
		}(i)
	}

	for i := 0; i < 2000; i++ {
		k.SetEngine(NewEngine(8000))
	}
	close(done)
	wg.Wait()

	// The keyer must still be functional on the final engine.
	k.Stop()
	k.UpdatePaddleState(true, false)
	assert.NotEqual(t, Silent, k.Engine().State())
}

func TestKeySenderReceivesHandle(t *testing.T) {
	var e = NewEngine(48000)
	var k = NewKeyer(e, ModeB, 20)

	var gotHandle uint32
	var gotTimestamp string
	k.SetKeySender(func(_ bool, ts string, handle uint32) {
		gotHandle = handle
		gotTimestamp = ts
	}, func() string { return "2026-08-26T00:00:00" }, 42)

	k.StraightKey(true)
	k.StraightKey(false)

	assert.Equal(t, uint32(42), gotHandle)
	assert.Equal(t, "2026-08-26T00:00:00", gotTimestamp)
}
