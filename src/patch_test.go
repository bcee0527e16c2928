package cwkeyer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSamplesPerCycle(t *testing.T) {
	assert.Equal(t, 80, samplesPerCycle(48000, 600))
	assert.Equal(t, 74, samplesPerCycle(48000, 650)) // 73.85 rounds up
	assert.Equal(t, 40, samplesPerCycle(48000, 1200))
	assert.Equal(t, 2, samplesPerCycle(8000, 9999), "floor of two samples per cycle")
}

func TestRampDuration(t *testing.T) {
	assert.Equal(t, 5.0, rampDurationMs(20), "dit >= 50ms gets the full 5ms ramp")
	assert.Equal(t, 5.0, rampDurationMs(24))
	assert.InDelta(t, 4.0, rampDurationMs(30), 1e-9, "above 24 WPM the ramp is a tenth of the dit")
	assert.InDelta(t, 2.0, rampDurationMs(60), 1e-9)
}

func TestDitMs(t *testing.T) {
	assert.Equal(t, 60.0, ditMs(20))
	assert.Equal(t, 240.0, ditMs(5))
	assert.Equal(t, 20.0, ditMs(60))
}

func TestGeneratePatchesReferenceCase(t *testing.T) {
	var ps = generatePatches(48000, 80, 0.5, 20)

	assert.Len(t, ps.cycle, 80)
	assert.Len(t, ps.rampUp, 240, "5ms = 240 samples = exactly 3 cycles")
	assert.Len(t, ps.rampDown, 240)

	// Ramps start and end silent; clicks come from discontinuities.
	assert.Zero(t, ps.rampUp[0])
	assert.InDelta(t, 0, ps.rampDown[len(ps.rampDown)-1], 1e-3)
}

func TestGeneratePatchesProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var sampleRate = rapid.IntRange(8000, 96000).Draw(t, "sampleRate")
		var hz = rapid.IntRange(MinFrequency, MaxFrequency).Draw(t, "hz")
		var wpm = rapid.IntRange(MinWpm, MaxWpm).Draw(t, "wpm")
		var gain = rapid.Float64Range(0, 1).Draw(t, "gain")

		var spc = samplesPerCycle(sampleRate, hz)
		var ps = generatePatches(sampleRate, spc, gain, wpm)

		assert.Len(t, ps.cycle, spc)

		// Whole-cycle ramps are the phase-continuity invariant.
		assert.Zero(t, len(ps.rampUp)%spc, "ramp must be whole cycles")
		assert.Equal(t, len(ps.rampUp), len(ps.rampDown))
		assert.GreaterOrEqual(t, len(ps.rampUp), spc, "at least one cycle")

		// Nothing exceeds the gain.
		var limit = float32(gain) + 1e-6
		for _, s := range ps.cycle {
			assert.LessOrEqual(t, float32(math.Abs(float64(s))), limit)
		}
		for i := range ps.rampUp {
			assert.LessOrEqual(t, float32(math.Abs(float64(ps.rampUp[i]))), limit)
			assert.LessOrEqual(t, float32(math.Abs(float64(ps.rampDown[i]))), limit)
		}

		// Up and down envelopes are complementary: at every sample the
		// two sum to the steady-state waveform.
		for i := range ps.rampUp {
			var steady = float64(gain) * math.Sin(2*math.Pi*float64(i%spc)/float64(spc))
			assert.InDelta(t, steady, float64(ps.rampUp[i])+float64(ps.rampDown[i]), 1e-4)
		}
	})
}

func TestRampEnvelopeIsMonotonic(t *testing.T) {
	// The raised-cosine envelope itself must be monotonic; the samples
	// are not (they oscillate), so check the per-cycle peak.
	var ps = generatePatches(48000, 80, 1.0, 20)

	var prevPeak float32 = -1
	for c := 0; c+80 <= len(ps.rampUp); c += 80 {
		var peak float32
		for _, s := range ps.rampUp[c : c+80] {
			if s > peak {
				peak = s
			}
		}
		assert.Greater(t, peak, prevPeak)
		prevPeak = peak
	}
}
