package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Precomputed sample patches for the waveform engine.
 *
 * Description:	A patch is an immutable buffer of mono float32 samples
 *		serving one purpose: a single steady-state sine cycle,
 *		a ramp-up, or a ramp-down.  Patches are regenerated
 *		whenever frequency, volume, or WPM changes, because the
 *		ramp length depends on WPM and the cycle length depends
 *		on frequency.
 *
 *		The ramp length is always a whole number of waveform
 *		cycles, never a fraction, so the phase is continuous
 *		across every ramp/cycle boundary.  That is what keeps
 *		the output free of clicks.
 *
 *---------------------------------------------------------------*/

import (
	"math"
)

// patchSet holds the three buffers the engine plays from.
type patchSet struct {
	cycle    []float32 // one full cycle at sustain amplitude
	rampUp   []float32 // raised-cosine fade in, whole cycles
	rampDown []float32 // raised-cosine fade out, whole cycles
}

/*-------------------------------------------------------------------
 *
 * Name:	samplesPerCycle
 *
 * Purpose:	Snap a requested frequency to a whole number of samples
 *		per cycle.
 *
 * Description:	The emitted frequency is sampleRate/samplesPerCycle,
 *		which may differ slightly from the request (650 Hz at
 *		48000 samples/sec becomes 74 samples, ~648.65 Hz).
 *		The snapping is deliberate: an integer cycle length is
 *		what lets patches repeat with continuous phase.
 *
 *--------------------------------------------------------------------*/

func samplesPerCycle(sampleRate, hz int) int {
	var spc = int(math.Round(float64(sampleRate) / float64(hz)))
	if spc < 2 {
		spc = 2
	}
	return spc
}

/*-------------------------------------------------------------------
 *
 * Name:	rampDurationMs
 *
 * Purpose:	Ramp duration for a given keying speed.
 *
 * Description:	5 ms up to 24 WPM (dit >= 50 ms); above that the ramp
 *		shrinks to a tenth of the dit so fast keying still has
 *		room for a sustain portion.
 *
 *--------------------------------------------------------------------*/

func rampDurationMs(wpm int) float64 {
	var dit = ditMs(wpm)
	if dit >= 50 {
		return 5
	}
	return dit * 0.1
}

// ditMs is the basic Morse timing unit: dit = 1200/WPM milliseconds,
// dah = 3 dits, inter-element gap = 1 dit.
func ditMs(wpm int) float64 {
	return 1200.0 / float64(wpm)
}

/*-------------------------------------------------------------------
 *
 * Name:	generatePatches
 *
 * Purpose:	Build the cycle and ramp buffers for the given settings.
 *
 * Inputs:	sampleRate	- Samples per second.
 *		spc		- Samples per cycle (already snapped).
 *		gain		- Amplitude 0.0 .. 1.0 (volume is baked into
 *				  the samples, not applied at playback).
 *		wpm		- Keying speed, determines ramp length.
 *
 * Description:	Ramps use a raised-cosine envelope.  The ramp sample
 *		count is rounded to the nearest whole number of cycles,
 *		minimum one cycle.
 *
 *--------------------------------------------------------------------*/

func generatePatches(sampleRate, spc int, gain float64, wpm int) patchSet {
	var ps patchSet

	ps.cycle = make([]float32, spc)
	for i := range ps.cycle {
		ps.cycle[i] = float32(gain * math.Sin(2*math.Pi*float64(i)/float64(spc)))
	}

	var rampSamples = rampDurationMs(wpm) * float64(sampleRate) / 1000.0
	var rampCycles = int(math.Round(rampSamples / float64(spc)))
	if rampCycles < 1 {
		rampCycles = 1
	}
	var rampLen = rampCycles * spc

	ps.rampUp = make([]float32, rampLen)
	ps.rampDown = make([]float32, rampLen)
	for i := 0; i < rampLen; i++ {
		var s = gain * math.Sin(2*math.Pi*float64(i%spc)/float64(spc))
		var t = float64(i) / float64(rampLen)
		var up = (1 - math.Cos(math.Pi*t)) / 2
		ps.rampUp[i] = float32(s * up)
		ps.rampDown[i] = float32(s * (1 - up))
	}

	return ps
}
