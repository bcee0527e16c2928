package cwkeyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeSegmentsParis(t *testing.T) {
	// PARIS is the canonical 50-unit word; without the trailing
	// 7-unit word gap that leaves 43 units.
	var segs = EncodeSegments("PARIS")
	assert.Equal(t, 43, SegmentUnits(segs))

	// Trailing whitespace adds nothing.
	assert.Equal(t, 43, SegmentUnits(EncodeSegments("PARIS ")))

	// A second word costs the 7-unit gap plus the word again.
	assert.Equal(t, 43+7+43, SegmentUnits(EncodeSegments("PARIS PARIS")))
}

func TestEncodeSegmentsSingleLetter(t *testing.T) {
	var segs = EncodeSegments("e")
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Tone)
	assert.Equal(t, 1, segs[0].Units)

	segs = EncodeSegments("T")
	require.Len(t, segs, 1)
	assert.Equal(t, 3, segs[0].Units)
}

func TestEncodeSegmentsIntraCharacterGaps(t *testing.T) {
	// A = .-  ->  dit, 1-unit gap, dah.
	var segs = EncodeSegments("A")
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Tone: true, Units: 1}, segs[0])
	assert.Equal(t, Segment{Tone: false, Units: 1}, segs[1])
	assert.Equal(t, Segment{Tone: true, Units: 3}, segs[2])
}

func TestEncodeSegmentsCharacterGap(t *testing.T) {
	// EE -> dit, 3-unit gap, dit.
	var segs = EncodeSegments("EE")
	require.Len(t, segs, 3)
	assert.Equal(t, 3, segs[1].Units)
}

func TestEncodeSegmentsUnknownIsWordSpace(t *testing.T) {
	assert.Equal(t,
		SegmentUnits(EncodeSegments("E E")),
		SegmentUnits(EncodeSegments("E#E")),
		"untranslatable characters act as word spaces")

	// But never at the start: there is nothing to space from.
	assert.Equal(t,
		SegmentUnits(EncodeSegments("E")),
		SegmentUnits(EncodeSegments("#E")))
}

func TestEncodeSegmentsEmpty(t *testing.T) {
	assert.Empty(t, EncodeSegments(""))
	assert.Empty(t, EncodeSegments("   "))
}

func TestEncodeSegmentsProsigns(t *testing.T) {
	// = is BT: -...-
	var segs = EncodeSegments("=")
	require.Len(t, segs, 9)
	assert.Equal(t, 3, segs[0].Units)
	assert.Equal(t, 3, segs[8].Units)
}

func TestEncodeSegmentsShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var in = rapid.String().Draw(t, "in")

		var segs = EncodeSegments(in)

		// Tones and silences strictly alternate, starting and ending
		// with a tone, and every length is a legal Morse unit count.
		for i, s := range segs {
			assert.Equal(t, i%2 == 0, s.Tone, "alternation broken at %d", i)
			if s.Tone {
				assert.Contains(t, []int{1, 3}, s.Units)
			} else {
				assert.Contains(t, []int{1, 3, 7}, s.Units)
			}
		}
		if len(segs) > 0 {
			assert.True(t, segs[len(segs)-1].Tone, "must end with a tone")
		}
	})
}

func TestEncodeSegmentsCaseInsensitive(t *testing.T) {
	assert.Equal(t, EncodeSegments("cq de m0xxx"), EncodeSegments("CQ DE M0XXX"))
}
