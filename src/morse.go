package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Morse code table and text-to-element encoding.
 *
 * Description:	Standard timing: dit = 1 unit, dah = 3, gap between
 *		elements of a character = 1, between characters = 3,
 *		between words = 7.  A character not in the table is
 *		treated as a word space.
 *
 *---------------------------------------------------------------*/

import (
	"unicode"
)

var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.",
	'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..",
	'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-",
	'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'1': ".----", '2': "..---", '3': "...--",
	'4': "....-", '5': ".....", '6': "-....",
	'7': "--...", '8': "---..", '9': "----.",
	'0': "-----",
	'.': ".-.-.-", ',': "--..--", '?': "..--..",
	'/': "-..-.", ':': "---...", ';': "-.-.-.",
	'"': ".-..-.", '\'': ".----.", '$': "...-..-",
	')': "-.--.-", '(': "-.--.", '!': "-.-.--",
	'-': "-....-", '_': "..--.-", '@': ".--.-.",
	'=': "-...-", // prosign BT
	'+': ".-.-.", // prosign AR
	'&': ".-...", // prosign AS
}

// Segment is one leg of a keying sequence: tone or silence, measured in
// Morse time units (1 unit = 1200/WPM ms).
type Segment struct {
	Tone  bool
	Units int
}

/*-------------------------------------------------------------------
 *
 * Name:	EncodeSegments
 *
 * Purpose:	Convert text to the tone/silence sequence that keys it.
 *
 * Returns:	Alternating segments, starting and ending with tone.
 *		Unknown characters become word spaces.  Leading and
 *		trailing spaces are dropped; the caller inserts any
 *		delay it wants around the message.
 *
 *--------------------------------------------------------------------*/

func EncodeSegments(text string) []Segment {
	var segs []Segment
	var pendingGap = 0 // units of silence owed before the next tone

	for _, ch := range text {
		ch = unicode.ToUpper(ch)
		var enc, ok = morseCode[ch]
		if !ok {
			// Word space: 7 units total.  The character gaps on
			// either side are folded in rather than added.
			if len(segs) > 0 {
				pendingGap = 7
			}
			continue
		}
		if len(segs) > 0 && pendingGap < 3 {
			pendingGap = 3
		}
		for _, el := range enc {
			if pendingGap > 0 {
				segs = append(segs, Segment{Tone: false, Units: pendingGap})
			}
			if el == '-' {
				segs = append(segs, Segment{Tone: true, Units: 3})
			} else {
				segs = append(segs, Segment{Tone: true, Units: 1})
			}
			pendingGap = 1
		}
	}
	return segs
}

// SegmentUnits totals the units in a sequence, the length of the
// message in dit times.
func SegmentUnits(segs []Segment) int {
	var units = 0
	for _, s := range segs {
		units += s.Units
	}
	return units
}
