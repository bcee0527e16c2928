package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Minimal WAV output for offline message rendering.
 *
 * Description:	Mono, 16-bit signed little-endian PCM.  Just enough
 *		header for sox/aplay/lame to accept the file; anything
 *		fancier belongs to a real audio tool.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"io"
)

/*-------------------------------------------------------------------
 *
 * Name:	WriteWav
 *
 * Purpose:	Write float32 samples as a 16-bit mono WAV stream.
 *
 *--------------------------------------------------------------------*/

func WriteWav(w io.Writer, sampleRate int, samples []float32) error {
	var dataLen = len(samples) * 2

	var header struct {
		Riff      [4]byte
		FileSize  uint32
		Wave      [4]byte
		Fmt       [4]byte
		FmtSize   uint32
		Format    uint16
		Channels  uint16
		Rate      uint32
		ByteRate  uint32
		BlockSize uint16
		Bits      uint16
		Data      [4]byte
		DataSize  uint32
	}
	copy(header.Riff[:], "RIFF")
	header.FileSize = uint32(36 + dataLen)
	copy(header.Wave[:], "WAVE")
	copy(header.Fmt[:], "fmt ")
	header.FmtSize = 16
	header.Format = 1 // PCM
	header.Channels = 1
	header.Rate = uint32(sampleRate)
	header.ByteRate = uint32(sampleRate * 2)
	header.BlockSize = 2
	header.Bits = 16
	copy(header.Data[:], "data")
	header.DataSize = uint32(dataLen)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	var pcm = make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		pcm[i] = int16(s * 32767)
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
