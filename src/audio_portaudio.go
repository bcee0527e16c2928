package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	PortAudio output backend.
 *
 * Description:	Opens the default output device and lets the PortAudio
 *		callback pull samples straight from the engine.  The
 *		stream runs continuously; when the engine is silent it
 *		simply pulls zeros.  That costs a little power and buys
 *		zero start-up latency on the first element.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioOutput streams one engine to the default output device.
type PortAudioOutput struct {
	engine *Engine
	stream *portaudio.Stream
}

/*-------------------------------------------------------------------
 *
 * Name:	NewPortAudioOutput
 *
 * Purpose:	Initialize PortAudio and open a mono float32 stream at
 *		the engine's internal sample rate.
 *
 *--------------------------------------------------------------------*/

func NewPortAudioOutput(e *Engine) (*PortAudioOutput, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialize: %w", err)
	}

	var p = &PortAudioOutput{engine: e}
	var stream, err = portaudio.OpenDefaultStream(
		0, 1, float64(e.SampleRate()), 0,
		func(out []float32) {
			p.engine.Read(out)
		},
	)
	if err != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, fmt.Errorf("portaudio open stream: %w", err)
	}
	p.stream = stream

	log.Debug("portaudio stream opened", "rate", e.SampleRate())
	return p, nil
}

// Start begins pulling from the engine.
func (p *PortAudioOutput) Start() error {
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("portaudio start: %w", err)
	}
	return nil
}

// Close stops the stream and tears PortAudio down.
func (p *PortAudioOutput) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			log.Error("portaudio stop", "err", err)
		}
		if err := p.stream.Close(); err != nil {
			log.Error("portaudio close", "err", err)
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
