package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	oto output backend (no cgo, no system libraries).
 *
 * Description:	oto pulls samples through an io.Reader, so this
 *		backend is a thin float32LE encoder over Engine.Read.
 *
 *		This is the low-latency-stop backend: it registers the
 *		engine's idle/wake hooks and pauses the player while
 *		the engine has nothing to say.  The hooks run under the
 *		engine lock, so they only poke a channel; a control
 *		goroutine does the actual pause/resume.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// OtoOutput streams one engine through oto.
type OtoOutput struct {
	engine *Engine
	ctx    *oto.Context
	player *oto.Player

	mu  sync.Mutex
	buf []float32

	control chan bool // true = wake, false = idle
	done    chan struct{}
}

/*-------------------------------------------------------------------
 *
 * Name:	NewOtoOutput
 *
 * Purpose:	Create the oto context and player for an engine.
 *
 *--------------------------------------------------------------------*/

func NewOtoOutput(e *Engine) (*OtoOutput, error) {
	var ctx, ready, err = oto.NewContext(&oto.NewContextOptions{
		SampleRate:   e.SampleRate(),
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	<-ready

	var o = &OtoOutput{
		engine:  e,
		ctx:     ctx,
		buf:     make([]float32, 4096),
		control: make(chan bool, 16),
		done:    make(chan struct{}),
	}
	o.player = ctx.NewPlayer(o)

	e.OnIdle(func() {
		select {
		case o.control <- false:
		default:
		}
	})
	e.OnWake(func() {
		select {
		case o.control <- true:
		default:
		}
	})
	go o.controlLoop()

	log.Debug("oto player created", "rate", e.SampleRate())
	return o, nil
}

// controlLoop pauses and resumes the player on engine idle/wake.
func (o *OtoOutput) controlLoop() {
	for {
		select {
		case wake := <-o.control:
			if wake {
				o.player.Play()
			} else {
				o.player.Pause()
			}
		case <-o.done:
			return
		}
	}
}

// Read implements io.Reader for the oto player: pull from the engine,
// encode as float32 little-endian.
func (o *OtoOutput) Read(p []byte) (int, error) {
	var numSamples = len(p) / 4
	if numSamples == 0 {
		return 0, nil
	}

	o.mu.Lock()
	if len(o.buf) < numSamples {
		o.buf = make([]float32, numSamples)
	}
	var samples = o.buf[:numSamples]
	o.engine.Read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	o.mu.Unlock()

	return numSamples * 4, nil
}

// Start begins playback.
func (o *OtoOutput) Start() error {
	o.player.Play()
	return nil
}

// Close stops playback.  The oto context itself cannot be torn down;
// that is an oto limitation, not ours.
func (o *OtoOutput) Close() error {
	close(o.done)
	return o.player.Close()
}
