package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	GPIO paddle input (Raspberry Pi and friends).
 *
 * Description:	Two lines, active low, pulled up, with kernel-side
 *		debounce.  Edge events arrive on the gpiocdev event
 *		goroutine; we fold them into a paddle state pair and
 *		hand that to the keyer.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

const gpioDebounce = 1 * time.Millisecond

// GPIOPaddle reads dit/dah contacts from GPIO lines.
type GPIOPaddle struct {
	keyer *Keyer

	mu       sync.Mutex
	dit, dah bool

	ditLine *gpiocdev.Line
	dahLine *gpiocdev.Line
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenGPIOPaddle
 *
 * Purpose:	Request both lines with edge detection and start
 *		delivering paddle updates.
 *
 * Inputs:	chip		- e.g. "gpiochip0".
 *		ditOffset	- Line offset for the dit contact.
 *		dahOffset	- Line offset for the dah contact.
 *
 *--------------------------------------------------------------------*/

func OpenGPIOPaddle(chip string, ditOffset, dahOffset int, k *Keyer) (*GPIOPaddle, error) {
	var g = &GPIOPaddle{keyer: k}

	var request = func(offset int, isDit bool) (*gpiocdev.Line, error) {
		return gpiocdev.RequestLine(chip, offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(gpioDebounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				// Active low: contact closes to ground.
				g.update(isDit, evt.Type == gpiocdev.LineEventFallingEdge)
			}))
	}

	var err error
	g.ditLine, err = request(ditOffset, true)
	if err != nil {
		return nil, fmt.Errorf("request gpio line %d on %s: %w", ditOffset, chip, err)
	}
	g.dahLine, err = request(dahOffset, false)
	if err != nil {
		g.ditLine.Close() //nolint:errcheck
		return nil, fmt.Errorf("request gpio line %d on %s: %w", dahOffset, chip, err)
	}

	log.Info("gpio paddle opened", "chip", chip, "dit", ditOffset, "dah", dahOffset)
	return g, nil
}

func (g *GPIOPaddle) update(isDit, pressed bool) {
	g.mu.Lock()
	if isDit {
		g.dit = pressed
	} else {
		g.dah = pressed
	}
	var dit, dah = g.dit, g.dah
	g.mu.Unlock()
	g.keyer.UpdatePaddleState(dit, dah)
}

// Close releases both lines.
func (g *GPIOPaddle) Close() error {
	var err error
	if g.ditLine != nil {
		err = g.ditLine.Close()
	}
	if g.dahLine != nil {
		if err2 := g.dahLine.Close(); err == nil {
			err = err2
		}
	}
	return err
}
