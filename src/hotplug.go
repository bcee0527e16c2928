package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Device hot-plug notification.
 *
 * Description:	Watches the udev netlink socket for add/remove events
 *		on the subsystems we care about (sound cards for the
 *		engine swap, tty for paddle interfaces).  The daemon
 *		reacts by swapping the engine under the keyer or
 *		reopening an input; the keyer's decision state survives
 *		either, since it is independent of sample position.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jochenvg/go-udev"
)

// HotplugEvent is one device arrival or departure.
type HotplugEvent struct {
	Action    string // "add", "remove", ...
	Subsystem string // "sound", "tty", ...
	Devnode   string // may be empty for virtual devices
}

/*-------------------------------------------------------------------
 *
 * Name:	WatchHotplug
 *
 * Purpose:	Stream hot-plug events for the given subsystems until
 *		ctx is cancelled.
 *
 *--------------------------------------------------------------------*/

func WatchHotplug(ctx context.Context, subsystems ...string) (<-chan HotplugEvent, error) {
	var u = udev.Udev{}
	var m = u.NewMonitorFromNetlink("udev")
	for _, s := range subsystems {
		if err := m.FilterAddMatchSubsystem(s); err != nil {
			return nil, fmt.Errorf("udev filter %s: %w", s, err)
		}
	}

	var devices, err = m.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("udev monitor: %w", err)
	}

	var out = make(chan HotplugEvent, 8)
	go func() {
		defer close(out)
		for d := range devices {
			var ev = HotplugEvent{
				Action:    d.Action(),
				Subsystem: d.Subsystem(),
				Devnode:   d.Devnode(),
			}
			log.Debug("hotplug", "action", ev.Action, "subsystem", ev.Subsystem, "devnode", ev.Devnode)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
