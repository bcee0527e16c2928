package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	DNS-SD (Bonjour/Avahi) announcement of the netkey
 *		service, so monitors and remote paddles find it
 *		without configuration.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DnsSdServiceType = "_cwkey._tcp"

/*-------------------------------------------------------------------
 *
 * Name:	AnnounceNetKey
 *
 * Purpose:	Register the netkey TCP port under _cwkey._tcp and
 *		respond to queries until ctx is cancelled.
 *
 * Inputs:	name	- Instance name; empty uses "<hostname> CW Key".
 *
 *--------------------------------------------------------------------*/

func AnnounceNetKey(ctx context.Context, name string, port int) error {
	if name == "" {
		var hostname, err = os.Hostname()
		if err != nil {
			hostname = "cwkeyer"
		}
		name = hostname + " CW Key"
	}

	var cfg = dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DnsSdServiceType,
		Port: port,
	}

	var sv, svErr = dnssd.NewService(cfg)
	if svErr != nil {
		return fmt.Errorf("dns-sd service: %w", svErr)
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		return fmt.Errorf("dns-sd responder: %w", rpErr)
	}

	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("dns-sd add service: %w", err)
	}

	log.Info("dns-sd announcing netkey", "name", name, "type", DnsSdServiceType, "port", port)

	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Error("dns-sd responder", "err", err)
		}
	}()
	return nil
}
