package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for "cwkeyerd" which includes:
 *
 *			Sample-accurate CW waveform synthesis.
 *			Iambic keyer (modes A and B) for dual paddles.
 *			Straight key support.
 *			Paddle input from serial handshake lines, GPIO
 *			  lines, or MIDI notes.
 *			Key output on a serial RTS/DTR line for rig keying.
 *			Network key server with DNS-SD announcement.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	cwkeyer "github.com/doismellburning/cwkeyer/src"
)

/*-------------------------------------------------------------------
 *
 * Name:        main
 *
 * Purpose:     Keyer daemon: load config, wire inputs and outputs
 *		around one engine and one keyer, then wait for a
 *		signal.
 *
 * Inputs:	Command line arguments.
 *		See usage message for details.
 *
 *--------------------------------------------------------------------*/

func main() {
	var configFileName = pflag.StringP("config-file", "c", "", "Configuration file name.")
	var wpm = pflag.IntP("wpm", "w", 0, "Keying speed in words per minute.  Overrides the config file.")
	var frequency = pflag.IntP("frequency", "f", 0, "Sidetone frequency in Hz.  Overrides the config file.")
	var volume = pflag.IntP("volume", "v", -1, "Sidetone volume, 0-100.  Overrides the config file.")
	var modeA = pflag.BoolP("mode-a", "A", false, "Iambic mode A (no trailing element on squeeze release).")
	var debug = pflag.BoolP("debug", "d", false, "Debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - an iambic CW keyer daemon with sidetone and rig keying.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: cwkeyerd [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	/*
	 * Get all settings from the configuration file,
	 * possibly override some by command line options.
	 */

	var cfg = cwkeyer.DefaultConfig()
	if *configFileName != "" {
		var err error
		cfg, err = cwkeyer.LoadConfig(*configFileName)
		if err != nil {
			log.Fatal("config", "err", err)
		}
	}

	if *wpm != 0 {
		cfg.Wpm = *wpm
	}
	if *frequency != 0 {
		cfg.Frequency = *frequency
	}
	if *volume >= 0 {
		cfg.Volume = *volume
	}
	if *modeA {
		cfg.ModeB = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", "err", err)
	}

	// Done parsing, let's start doing!

	var engine = cwkeyer.NewEngine(cfg.SampleRate)
	engine.SetFrequency(cfg.Frequency)
	engine.SetVolume(cfg.Volume)
	engine.SetWpm(cfg.Wpm)
	engine.SetStopPolicy(cfg.EngineStopPolicy())

	var mode = cwkeyer.ModeB
	if !cfg.ModeB {
		mode = cwkeyer.ModeA
	}
	var keyer = cwkeyer.NewKeyer(engine, mode, cfg.Wpm)

	log.Info("keyer ready",
		"wpm", cfg.Wpm,
		"frequency", cfg.Frequency,
		"actual_frequency", fmt.Sprintf("%.2f", engine.ActualFrequency()),
		"mode_b", cfg.ModeB)

	var ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	/*
	 * Audio output.  The engine synthesizes regardless; with
	 * backend "none" nobody pulls, which is still useful with a
	 * serial key output driving a rig's own sidetone.
	 */

	switch cfg.Audio.Backend {
	case "portaudio":
		var out, err = cwkeyer.NewPortAudioOutput(engine)
		if err != nil {
			log.Fatal("audio", "backend", "portaudio", "err", err)
		}
		defer out.Close() //nolint:errcheck
		if err := out.Start(); err != nil {
			log.Fatal("audio", "backend", "portaudio", "err", err)
		}
	case "oto":
		var out, err = cwkeyer.NewOtoOutput(engine)
		if err != nil {
			log.Fatal("audio", "backend", "oto", "err", err)
		}
		defer out.Close() //nolint:errcheck
		if err := out.Start(); err != nil {
			log.Fatal("audio", "backend", "oto", "err", err)
		}
	case "none":
		log.Info("audio output disabled")
	}

	/*
	 * Key output and network key server both observe key
	 * transitions; fan out to whichever exist.
	 */

	var senders []cwkeyer.KeySender

	if cfg.Key.Type == "serial" {
		var keyOut, err = cwkeyer.OpenSerialKeyOutput(cfg.Key.Device, cfg.KeyLineOption())
		if err != nil {
			log.Fatal("key output", "device", cfg.Key.Device, "err", err)
		}
		defer keyOut.Close() //nolint:errcheck
		senders = append(senders, keyOut.Sender())
		log.Info("key output", "device", cfg.Key.Device, "line", cfg.KeyLineOption())
	}

	if cfg.NetKey.Listen != "" {
		var netKey, err = cwkeyer.ListenNetKey(cfg.NetKey.Listen, keyer)
		if err != nil {
			log.Fatal("netkey", "listen", cfg.NetKey.Listen, "err", err)
		}
		defer netKey.Close() //nolint:errcheck
		senders = append(senders, netKey.Sender())
		log.Info("netkey listening", "addr", cfg.NetKey.Listen)

		if cfg.NetKey.Announce {
			var name = cfg.NetKey.Name
			if name == "" {
				name, _ = os.Hostname()
			}
			if err := cwkeyer.AnnounceNetKey(ctx, name, netKey.Port()); err != nil {
				log.Error("dns-sd announce", "err", err)
			}
		}
	}

	if cfg.Pty.Enable {
		var ptyPort, err = cwkeyer.OpenPtyKeyPort(cfg.Pty.Symlink, keyer)
		if err != nil {
			log.Fatal("pty port", "err", err)
		}
		defer ptyPort.Close() //nolint:errcheck
		senders = append(senders, ptyPort.Sender())
	}

	if len(senders) > 0 {
		var timestamp, err = cwkeyer.NewTimestampProvider(cfg.TimestampFormat)
		if err != nil {
			log.Fatal("timestamp format", "err", err)
		}
		keyer.SetKeySender(func(down bool, ts string, handle uint32) {
			for _, s := range senders {
				s(down, ts, handle)
			}
		}, timestamp, cfg.ClientHandle)
	}

	/*
	 * Paddle (or straight key) input.
	 */

	switch cfg.Input.Type {
	case "serial":
		var paddle, err = cwkeyer.OpenSerialPaddle(cfg.Input.Device, keyer, cfg.Input.StraightKey)
		if err != nil {
			log.Fatal("paddle", "device", cfg.Input.Device, "err", err)
		}
		defer paddle.Close() //nolint:errcheck
		log.Info("serial paddle", "device", cfg.Input.Device, "straight_key", cfg.Input.StraightKey)
	case "gpio":
		var paddle, err = cwkeyer.OpenGPIOPaddle(cfg.Input.Chip, cfg.Input.DitOffset, cfg.Input.DahOffset, keyer)
		if err != nil {
			log.Fatal("paddle", "chip", cfg.Input.Chip, "err", err)
		}
		defer paddle.Close() //nolint:errcheck
		log.Info("gpio paddle", "chip", cfg.Input.Chip, "dit", cfg.Input.DitOffset, "dah", cfg.Input.DahOffset)
	case "midi":
		var paddle, err = cwkeyer.OpenMIDIPaddle(cfg.Input.Port, cfg.Input.DitNote, cfg.Input.DahNote, keyer)
		if err != nil {
			log.Fatal("paddle", "port", cfg.Input.Port, "err", err)
		}
		defer paddle.Close() //nolint:errcheck
		log.Info("midi paddle", "port", cfg.Input.Port, "dit_note", cfg.Input.DitNote, "dah_note", cfg.Input.DahNote)
	case "none":
		if cfg.NetKey.Listen == "" {
			log.Warn("no paddle input and no netkey listener; nothing will key")
		}
	}

	/*
	 * Watch for serial/MIDI devices coming and going so the
	 * operator sees why the paddle went quiet.
	 */

	if hotplug, err := cwkeyer.WatchHotplug(ctx, "tty", "sound"); err == nil {
		go func() {
			for ev := range hotplug {
				log.Info("hotplug", "action", ev.Action, "subsystem", ev.Subsystem, "devnode", ev.Devnode)
			}
		}()
	} else {
		log.Debug("hotplug watch unavailable", "err", err)
	}

	<-ctx.Done()
	log.Info("shutting down")
	keyer.Stop()
}
