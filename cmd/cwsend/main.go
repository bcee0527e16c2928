package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Send text as Morse code, to the speakers or to a
 *		WAV file.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	cwkeyer "github.com/doismellburning/cwkeyer/src"
)

func main() {
	var wpm = pflag.IntP("wpm", "w", 20, "Keying speed in words per minute.")
	var frequency = pflag.IntP("frequency", "f", 600, "Tone frequency in Hz.")
	var volume = pflag.IntP("volume", "v", 50, "Volume, 0-100.")
	var sampleRate = pflag.IntP("sample-rate", "r", 48000, "Sample rate, per sec.")
	var outFile = pflag.StringP("output", "o", "", "Write a WAV file instead of playing audio.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - send text as Morse code.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: cwsend [options] text...\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:\n")
		fmt.Fprintf(os.Stderr, "\tcwsend -w 25 CQ CQ CQ DE M0XXX\n")
	}

	pflag.Parse()

	if *help || len(pflag.Args()) == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	var text = strings.Join(pflag.Args(), " ")

	var engine = cwkeyer.NewEngine(*sampleRate)
	engine.SetFrequency(*frequency)
	engine.SetVolume(*volume)
	engine.SetWpm(*wpm)

	var sender = cwkeyer.NewMessageSender(engine, *wpm)

	if *outFile != "" {
		render(engine, sender, text, *outFile, *sampleRate)
		return
	}

	var out, err = cwkeyer.NewPortAudioOutput(engine)
	if err != nil {
		log.Fatal("audio", "err", err)
	}
	defer out.Close() //nolint:errcheck

	var done = make(chan struct{})
	sender.OnDone(func() { close(done) })

	if err := sender.Send(text); err != nil {
		log.Fatal("send", "err", err)
	}
	if err := out.Start(); err != nil {
		log.Fatal("audio", "err", err)
	}

	<-done
}

/*-------------------------------------------------------------------
 *
 * Name:	render
 *
 * Purpose:	Pull the whole message out of the engine without any
 *		audio device and write it as 16 bit PCM.
 *
 *--------------------------------------------------------------------*/

func render(engine *cwkeyer.Engine, sender *cwkeyer.MessageSender, text, path string, sampleRate int) {
	if err := sender.Send(text); err != nil {
		log.Fatal("send", "err", err)
	}

	var samples []float32
	var buf = make([]float32, 4096)
	for sender.Sending() || engine.State() != cwkeyer.Silent {
		var n = engine.Read(buf)
		samples = append(samples, buf[:n]...)
	}

	var f, err = os.Create(path)
	if err != nil {
		log.Fatal("create", "path", path, "err", err)
	}
	defer f.Close() //nolint:errcheck

	if err := cwkeyer.WriteWav(f, sampleRate, samples); err != nil {
		log.Fatal("wav", "path", path, "err", err)
	}

	log.Info("wrote", "path", path, "samples", len(samples))
}
