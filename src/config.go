package cwkeyer

/*------------------------------------------------------------------
 *
 * Purpose:   	Daemon configuration, read from a YAML file.
 *
 * Description:	Committed once at startup; runtime parameter changes
 *		(speed, pitch, volume) go through the engine/keyer API
 *		and are not written back.  Settings persistence beyond
 *		this file is somebody else's job.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Wpm        int    `yaml:"wpm"`
	Frequency  int    `yaml:"frequency"`
	Volume     int    `yaml:"volume"`
	ModeB      bool   `yaml:"mode_b"`
	SampleRate int    `yaml:"sample_rate"`
	StopPolicy string `yaml:"stop_policy"` // graceful | aggressive

	TimestampFormat string `yaml:"timestamp_format"`
	ClientHandle    uint32 `yaml:"client_handle"`

	Audio  AudioConfig     `yaml:"audio"`
	Input  InputConfig     `yaml:"input"`
	Key    KeyOutputConfig `yaml:"key_output"`
	NetKey NetKeyConfig    `yaml:"netkey"`
	Pty    PtyConfig       `yaml:"pty"`
}

type AudioConfig struct {
	Backend string `yaml:"backend"` // portaudio | oto | none
}

type InputConfig struct {
	Type        string `yaml:"type"` // serial | gpio | midi | none
	Device      string `yaml:"device"`
	StraightKey bool   `yaml:"straight_key"`

	// GPIO
	Chip      string `yaml:"chip"`
	DitOffset int    `yaml:"dit_offset"`
	DahOffset int    `yaml:"dah_offset"`

	// MIDI
	Port    string `yaml:"port"`
	DitNote uint8  `yaml:"dit_note"`
	DahNote uint8  `yaml:"dah_note"`
}

type KeyOutputConfig struct {
	Type   string `yaml:"type"` // serial | none
	Device string `yaml:"device"`
	Line   string `yaml:"line"` // rts | dtr
}

type NetKeyConfig struct {
	Listen   string `yaml:"listen"` // e.g. ":7355"; empty disables
	Announce bool   `yaml:"announce"`
	Name     string `yaml:"name"`
}

type PtyConfig struct {
	Enable  bool   `yaml:"enable"`
	Symlink string `yaml:"symlink"` // empty means DefaultPtySymlink
}

// DefaultConfig is a usable sidetone-only setup.
func DefaultConfig() Config {
	return Config{
		Wpm:             20,
		Frequency:       600,
		Volume:          50,
		ModeB:           true,
		SampleRate:      48000,
		StopPolicy:      "graceful",
		TimestampFormat: DefaultTimestampFormat,
		Audio:           AudioConfig{Backend: "portaudio"},
		Input:           InputConfig{Type: "none", DitNote: DefaultDitNote, DahNote: DefaultDahNote},
		Key:             KeyOutputConfig{Type: "none", Line: "rts"},
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	LoadConfig
 *
 * Purpose:	Read and validate a YAML config file.  Missing keys
 *		keep their defaults.
 *
 *--------------------------------------------------------------------*/

func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()

	var data, err = os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Wpm < MinWpm || c.Wpm > MaxWpm {
		return fmt.Errorf("wpm %d outside [%d,%d]", c.Wpm, MinWpm, MaxWpm)
	}
	if c.Frequency < MinFrequency || c.Frequency > MaxFrequency {
		return fmt.Errorf("frequency %d outside [%d,%d]", c.Frequency, MinFrequency, MaxFrequency)
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume %d outside [0,100]", c.Volume)
	}
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample_rate %d too low", c.SampleRate)
	}
	switch c.StopPolicy {
	case "graceful", "aggressive":
	default:
		return fmt.Errorf("stop_policy %q (want graceful or aggressive)", c.StopPolicy)
	}
	switch c.Audio.Backend {
	case "portaudio", "oto", "none":
	default:
		return fmt.Errorf("audio backend %q (want portaudio, oto or none)", c.Audio.Backend)
	}
	switch c.Input.Type {
	case "serial", "gpio", "midi", "none":
	default:
		return fmt.Errorf("input type %q (want serial, gpio, midi or none)", c.Input.Type)
	}
	if (c.Input.Type == "serial") && c.Input.Device == "" {
		return fmt.Errorf("input type serial needs a device")
	}
	switch c.Key.Type {
	case "serial", "none":
	default:
		return fmt.Errorf("key_output type %q (want serial or none)", c.Key.Type)
	}
	if c.Key.Type == "serial" && c.Key.Device == "" {
		return fmt.Errorf("key_output type serial needs a device")
	}
	switch c.Key.Line {
	case "rts", "dtr", "":
	default:
		return fmt.Errorf("key_output line %q (want rts or dtr)", c.Key.Line)
	}
	return nil
}

// EngineStopPolicy maps the config string onto the engine option.
func (c *Config) EngineStopPolicy() StopPolicy {
	if c.StopPolicy == "aggressive" {
		return StopAggressive
	}
	return StopGraceful
}

// KeyLineOption maps the config string onto the serial key line.
func (c *Config) KeyLineOption() KeyLine {
	if c.Key.Line == "dtr" {
		return KeyLineDTR
	}
	return KeyLineRTS
}
