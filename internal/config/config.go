package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/commentdeck/commentdeck/internal/buffer"
	"github.com/commentdeck/commentdeck/internal/ipc"
	"github.com/commentdeck/commentdeck/internal/ngfilter"
	"github.com/commentdeck/commentdeck/internal/speech"
)

const (
	SpeechOff    = "off"
	SpeechSystem = "system"
	SpeechStream = "stream"
)

type Config struct {
	RoomURL        string
	ThreadID       string
	IPCAddr        string
	Filter         ngfilter.Policy
	Speech         string
	VoiceServer    string
	ParaphraseFile string
	SkipKey        string
	Voice          speech.VoiceSettings
	BatchWindow    time.Duration
}

func Default() Config {
	return Config{
		IPCAddr:     ipc.DefaultAddr(),
		Filter:      ngfilter.DefaultPolicy(),
		Speech:      SpeechOff,
		Voice:       speech.DefaultVoiceSettings(),
		BatchWindow: buffer.DefaultBatchWindow,
	}
}

func LoadFromEnv() (Config, error) {
	cfg := Default()
	cfg.RoomURL = os.Getenv("COMMENTDECK_ROOM_URL")
	cfg.ThreadID = os.Getenv("COMMENTDECK_THREAD_ID")
	cfg.VoiceServer = os.Getenv("COMMENTDECK_VOICE_SERVER")
	cfg.ParaphraseFile = os.Getenv("COMMENTDECK_PARAPHRASE_FILE")
	cfg.SkipKey = os.Getenv("COMMENTDECK_SKIP_KEY")

	if v := os.Getenv("COMMENTDECK_IPC_ADDR"); v != "" {
		cfg.IPCAddr = v
	}
	if v := os.Getenv("COMMENTDECK_SPEECH"); v != "" {
		cfg.Speech = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("COMMENTDECK_NG_LEVEL"); v != "" {
		level, err := ngfilter.ParseLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Filter.Level = level
	}
	if v := os.Getenv("COMMENTDECK_SHOW_ANONYMOUS"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.New("show anonymous must be a boolean")
		}
		cfg.Filter.ShowAnonymous = show
	}
	if v := os.Getenv("COMMENTDECK_BATCH_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.New("batch window must be a duration")
		}
		cfg.BatchWindow = d
	}

	for _, f := range []struct {
		env string
		dst *float64
	}{
		{"COMMENTDECK_PITCH", &cfg.Voice.Pitch},
		{"COMMENTDECK_RATE", &cfg.Voice.Rate},
		{"COMMENTDECK_VOLUME", &cfg.Voice.Volume},
	} {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s must be a number", f.env)
		}
		*f.dst = n
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.IPCAddr == "" {
		return errors.New("ipc addr is required")
	}
	if c.ThreadID != "" && c.RoomURL == "" {
		return errors.New("room url is required when a thread id is set")
	}
	switch c.Speech {
	case SpeechOff, SpeechSystem:
	case SpeechStream:
		if c.VoiceServer == "" {
			return errors.New("voice server is required for stream speech")
		}
	default:
		return fmt.Errorf("unknown speech backend %q", c.Speech)
	}
	if c.Voice.Pitch <= 0 || c.Voice.Rate <= 0 || c.Voice.Volume < 0 {
		return errors.New("pitch and rate must be positive and volume not negative")
	}
	if c.BatchWindow <= 0 {
		return errors.New("batch window must be positive")
	}
	return nil
}
