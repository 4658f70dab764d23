package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commentdeck/commentdeck/internal/config"
	"github.com/commentdeck/commentdeck/internal/ngfilter"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	cfg, maxSpeech, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting commentd ipc=%s speech=%s", cfg.IPCAddr, cfg.Speech)
	daemon, err := newCommentDaemon(cfg, daemonOptions{MaxSpeech: maxSpeech})
	if err != nil {
		return err
	}
	if err := daemon.Run(ctx); err != nil {
		return err
	}
	log.Printf("shutting down")
	return nil
}

// parseFlags overrides the environment configuration with command line
// flags.
func parseFlags(args []string, cfg config.Config) (config.Config, time.Duration, error) {
	fs := flag.NewFlagSet("commentd", flag.ContinueOnError)
	roomURL := fs.String("room", cfg.RoomURL, "comment room url (ws, wss, http, https or twitch)")
	thread := fs.String("thread", cfg.ThreadID, "comment thread id")
	ipcAddr := fs.String("ipc", cfg.IPCAddr, "ipc socket/pipe address")
	ngLevel := fs.String("ng", string(cfg.Filter.Level), "ng score level: none, low, mid, high")
	showAnonymous := fs.Bool("show-anonymous", cfg.Filter.ShowAnonymous, "show comments from anonymous users")
	speechMode := fs.String("speech", cfg.Speech, "speech backend: off, system, stream")
	voiceServer := fs.String("voice-server", cfg.VoiceServer, "streaming voice engine websocket url")
	paraphrase := fs.String("paraphrase", cfg.ParaphraseFile, "extra paraphrase rules (yaml)")
	skipKey := fs.String("skip-key", cfg.SkipKey, "hotkey that skips the current utterance")
	pitch := fs.Float64("pitch", cfg.Voice.Pitch, "voice pitch")
	rate := fs.Float64("rate", cfg.Voice.Rate, "voice rate")
	volume := fs.Float64("volume", cfg.Voice.Volume, "voice volume")
	batch := fs.Duration("batch", cfg.BatchWindow, "comment batching window")
	maxSpeech := fs.Duration("max-speech", 0, "longest single utterance, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, 0, err
	}

	level, err := ngfilter.ParseLevel(*ngLevel)
	if err != nil {
		return config.Config{}, 0, err
	}
	if *maxSpeech < 0 {
		return config.Config{}, 0, fmt.Errorf("max-speech must be >= 0")
	}

	cfg.RoomURL = *roomURL
	cfg.ThreadID = *thread
	cfg.IPCAddr = *ipcAddr
	cfg.Filter = ngfilter.Policy{Level: level, ShowAnonymous: *showAnonymous}
	cfg.Speech = *speechMode
	cfg.VoiceServer = *voiceServer
	cfg.ParaphraseFile = *paraphrase
	cfg.SkipKey = *skipKey
	cfg.Voice.Pitch = *pitch
	cfg.Voice.Rate = *rate
	cfg.Voice.Volume = *volume
	cfg.BatchWindow = *batch
	return cfg, *maxSpeech, nil
}
