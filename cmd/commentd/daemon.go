package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/commentdeck/commentdeck/internal/audio"
	"github.com/commentdeck/commentdeck/internal/buffer"
	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/config"
	"github.com/commentdeck/commentdeck/internal/ipc"
	"github.com/commentdeck/commentdeck/internal/ngfilter"
	"github.com/commentdeck/commentdeck/internal/room"
	"github.com/commentdeck/commentdeck/internal/settings"
	"github.com/commentdeck/commentdeck/internal/speech"
	"github.com/commentdeck/commentdeck/internal/speech/streamvoice"
	"github.com/commentdeck/commentdeck/internal/speech/sysvoice"
	"github.com/commentdeck/commentdeck/internal/voiceengine"
)

var errSpeechOff = errors.New("speech is off")

type daemonOptions struct {
	Connect   buffer.ConnectorFactory
	Synth     speech.Synthesizer
	MaxSpeech time.Duration
}

type commentDaemon struct {
	cfg  config.Config
	opts daemonOptions

	buf    *buffer.Service
	policy *settings.Observable[ngfilter.Policy]
	voice  *settings.Observable[speech.VoiceSettings]
	dict   *speech.ParaphraseDictionary
	sts    *pipelineStats

	mu       sync.Mutex
	speech   *speech.Service
	ipc      *ipcServer
	playback *audio.Playback
}

func newCommentDaemon(cfg config.Config, opts daemonOptions) (*commentDaemon, error) {
	dict := speech.DefaultParaphraseDictionary()
	if cfg.ParaphraseFile != "" {
		rules, err := speech.LoadParaphraseFile(cfg.ParaphraseFile)
		if err != nil {
			return nil, err
		}
		if dict, err = dict.With(rules); err != nil {
			return nil, err
		}
		log.Printf("paraphrase rules loaded file=%s rules=%d", cfg.ParaphraseFile, len(rules))
	}
	return &commentDaemon{
		cfg:    cfg,
		opts:   opts,
		buf:    buffer.NewService(buffer.Options{BatchWindow: cfg.BatchWindow, Connect: opts.Connect, Policy: cfg.Filter}),
		policy: settings.NewComparable(cfg.Filter),
		voice:  settings.NewComparable(cfg.Voice),
		dict:   dict,
		sts:    newPipelineStats(),
	}, nil
}

func (d *commentDaemon) Run(ctx context.Context) error {
	defer d.buf.Close()
	go d.sts.LogLoop(ctx, d.buf.Stats)
	go logCPUUsage(ctx)

	if err := d.startSpeech(ctx); err != nil {
		return err
	}
	defer d.stopSpeech()

	policies, stopPolicies := d.policy.Subscribe()
	defer stopPolicies()
	d.buf.WatchPolicy(ctx, policies)

	updates, stopUpdates := d.buf.Subscribe()
	defer stopUpdates()

	server := newIPCServer(d.cfg.IPCAddr, d.handleIPCCommand)
	d.mu.Lock()
	d.ipc = server
	d.mu.Unlock()
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(ctx)
	}()

	if d.cfg.RoomURL != "" {
		target := room.NewTarget(d.cfg.RoomURL, d.cfg.ThreadID)
		if err := d.buf.UpdateRoom(target); err != nil {
			log.Printf("room connect failed url=%s: %v", target.URL, err)
		}
	}

	var hotkeyErrCh chan error
	if strings.TrimSpace(d.cfg.SkipKey) != "" && d.currentSpeech() != nil {
		hotkeyErrCh = make(chan error, 1)
		go func() {
			hotkeyErrCh <- d.runSkipHotkey(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			_ = server.Close()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			d.handleUpdate(update)
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("ipc server failed: %w", err)
			}
			return nil
		case err := <-hotkeyErrCh:
			hotkeyErrCh = nil
			if err != nil {
				log.Printf("skip hotkey unavailable: %v", err)
				server.Broadcast(ipc.Message{Event: ipc.EventError, Error: fmt.Sprintf("skip hotkey unavailable: %v", err)})
			}
		}
	}
}

func (d *commentDaemon) startSpeech(ctx context.Context) error {
	synth := d.opts.Synth
	if synth == nil {
		switch d.cfg.Speech {
		case config.SpeechOff, "":
			return nil
		case config.SpeechSystem:
			synth = sysvoice.New()
		case config.SpeechStream:
			playback, err := audio.StartPlayback(ctx)
			if err != nil {
				return fmt.Errorf("start audio playback: %w", err)
			}
			d.mu.Lock()
			d.playback = playback
			d.mu.Unlock()
			synth = streamvoice.New(voiceengine.New(d.cfg.VoiceServer, playback))
		default:
			return fmt.Errorf("unknown speech backend %q", d.cfg.Speech)
		}
	}
	svc := speech.NewService(d.dict, d.voice, synth)
	svc.SetMaxTime(d.opts.MaxSpeech)
	d.mu.Lock()
	d.speech = svc
	d.mu.Unlock()
	return nil
}

func (d *commentDaemon) stopSpeech() {
	d.mu.Lock()
	svc := d.speech
	playback := d.playback
	d.speech = nil
	d.playback = nil
	d.mu.Unlock()
	if svc != nil {
		svc.Synthesizer().CancelSpeak()
	}
	if playback != nil {
		_ = playback.Close()
	}
}

func (d *commentDaemon) currentSpeech() *speech.Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speech
}

func (d *commentDaemon) currentIPC() *ipcServer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ipc
}

// handleUpdate forwards the buffer to consumers and reads new comments
// aloud. Filtered comments stay silent.
func (d *commentDaemon) handleUpdate(update buffer.Update) {
	snapshot := update.Snapshot
	d.currentIPC().Broadcast(ipc.Message{Event: ipc.EventSnapshot, Snapshot: &snapshot, Added: update.Added})

	svc := d.currentSpeech()
	if svc == nil {
		return
	}
	for _, item := range update.Added {
		if item.Filtered || !speech.Speakable(item.Type) {
			continue
		}
		d.speak(svc, item, false)
	}
}

func (d *commentDaemon) speak(svc *speech.Service, item comment.Wrapped, force bool) bool {
	sp := svc.MakeSpeech(item)
	if sp == nil {
		return false
	}
	label := sp.Label
	onStart := func() {
		d.sts.RecordSpoken()
		d.currentIPC().Broadcast(ipc.Message{Event: ipc.EventSpeaking, Active: true, Label: label, Seq: item.SeqID, Text: sp.Text})
	}
	onEnd := func() {
		d.currentIPC().Broadcast(ipc.Message{Event: ipc.EventSpeaking, Active: false, Label: label, Seq: item.SeqID})
	}
	if force {
		svc.Synthesizer().SpeakText(*sp, onStart, onEnd, true, nil)
		return true
	}
	svc.SpeakText(*sp, onStart, onEnd)
	return true
}

func (d *commentDaemon) skip() {
	svc := d.currentSpeech()
	if svc == nil {
		return
	}
	d.sts.RecordSkip()
	svc.Synthesizer().SkipCurrent()
}

func (d *commentDaemon) runSkipHotkey(ctx context.Context) error {
	listener, err := newSkipHotkey(d.cfg.SkipKey)
	if err != nil {
		return err
	}
	log.Printf("skip hotkey registered binding=%s", d.cfg.SkipKey)
	return listener.Run(ctx, d.skip)
}

func (d *commentDaemon) snapshotEvent() ipc.Message {
	snapshot := d.buf.Snapshot()
	return ipc.Message{Event: ipc.EventSnapshot, Snapshot: &snapshot}
}

func (d *commentDaemon) handleIPCCommand(ctx context.Context, msg ipc.Message) (ipc.Message, error) {
	switch msg.Cmd {
	case ipc.CommandSetRoom:
		if strings.TrimSpace(msg.URL) == "" {
			return ipc.Message{}, fmt.Errorf("url is required")
		}
		target := room.NewTarget(msg.URL, msg.Thread)
		if !target.Valid() {
			return ipc.Message{}, fmt.Errorf("thread is required")
		}
		if err := d.buf.UpdateRoom(target); err != nil {
			return ipc.Message{}, err
		}
		return d.snapshotEvent(), nil
	case ipc.CommandRefresh:
		if err := d.buf.RefreshConnection(); err != nil {
			return ipc.Message{}, err
		}
		return d.snapshotEvent(), nil
	case ipc.CommandUnsubscribe:
		d.buf.Unsubscribe()
		return d.snapshotEvent(), nil
	case ipc.CommandPin:
		if msg.Seq <= 0 {
			return ipc.Message{}, fmt.Errorf("seq is required")
		}
		if !d.buf.PinSeq(msg.Seq) {
			return ipc.Message{}, fmt.Errorf("comment %d is not buffered", msg.Seq)
		}
		return d.snapshotEvent(), nil
	case ipc.CommandUnpin:
		d.buf.PinComment(nil)
		return d.snapshotEvent(), nil
	case ipc.CommandSetFilter:
		policy := d.policy.Get()
		if msg.Level != "" {
			level, err := ngfilter.ParseLevel(msg.Level)
			if err != nil {
				return ipc.Message{}, err
			}
			policy.Level = level
		}
		if msg.ShowAnonymous != nil {
			policy.ShowAnonymous = *msg.ShowAnonymous
		}
		d.policy.Set(policy)
		return ipc.Message{}, nil
	case ipc.CommandSetVoice:
		voice := d.voice.Get()
		voice.Pitch = speech.Value(msg.Pitch, voice.Pitch)
		voice.Rate = speech.Value(msg.Rate, voice.Rate)
		voice.Volume = speech.Value(msg.Volume, voice.Volume)
		if voice.Pitch <= 0 || voice.Rate <= 0 || voice.Volume < 0 {
			return ipc.Message{}, fmt.Errorf("pitch and rate must be positive and volume not negative")
		}
		d.voice.Set(voice)
		return ipc.Message{}, nil
	case ipc.CommandSpeak:
		svc := d.currentSpeech()
		if svc == nil {
			return ipc.Message{}, errSpeechOff
		}
		item := comment.Wrapped{
			Type:  comment.TypeNormal,
			Value: comment.RawMessage{Kind: comment.KindChat, Chat: &comment.Chat{Content: msg.Text}},
		}
		if !d.speak(svc, item, msg.Force) {
			return ipc.Message{}, fmt.Errorf("text is required")
		}
		return ipc.Message{}, nil
	case ipc.CommandCancelSpeak:
		svc := d.currentSpeech()
		if svc == nil {
			return ipc.Message{}, errSpeechOff
		}
		svc.Synthesizer().CancelSpeak()
		return ipc.Message{}, nil
	case ipc.CommandSkip:
		if d.currentSpeech() == nil {
			return ipc.Message{}, errSpeechOff
		}
		d.skip()
		return ipc.Message{}, nil
	case ipc.CommandSnapshot:
		return d.snapshotEvent(), nil
	case ipc.CommandPing:
		return ipc.Message{Event: ipc.EventPong}, nil
	default:
		return ipc.Message{}, fmt.Errorf("unknown command")
	}
}
