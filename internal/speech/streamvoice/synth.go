// Package streamvoice plays speech produced by a remote voice engine.
package streamvoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/commentdeck/commentdeck/internal/queue"
	"github.com/commentdeck/commentdeck/internal/speech"
)

type TalkOptions struct {
	Speed     float64
	Pitch     float64
	Volume    float64
	MaxTime   time.Duration
	OnPhoneme func(speech.Phoneme)
}

// Utterance is synthesized audio ready to play. Done closes when playback
// finishes or Cancel is called.
type Utterance interface {
	Play() error
	Cancel()
	Done() <-chan struct{}
}

// Talker synthesizes text. A nil Utterance with a nil error means there is
// nothing to play.
type Talker interface {
	Talk(ctx context.Context, text string, opts TalkOptions) (Utterance, error)
}

type Synth struct {
	runner *queue.Runner
	talker Talker
}

func New(talker Talker) *Synth {
	return &Synth{runner: queue.NewRunner("streamvoice"), talker: talker}
}

func (s *Synth) SpeakText(sp speech.Speech, onStart, onEnd func(), force bool, onPhoneme func(speech.Phoneme)) {
	if force {
		s.runner.Cancel()
	}
	opts := TalkOptions{
		Speed:     speech.Value(sp.Rate, 1),
		Pitch:     speech.Value(sp.Pitch, 1),
		Volume:    speech.Value(sp.Volume, 1),
		MaxTime:   sp.MaxTime,
		OnPhoneme: onPhoneme,
	}
	s.runner.Add(func(ctx context.Context) (queue.StartFunc, error) {
		if strings.TrimSpace(sp.Text) == "" {
			return nil, nil
		}
		u, err := s.talker.Talk(ctx, sp.Text, opts)
		if err != nil {
			return nil, fmt.Errorf("talk: %w", err)
		}
		if u == nil {
			return nil, nil
		}
		return func() (queue.Running, error) {
			if err := u.Play(); err != nil {
				u.Cancel()
				return nil, fmt.Errorf("play: %w", err)
			}
			speech.Call(onStart)
			return speech.Track(u.Cancel, u.Done(), onEnd), nil
		}, nil
	}, sp.Label)
	s.runner.RunNext()
}

func (s *Synth) Speaking() bool {
	return s.runner.IsRunning() || s.runner.Len() > 0
}

func (s *Synth) CancelSpeak() {
	s.runner.Cancel()
}

func (s *Synth) SkipCurrent() {
	s.runner.CancelCurrent()
}

func (s *Synth) WaitForSpeakEnd(ctx context.Context) error {
	return s.runner.WaitUntilFinished(ctx)
}
