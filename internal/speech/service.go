package speech

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/settings"
)

// Service turns buffered comments into speech and hands it to the active
// synthesizer.
type Service struct {
	dict    *ParaphraseDictionary
	voice   *settings.Observable[VoiceSettings]
	synth   Synthesizer
	maxTime time.Duration
}

func NewService(dict *ParaphraseDictionary, voice *settings.Observable[VoiceSettings], synth Synthesizer) *Service {
	if dict == nil {
		dict = DefaultParaphraseDictionary()
	}
	if voice == nil {
		voice = settings.NewObservable(DefaultVoiceSettings())
	}
	return &Service{dict: dict, voice: voice, synth: synth}
}

// SetMaxTime caps every utterance made by MakeSpeech. Zero means no cap.
func (s *Service) SetMaxTime(d time.Duration) {
	s.maxTime = d
}

func (s *Service) Synthesizer() Synthesizer {
	return s.synth
}

// MakeSpeech returns nil when the item has nothing to say.
func (s *Service) MakeSpeech(item comment.Wrapped) *Speech {
	text := strings.TrimSpace(comment.DisplayText(item))
	if text == "" {
		return nil
	}
	text = strings.TrimSpace(s.dict.Process(text))
	if text == "" {
		return nil
	}
	v := s.voice.Get()
	pitch, rate, volume := v.Pitch, v.Rate, v.Volume
	return &Speech{
		Text:    text,
		Label:   uuid.NewString(),
		Pitch:   &pitch,
		Rate:    &rate,
		Volume:  &volume,
		MaxTime: s.maxTime,
	}
}

// SpeakText queues speech behind whatever is already playing.
func (s *Service) SpeakText(sp Speech, onStart, onEnd func()) {
	if s.synth == nil {
		return
	}
	s.synth.SpeakText(sp, onStart, onEnd, false, nil)
}

// Speakable reports comment types that are read aloud.
func Speakable(t comment.MessageType) bool {
	switch t {
	case comment.TypeNormal, comment.TypeOperator, comment.TypeGift, comment.TypeNicoad, comment.TypeEmotion:
		return true
	}
	return false
}
