package speech

import (
	"context"
	"sync"
	"time"

	"github.com/commentdeck/commentdeck/internal/queue"
)

// Speech is one utterance request. Nil voice parameters use the backend
// default.
type Speech struct {
	Text    string        `json:"text"`
	Label   string        `json:"label,omitempty"`
	Pitch   *float64      `json:"pitch,omitempty"`
	Rate    *float64      `json:"rate,omitempty"`
	Volume  *float64      `json:"volume,omitempty"`
	MaxTime time.Duration `json:"maxTime,omitempty"`
}

// Phoneme is reported while an utterance plays, for mouth animation.
type Phoneme struct {
	Symbol   string        `json:"symbol"`
	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
}

// Synthesizer plays speech one utterance at a time. onStart and onEnd
// bracket audible playback: onEnd fires once, and only if onStart did.
// force drops everything queued or playing before this utterance.
type Synthesizer interface {
	SpeakText(sp Speech, onStart, onEnd func(), force bool, onPhoneme func(Phoneme))
	Speaking() bool
	CancelSpeak()
	SkipCurrent()
	WaitForSpeakEnd(ctx context.Context) error
}

// VoiceSettings are the user's current voice parameters.
type VoiceSettings struct {
	Pitch  float64 `json:"pitch"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
}

func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Pitch: 1, Rate: 1, Volume: 1}
}

// Value returns v or def when v is nil.
func Value(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Track adapts a started utterance to the queue. onEnd fires once the
// utterance is over, whether it finished or was canceled.
func Track(cancel func(), finished <-chan struct{}, onEnd func()) queue.Running {
	t := &tracked{cancel: cancel, done: make(chan struct{})}
	go func() {
		<-finished
		if onEnd != nil {
			onEnd()
		}
		close(t.done)
	}()
	return t
}

type tracked struct {
	once   sync.Once
	cancel func()
	done   chan struct{}
}

func (t *tracked) Cancel() {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
}

func (t *tracked) Done() <-chan struct{} { return t.done }

// Call runs an optional callback.
func Call(fn func()) {
	if fn != nil {
		fn()
	}
}
