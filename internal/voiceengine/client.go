// Package voiceengine talks to a streaming speech server. Each utterance
// opens its own websocket: a synthesize request goes out, opus packets and
// JSON phoneme frames come back until an end frame.
package voiceengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/commentdeck/commentdeck/internal/audio"
	"github.com/commentdeck/commentdeck/internal/speech"
	"github.com/commentdeck/commentdeck/internal/speech/streamvoice"
)

var (
	ErrEngine    = errors.New("voice engine error")
	ErrTruncated = errors.New("voice engine closed before end of utterance")
)

const (
	maxFrameSamples = 960 * 6
	maxMessageBytes = 1 << 20
	pollInterval    = 20 * time.Millisecond
)

// Decoder turns one opus packet into samples.
type Decoder interface {
	Decode(packet []byte, pcm []int16) (int, error)
}

type Client struct {
	URL        string
	Sink       audio.Sink
	HTTPHeader http.Header
	// NewDecoder defaults to an opus decoder at the playback rate.
	NewDecoder func() (Decoder, error)
}

func New(url string, sink audio.Sink) *Client {
	return &Client{URL: url, Sink: sink}
}

type request struct {
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Speed  float64 `json:"speed"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

type frame struct {
	Type       string `json:"type"`
	Symbol     string `json:"symbol,omitempty"`
	OffsetMs   int64  `json:"offsetMs,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Talk synthesizes text fully before returning. The result is nil when the
// engine produced no audio.
func (c *Client) Talk(ctx context.Context, text string, opts streamvoice.TalkOptions) (streamvoice.Utterance, error) {
	newDecoder := c.NewDecoder
	if newDecoder == nil {
		newDecoder = newOpusDecoder
	}
	decoder, err := newDecoder()
	if err != nil {
		return nil, fmt.Errorf("init decoder: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, c.URL, &websocket.DialOptions{HTTPHeader: c.HTTPHeader})
	if err != nil {
		return nil, fmt.Errorf("dial voice engine: %w", err)
	}
	defer conn.Close(websocket.StatusInternalError, "")
	conn.SetReadLimit(maxMessageBytes)

	data, err := json.Marshal(request{Type: "synthesize", Text: text, Speed: opts.Speed, Pitch: opts.Pitch, Volume: opts.Volume})
	if err != nil {
		return nil, err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("send synthesize request: %w", err)
	}

	var pcm []int16
	var phonemes []speech.Phoneme
	buf := make([]int16, maxFrameSamples)
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil, ErrTruncated
			}
			return nil, fmt.Errorf("read voice engine: %w", err)
		}
		if typ == websocket.MessageBinary {
			n, err := decoder.Decode(msg, buf)
			if err != nil {
				return nil, fmt.Errorf("decode audio: %w", err)
			}
			pcm = append(pcm, buf[:n]...)
			continue
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			return nil, fmt.Errorf("parse voice engine frame: %w", err)
		}
		switch f.Type {
		case "phoneme":
			phonemes = append(phonemes, speech.Phoneme{
				Symbol:   f.Symbol,
				Offset:   time.Duration(f.OffsetMs) * time.Millisecond,
				Duration: time.Duration(f.DurationMs) * time.Millisecond,
			})
		case "error":
			return nil, fmt.Errorf("%w: %s", ErrEngine, f.Message)
		case "end":
			conn.Close(websocket.StatusNormalClosure, "")
			if len(pcm) == 0 {
				return nil, nil
			}
			return newUtterance(c.Sink, pcm, phonemes, opts), nil
		}
	}
}

type utterance struct {
	sink     audio.Sink
	pcm      []int16
	phonemes []speech.Phoneme
	opts     streamvoice.TalkOptions

	mu      sync.Mutex
	started bool
	once    sync.Once
	stop    chan struct{}
	done    chan struct{}
}

func newUtterance(sink audio.Sink, pcm []int16, phonemes []speech.Phoneme, opts streamvoice.TalkOptions) *utterance {
	return &utterance{
		sink:     sink,
		pcm:      pcm,
		phonemes: phonemes,
		opts:     opts,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (u *utterance) Play() error {
	if u.sink == nil {
		return errors.New("no audio output")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	select {
	case <-u.stop:
		return errors.New("utterance canceled")
	default:
	}
	if u.started {
		return errors.New("utterance already played")
	}
	u.started = true
	u.sink.Write(u.pcm)
	go u.watch()
	return nil
}

// watch ends the utterance once the sink drains, MaxTime passes or Cancel
// is called. Only the last two flush the sink.
func (u *utterance) watch() {
	defer close(u.done)

	if u.opts.OnPhoneme != nil {
		for _, p := range u.phonemes {
			timer := time.AfterFunc(p.Offset, func() { u.opts.OnPhoneme(p) })
			defer timer.Stop()
		}
	}
	var limit <-chan time.Time
	if u.opts.MaxTime > 0 {
		t := time.NewTimer(u.opts.MaxTime)
		defer t.Stop()
		limit = t.C
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.stop:
			u.sink.Flush()
			return
		case <-limit:
			u.sink.Flush()
			return
		case <-ticker.C:
			if u.sink.Pending() == 0 {
				return
			}
		}
	}
}

func (u *utterance) Cancel() {
	u.once.Do(func() {
		u.mu.Lock()
		close(u.stop)
		started := u.started
		u.mu.Unlock()
		if !started {
			close(u.done)
		}
	})
}

func (u *utterance) Done() <-chan struct{} { return u.done }
