package room

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/commentdeck/commentdeck/internal/chunk"
)

var (
	ErrInvalidTarget     = errors.New("invalid room target")
	ErrUnsupportedScheme = errors.New("unsupported room url scheme")
)

// Target names one comment room: the stream endpoint and the thread within it.
type Target struct {
	URL      string `json:"url"`
	ThreadID string `json:"threadId"`
}

// NewTarget builds a target from user input. A twitch url without a thread
// uses its channel as the thread.
func NewTarget(rawURL, thread string) Target {
	t := Target{URL: strings.TrimSpace(rawURL), ThreadID: strings.TrimSpace(thread)}
	if t.ThreadID == "" {
		if u, err := url.Parse(t.URL); err == nil && strings.EqualFold(u.Scheme, "twitch") {
			t.ThreadID = normalizeChannel(u.Host)
		}
	}
	return t
}

func (t Target) Valid() bool {
	return strings.TrimSpace(t.URL) != "" && strings.TrimSpace(t.ThreadID) != ""
}

// Stream is one open transport session. Next returns io.EOF when the
// server ends the stream normally.
type Stream interface {
	Next(ctx context.Context) (chunk.ChunkedMessage, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, target Target) (Stream, error)
}

type DialerFunc func(ctx context.Context, target Target) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context, target Target) (Stream, error) {
	return f(ctx, target)
}

// DialerFor picks the transport for a room url.
func DialerFor(rawURL string) (Dialer, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss", "http", "https":
		return WebSocketDialer{}, nil
	case "twitch":
		return TwitchDialer{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}
