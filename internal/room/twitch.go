package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/commentdeck/commentdeck/internal/chunk"
)

// TwitchDialer joins a channel anonymously over IRC. The room url is
// twitch://<channel>.
type TwitchDialer struct {
	// IrcAddress overrides the default server, mostly for tests.
	IrcAddress string
}

func (d TwitchDialer) Dial(ctx context.Context, target Target) (Stream, error) {
	channel, err := twitchChannel(target)
	if err != nil {
		return nil, err
	}

	client := twitchirc.NewAnonymousClient()
	if d.IrcAddress != "" {
		client.IrcAddress = d.IrcAddress
		client.TLS = false
	}
	s := &twitchStream{
		client:  client,
		channel: channel,
		msgs:    make(chan chunk.ChunkedMessage, messageBuffer),
		errc:    make(chan error, 1),
		closed:  make(chan struct{}),
	}

	client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		s.push(toChunk(m))
	})
	client.OnConnect(func() {
		log.Printf("room twitch: connected channel=%s", channel)
	})
	client.OnReconnectMessage(func(twitchirc.ReconnectMessage) {
		log.Printf("room twitch: server requested reconnect channel=%s", channel)
	})
	client.Join(channel)

	go func() {
		s.errc <- client.Connect()
	}()
	return s, nil
}

func twitchChannel(target Target) (string, error) {
	u, err := url.Parse(strings.TrimSpace(target.URL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	channel := normalizeChannel(u.Host)
	if channel == "" {
		channel = normalizeChannel(target.ThreadID)
	}
	if channel == "" {
		return "", ErrInvalidTarget
	}
	return strings.ToLower(channel), nil
}

type twitchStream struct {
	client  *twitchirc.Client
	channel string
	msgs    chan chunk.ChunkedMessage
	errc    chan error

	once   sync.Once
	closed chan struct{}
}

func (s *twitchStream) push(msg chunk.ChunkedMessage) {
	select {
	case s.msgs <- msg:
	case <-s.closed:
	}
}

func (s *twitchStream) Next(ctx context.Context) (chunk.ChunkedMessage, error) {
	select {
	case msg := <-s.msgs:
		return msg, nil
	case err := <-s.errc:
		if err == nil || errors.Is(err, twitchirc.ErrClientDisconnected) {
			return chunk.ChunkedMessage{}, io.EOF
		}
		return chunk.ChunkedMessage{}, err
	case <-ctx.Done():
		return chunk.ChunkedMessage{}, ctx.Err()
	}
}

func (s *twitchStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.client.Disconnect()
		if errors.Is(err, twitchirc.ErrConnectionIsNotOpen) {
			err = nil
		}
	})
	return err
}

// toChunk maps a channel message onto the chunk model. Cheers become gifts
// so they are shown and filtered like any other gift.
func toChunk(m twitchirc.PrivateMessage) chunk.ChunkedMessage {
	sentAt := m.Time
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	meta := &chunk.Meta{
		ID: m.ID,
		At: &chunk.Timestamp{Seconds: sentAt.Unix(), Nanos: int32(sentAt.Nanosecond())},
	}

	name := m.User.DisplayName
	if name == "" {
		name = m.User.Name
	}
	var userID *int64
	if id, err := strconv.ParseInt(m.User.ID, 10, 64); err == nil {
		userID = &id
	}

	if m.Bits > 0 {
		return chunk.ChunkedMessage{Meta: meta, Message: &chunk.Message{Gift: &chunk.Gift{
			ItemID:           "bits",
			AdvertiserUserID: userID,
			AdvertiserName:   name,
			Point:            int64(m.Bits),
			Message:          m.Message,
			ItemName:         "Bits",
		}}}
	}

	status := chunk.AccountStandard
	if m.User.Badges["subscriber"] > 0 {
		status = chunk.AccountPremium
	}
	chat := &chunk.Chat{
		Content:       m.Message,
		Name:          &name,
		AccountStatus: status,
		RawUserID:     userID,
	}
	if color, ok := parseHexColor(m.User.Color); ok {
		chat.Modifier = &chunk.Modifier{FullColor: &color}
	}
	return chunk.ChunkedMessage{Meta: meta, Message: &chunk.Message{Chat: chat}}
}

func parseHexColor(value string) (chunk.FullColor, bool) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return chunk.FullColor{}, false
	}
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return chunk.FullColor{}, false
	}
	return chunk.FullColor{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, true
}

func normalizeChannel(ch string) string {
	return strings.TrimPrefix(strings.TrimSpace(ch), "#")
}
