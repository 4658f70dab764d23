package room

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/commentdeck/commentdeck/internal/chunk"
	"github.com/commentdeck/commentdeck/internal/comment"
)

const messageBuffer = 64

// Client turns a room transport into a stream of raw messages. Nothing is
// dialed until Connect, and every Connect opens a fresh stream.
type Client struct {
	target Target
	dialer Dialer
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewClient(target Target, dialer Dialer) *Client {
	return &Client{target: target, dialer: dialer, now: time.Now}
}

func (c *Client) Target() Target {
	return c.target
}

// Connect starts a stream and returns its messages and a completion channel.
// The message channel is closed when the stream ends; the error channel
// then yields exactly one value, nil when the server ended the stream or
// the client was closed.
func (c *Client) Connect(ctx context.Context) (<-chan comment.RawMessage, <-chan error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	msgs := make(chan comment.RawMessage, messageBuffer)
	errc := make(chan error, 1)
	go func() {
		defer cancel()
		err := c.run(ctx, msgs)
		close(msgs)
		errc <- err
	}()
	return msgs, errc
}

// Close ends the active stream, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

func (c *Client) run(ctx context.Context, out chan<- comment.RawMessage) error {
	if c.dialer == nil {
		return errors.New("room dialer is required")
	}
	if !c.target.Valid() {
		return ErrInvalidTarget
	}
	stream, err := c.dialer.Dial(ctx, c.target)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("room: dial failed url=%s: %v", c.target.URL, err)
		return err
	}
	defer stream.Close()

	for {
		ch, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			log.Printf("room: stream failed thread=%s: %v", c.target.ThreadID, err)
			return err
		}
		msg, ok := c.decode(ch)
		if !ok {
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) decode(ch chunk.ChunkedMessage) (comment.RawMessage, bool) {
	if chunk.ClearsOperatorComment(ch) {
		return comment.RawMessage{Kind: comment.KindState, State: &comment.State{OperatorCommentCleared: true}}, true
	}
	msg, ok := chunk.Decode(ch, c.now())
	if !ok {
		return msg, false
	}
	if msg.Kind == comment.KindChat && msg.Chat != nil {
		msg.Chat.Thread = c.target.ThreadID
	}
	return msg, true
}
