package room

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/commentdeck/commentdeck/internal/chunk"
	"github.com/commentdeck/commentdeck/internal/securelog"
	"nhooyr.io/websocket"
)

const readLimit = 1 << 20

// WebSocketDialer reads JSON encoded chunks, one per text frame.
type WebSocketDialer struct {
	Header http.Header
}

func (d WebSocketDialer) Dial(ctx context.Context, target Target) (Stream, error) {
	wsURL, err := streamURL(target)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: d.Header})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return &wsStream{conn: conn}, nil
}

func streamURL(target Target) (string, error) {
	raw := strings.TrimSpace(target.URL)
	raw = strings.Replace(raw, "https://", "wss://", 1)
	raw = strings.Replace(raw, "http://", "ws://", 1)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	q := u.Query()
	q.Set("thread", target.ThreadID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type wsStream struct {
	conn *websocket.Conn
	once sync.Once
}

func (s *wsStream) Next(ctx context.Context) (chunk.ChunkedMessage, error) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return chunk.ChunkedMessage{}, io.EOF
			}
			return chunk.ChunkedMessage{}, err
		}
		var msg chunk.ChunkedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			securelog.Error("room chunk decode", err)
			continue
		}
		return msg, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return err
}
