package ipc

import (
	"encoding/json"
	"errors"
	"runtime"
	"time"

	"github.com/commentdeck/commentdeck/internal/buffer"
	"github.com/commentdeck/commentdeck/internal/comment"
)

const (
	CommandSetRoom     = "set_room"
	CommandRefresh     = "refresh"
	CommandUnsubscribe = "unsubscribe"
	CommandPin         = "pin"
	CommandUnpin       = "unpin"
	CommandSetFilter   = "set_filter"
	CommandSetVoice    = "set_voice"
	CommandSpeak       = "speak"
	CommandCancelSpeak = "cancel_speak"
	CommandSkip        = "skip"
	CommandSnapshot    = "snapshot"
	CommandPing        = "ping"

	EventReady    = "ready"
	EventSnapshot = "snapshot"
	EventSpeaking = "speaking"
	EventError    = "error"
	EventPong     = "pong"
)

// Message is one newline-delimited JSON frame in either direction. Commands
// set Cmd, events set Event.
type Message struct {
	Cmd   string `json:"cmd,omitempty"`
	Event string `json:"event,omitempty"`

	URL    string `json:"url,omitempty"`
	Thread string `json:"thread,omitempty"`
	Seq    int64  `json:"seq,omitempty"`

	Level         string `json:"level,omitempty"`
	ShowAnonymous *bool  `json:"show_anonymous,omitempty"`

	Text   string   `json:"text,omitempty"`
	Force  bool     `json:"force,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
	Volume *float64 `json:"volume,omitempty"`

	Active   bool              `json:"active,omitempty"`
	Label    string            `json:"label,omitempty"`
	Snapshot *buffer.Snapshot  `json:"snapshot,omitempty"`
	Added    []comment.Wrapped `json:"added,omitempty"`
	Error    string            `json:"error,omitempty"`
}

const dialTimeout = 2 * time.Second

// ErrNotSocket is returned by Listen when the address names a file that is
// not a socket left behind by an earlier daemon.
var ErrNotSocket = errors.New("ipc address exists and is not a socket")

func NewDecoder(r interface{ Read([]byte) (int, error) }) *json.Decoder {
	return json.NewDecoder(r)
}

func NewEncoder(w interface{ Write([]byte) (int, error) }) *json.Encoder {
	return json.NewEncoder(w)
}

func DefaultAddr() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\commentdeck`
	}
	return "/tmp/commentdeck.sock"
}
