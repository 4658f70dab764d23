package buffer

import (
	"context"
	"time"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/ngfilter"
	"github.com/commentdeck/commentdeck/internal/room"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateStreaming    ConnectionState = "streaming"
)

const (
	MaxVisible         = 100
	MaxPopouts         = 100
	DefaultBatchWindow = time.Second
)

// Status lines appended when a stream ends.
const (
	MessageConnectionEnded = "Comment connection ended."
	MessageFetchFailed     = "Failed to retrieve comments."
)

// Connector is one room connection. room.Client satisfies it.
type Connector interface {
	Connect(ctx context.Context) (<-chan comment.RawMessage, <-chan error)
	Close() error
}

type ConnectorFactory func(target room.Target) (Connector, error)

// RoomConnector dials rooms with the transport matching their url.
func RoomConnector(target room.Target) (Connector, error) {
	dialer, err := room.DialerFor(target.URL)
	if err != nil {
		return nil, err
	}
	return room.NewClient(target, dialer), nil
}

// Snapshot is an immutable view of the buffer. Slices are copies.
type Snapshot struct {
	State    ConnectionState   `json:"state"`
	Room     room.Target       `json:"room"`
	Items    []comment.Wrapped `json:"items"`
	Popouts  []comment.Wrapped `json:"popouts"`
	Pinned   *comment.Wrapped  `json:"pinned,omitempty"`
	Operator *comment.Operator `json:"operator,omitempty"`
	Policy   ngfilter.Policy   `json:"policy"`
}

// Update is published after every change. Added holds the items committed
// by this change, in seq order.
type Update struct {
	Snapshot Snapshot          `json:"snapshot"`
	Added    []comment.Wrapped `json:"added,omitempty"`
}

type Stats struct {
	Received  uint64
	Committed uint64
	Dropped   uint64
}

type Options struct {
	BatchWindow time.Duration
	Connect     ConnectorFactory
	Policy      ngfilter.Policy
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BatchWindow <= 0 {
		o.BatchWindow = DefaultBatchWindow
	}
	if o.Connect == nil {
		o.Connect = RoomConnector
	}
	if o.Policy.Level == "" {
		o.Policy = ngfilter.DefaultPolicy()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
