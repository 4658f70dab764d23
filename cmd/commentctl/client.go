package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/commentdeck/commentdeck/internal/ipc"
)

// ctlClient is one connection to commentd. Commands on a connection are
// handled in order, so a ping sent after a command marks its completion.
type ctlClient struct {
	addr string
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func newCtlClient(addr string) *ctlClient {
	return &ctlClient{addr: addr}
}

func (c *ctlClient) send(msg ipc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(); err != nil {
		return err
	}
	if err := c.enc.Encode(msg); err != nil {
		c.resetLocked()
		return err
	}
	return nil
}

// readLoop forwards every event until the connection fails. The last
// message is always an error event.
func (c *ctlClient) readLoop(ch chan<- ipc.Message) {
	defer close(ch)
	if err := c.ensureConn(); err != nil {
		ch <- ipc.Message{Event: ipc.EventError, Error: err.Error()}
		return
	}
	c.mu.Lock()
	dec := c.dec
	c.mu.Unlock()
	if dec == nil {
		ch <- ipc.Message{Event: ipc.EventError, Error: "ipc decoder not available"}
		return
	}
	for {
		var msg ipc.Message
		if err := dec.Decode(&msg); err != nil {
			c.reset()
			ch <- ipc.Message{Event: ipc.EventError, Error: err.Error()}
			return
		}
		ch <- msg
	}
}

// call sends cmd and waits for its outcome. The returned message is the
// last full snapshot or pong seen before completion. Commands without a
// reply return an empty message.
func (c *ctlClient) call(ctx context.Context, cmd ipc.Message) (ipc.Message, error) {
	events := make(chan ipc.Message, 16)
	go c.readLoop(events)

	if err := c.send(cmd); err != nil {
		return ipc.Message{}, err
	}
	if cmd.Cmd != ipc.CommandPing {
		if err := c.send(ipc.Message{Cmd: ipc.CommandPing}); err != nil {
			return ipc.Message{}, err
		}
	}

	var reply ipc.Message
	for {
		select {
		case <-ctx.Done():
			return ipc.Message{}, ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return ipc.Message{}, fmt.Errorf("connection closed")
			}
			switch msg.Event {
			case ipc.EventError:
				return ipc.Message{}, fmt.Errorf("%s", msg.Error)
			case ipc.EventSnapshot:
				if len(msg.Added) == 0 {
					reply = msg
				}
			case ipc.EventPong:
				if cmd.Cmd == ipc.CommandPing {
					return msg, nil
				}
				return reply, nil
			}
		}
	}
}

func (c *ctlClient) Close() {
	c.reset()
}

func (c *ctlClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *ctlClient) ensureConn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnLocked()
}

func (c *ctlClient) ensureConnLocked() error {
	if c.addr == "" {
		return fmt.Errorf("ipc address is empty")
	}
	if c.conn == nil {
		conn, err := ipc.Dial(c.addr)
		if err != nil {
			return err
		}
		c.conn = conn
		c.enc = ipc.NewEncoder(conn)
		c.dec = ipc.NewDecoder(conn)
	}
	if c.enc == nil || c.dec == nil {
		return fmt.Errorf("ipc encoder not available")
	}
	return nil
}

func (c *ctlClient) resetLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.enc = nil
	c.dec = nil
}
