package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/commentdeck/commentdeck/internal/ipc"
)

const (
	consumerOutbox       = 64
	consumerWriteTimeout = 2 * time.Second
)

type ipcHandler func(ctx context.Context, msg ipc.Message) (ipc.Message, error)

// ipcServer fans daemon events out to attached consumers and answers their
// commands.
type ipcServer struct {
	addr         string
	handler      ipcHandler
	writeTimeout time.Duration

	mu        sync.Mutex
	ln        net.Listener
	consumers map[*consumer]struct{}
}

func newIPCServer(addr string, handler ipcHandler) *ipcServer {
	return &ipcServer{
		addr:         addr,
		handler:      handler,
		writeTimeout: consumerWriteTimeout,
		consumers:    make(map[*consumer]struct{}),
	}
}

// consumer is one attached client. Events wait in a bounded outbox that a
// single writer drains, so a client that stops reading never blocks the
// daemon.
type consumer struct {
	conn    net.Conn
	out     chan ipc.Message
	timeout time.Duration

	once sync.Once
	gone chan struct{}
}

func newConsumer(conn net.Conn, timeout time.Duration) *consumer {
	return &consumer{
		conn:    conn,
		out:     make(chan ipc.Message, consumerOutbox),
		timeout: timeout,
		gone:    make(chan struct{}),
	}
}

// enqueue reports false when the outbox is full or the consumer is gone.
func (c *consumer) enqueue(msg ipc.Message) bool {
	select {
	case <-c.gone:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *consumer) writeLoop() {
	enc := ipc.NewEncoder(c.conn)
	for {
		select {
		case <-c.gone:
			return
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
			if err := enc.Encode(msg); err != nil {
				log.Printf("ipc: consumer write failed event=%s: %v", msg.Event, err)
				c.close()
				return
			}
		}
	}
}

func (c *consumer) close() {
	c.once.Do(func() {
		close(c.gone)
		_ = c.conn.Close()
	})
}

func (s *ipcServer) Run(ctx context.Context) error {
	ln, err := ipc.Listen(s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serve(ctx, conn)
	}
}

func (s *ipcServer) Close() error {
	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
		s.ln = nil
	}
	consumers := s.consumers
	s.consumers = make(map[*consumer]struct{})
	s.mu.Unlock()

	for c := range consumers {
		c.close()
	}
	return nil
}

// Broadcast queues msg for every consumer without waiting on any of them.
// A consumer whose outbox is full is disconnected.
func (s *ipcServer) Broadcast(msg ipc.Message) {
	if s == nil {
		return
	}
	for _, c := range s.attached() {
		if !c.enqueue(msg) {
			log.Printf("ipc: consumer behind, disconnecting event=%s", msg.Event)
			s.detach(c)
		}
	}
}

func (s *ipcServer) serve(ctx context.Context, conn net.Conn) {
	c := newConsumer(conn, s.writeTimeout)
	s.attach(c)
	defer s.detach(c)
	go c.writeLoop()

	c.enqueue(ipc.Message{Event: ipc.EventReady})
	dec := ipc.NewDecoder(conn)
	for {
		var msg ipc.Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				log.Printf("ipc decode error: %v", err)
			}
			return
		}
		if msg.Cmd == "" {
			continue
		}
		reply := s.reply(ctx, msg)
		if reply.Event == "" {
			continue
		}
		if !c.enqueue(reply) {
			log.Printf("ipc: consumer behind, disconnecting cmd=%s", msg.Cmd)
			return
		}
	}
}

// reply runs one command. Commands that change nothing visible return an
// empty message.
func (s *ipcServer) reply(ctx context.Context, msg ipc.Message) ipc.Message {
	if s.handler == nil {
		return ipc.Message{Event: ipc.EventError, Error: "ipc handler unavailable"}
	}
	resp, err := s.handler(ctx, msg)
	if err != nil {
		return ipc.Message{Event: ipc.EventError, Error: err.Error()}
	}
	return resp
}

func (s *ipcServer) attach(c *consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumers == nil {
		s.consumers = make(map[*consumer]struct{})
	}
	s.consumers[c] = struct{}{}
}

func (s *ipcServer) detach(c *consumer) {
	s.mu.Lock()
	delete(s.consumers, c)
	s.mu.Unlock()
	c.close()
}

func (s *ipcServer) attached() []*consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*consumer, 0, len(s.consumers))
	for c := range s.consumers {
		out = append(out, c)
	}
	return out
}

func (s *ipcServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumers)
}
