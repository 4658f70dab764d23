package buffer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/ngfilter"
	"github.com/commentdeck/commentdeck/internal/room"
)

const updateBuffer = 64

var ErrClosed = errors.New("buffer service closed")

// subscription is one live connection. Work done for a subscription that
// is no longer current is discarded.
type subscription struct {
	id     string
	conn   Connector
	cancel context.CancelFunc
	done   chan struct{}
}

// Service keeps the bounded, ordered window of visible comments for one
// room and publishes every change to subscribers.
type Service struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    ConnectionState
	room     room.Target
	items    []comment.Wrapped
	popouts  []comment.Wrapped
	pinned   *comment.Wrapped
	operator *comment.Operator
	policy   ngfilter.Policy
	lastSeq  int64
	sub      *subscription
	watchers map[string]chan Update
	closed   bool

	received  atomic.Uint64
	committed atomic.Uint64
	dropped   atomic.Uint64
}

func NewService(opts Options) *Service {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateDisconnected,
		policy:   opts.Policy,
		watchers: make(map[string]chan Update),
	}
}

// Close stops the active connection and closes every subscriber channel.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.detachLocked()
	s.state = StateDisconnected
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	release(sub)
}

// UpdateRoom switches to a new room. A target without url or thread leaves
// the service disconnected without dialing.
func (s *Service) UpdateRoom(target room.Target) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.detachLocked()
	s.room = target
	s.items = nil
	s.popouts = nil
	s.pinned = nil
	s.operator = nil
	s.state = StateDisconnected
	if !target.Valid() {
		s.publishLocked(nil)
		s.mu.Unlock()
		release(old)
		return nil
	}
	err := s.connectLocked()
	s.mu.Unlock()
	release(old)
	return err
}

// RefreshConnection reconnects to the current room. The list is cleared;
// the pinned comment survives.
func (s *Service) RefreshConnection() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.detachLocked()
	s.items = nil
	s.popouts = nil
	s.operator = nil
	s.state = StateDisconnected
	if !s.room.Valid() {
		s.publishLocked(nil)
		s.mu.Unlock()
		release(old)
		return nil
	}
	err := s.connectLocked()
	s.mu.Unlock()
	release(old)
	return err
}

// Unsubscribe stops receiving. Buffered items stay.
func (s *Service) Unsubscribe() {
	s.mu.Lock()
	old := s.detachLocked()
	if old != nil {
		s.state = StateDisconnected
		s.publishLocked(nil)
	}
	s.mu.Unlock()
	release(old)
}

// PinComment pins the buffered item with the same seq id, or unpins when
// item is nil. Items that are no longer buffered are ignored.
func (s *Service) PinComment(item *comment.Wrapped) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item == nil {
		if s.pinned == nil {
			return
		}
		s.pinned = nil
		s.markPinnedLocked(0)
		s.publishLocked(nil)
		return
	}
	found, ok := s.findLocked(item.SeqID)
	if !ok {
		return
	}
	found.Pinned = true
	s.pinned = &found
	s.markPinnedLocked(found.SeqID)
	s.publishLocked(nil)
}

// markPinnedLocked flags the buffered entry with seq as pinned and clears
// the flag everywhere else. seq 0 clears it everywhere.
func (s *Service) markPinnedLocked(seq int64) {
	for i := range s.items {
		s.items[i].Pinned = seq != 0 && s.items[i].SeqID == seq
	}
	for i := range s.popouts {
		s.popouts[i].Pinned = seq != 0 && s.popouts[i].SeqID == seq
	}
}

// PinSeq is PinComment by seq id.
func (s *Service) PinSeq(seq int64) bool {
	s.mu.Lock()
	_, ok := s.findLocked(seq)
	s.mu.Unlock()
	if ok {
		s.PinComment(&comment.Wrapped{SeqID: seq})
	}
	return ok
}

// SetFilterPolicy re-tags every buffered item under the new policy. Order,
// seq ids and payloads are untouched.
func (s *Service) SetFilterPolicy(policy ngfilter.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
	for i := range s.items {
		s.items[i].Filtered = filtered(s.items[i], policy)
	}
	for i := range s.popouts {
		s.popouts[i].Filtered = filtered(s.popouts[i], policy)
	}
	if s.pinned != nil {
		pinned := *s.pinned
		pinned.Filtered = filtered(pinned, policy)
		s.pinned = &pinned
	}
	s.publishLocked(nil)
}

// WatchPolicy applies policies from a settings source until ctx ends or the
// channel closes.
func (s *Service) WatchPolicy(ctx context.Context, policies <-chan ngfilter.Policy) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case policy, ok := <-policies:
				if !ok {
					return
				}
				s.SetFilterPolicy(policy)
			}
		}
	}()
}

// Subscribe returns a channel primed with the current snapshot. Slow
// subscribers lose updates; each snapshot is complete on its own.
func (s *Service) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, updateBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := uuid.NewString()
	ch <- Update{Snapshot: s.snapshotLocked()}
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(ch)
			}
		})
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Items() []comment.Wrapped {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Service) Popouts() []comment.Wrapped {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.popouts)
}

func (s *Service) Pinned() *comment.Wrapped {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned == nil {
		return nil
	}
	pinned := *s.pinned
	return &pinned
}

// OperatorComment is the broadcaster's current marquee comment, if any.
func (s *Service) OperatorComment() *comment.Operator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.operator == nil {
		return nil
	}
	op := *s.operator
	return &op
}

func (s *Service) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Committed: s.committed.Load(),
		Dropped:   s.dropped.Load(),
	}
}

func (s *Service) connectLocked() error {
	conn, err := s.opts.Connect(s.room)
	if err != nil {
		log.Printf("buffer: connect failed url=%s: %v", s.room.URL, err)
		s.appendLocked([]comment.Wrapped{s.emulatedLocked(MessageFetchFailed)})
		return err
	}
	ctx, cancel := context.WithCancel(s.ctx)
	sub := &subscription{
		id:     uuid.NewString(),
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sub = sub
	s.state = StateConnecting
	s.publishLocked(nil)

	msgs, errc := conn.Connect(ctx)
	go s.consume(sub, msgs, errc)
	return nil
}

func (s *Service) detachLocked() *subscription {
	sub := s.sub
	s.sub = nil
	return sub
}

func release(sub *subscription) {
	if sub == nil {
		return
	}
	sub.cancel()
	if err := sub.conn.Close(); err != nil {
		log.Printf("buffer: close connection failed sub=%s: %v", sub.id, err)
	}
}

// consume runs one subscription: messages are classified and numbered as
// they arrive and committed once per batch window.
func (s *Service) consume(sub *subscription, msgs <-chan comment.RawMessage, errc <-chan error) {
	defer close(sub.done)
	ticker := time.NewTicker(s.opts.BatchWindow)
	defer ticker.Stop()

	var pending []comment.Wrapped
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				var err error
				select {
				case err = <-errc:
				case <-s.ctx.Done():
				}
				s.finish(sub, pending, err)
				return
			}
			s.received.Add(1)
			item, visible, disconnect, live := s.accept(sub, msg)
			if !live {
				return
			}
			if visible {
				pending = append(pending, item)
			}
			if disconnect {
				s.finish(sub, pending, nil)
				return
			}
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			if !s.commit(sub, pending) {
				return
			}
			pending = nil
		}
	}
}

// accept numbers one message. Every message takes a seq id, including the
// ones that are never displayed.
func (s *Service) accept(sub *subscription, msg comment.RawMessage) (item comment.Wrapped, visible, disconnect, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != sub {
		return comment.Wrapped{}, false, false, false
	}
	if s.state == StateConnecting {
		s.state = StateStreaming
		s.publishLocked(nil)
	}

	typ := comment.Classify(msg)
	s.lastSeq++
	item = comment.Wrapped{Type: typ, Value: msg, SeqID: s.lastSeq}
	item.Filtered = filtered(item, s.policy)

	switch {
	case msg.Kind == comment.KindOperator && msg.Operator != nil:
		op := *msg.Operator
		s.operator = &op
		s.publishLocked(nil)
	case msg.Kind == comment.KindState && msg.State != nil:
		if msg.State.OperatorCommentCleared || msg.State.ProgramEnded {
			s.operator = nil
			s.publishLocked(nil)
		}
	}

	disconnect = comment.IsDisconnect(msg)
	if disconnect && s.operator != nil {
		s.operator = nil
		s.publishLocked(nil)
	}
	if !typ.Displayable() {
		s.dropped.Add(1)
	}
	return item, typ.Displayable(), disconnect, true
}

func (s *Service) commit(sub *subscription, batch []comment.Wrapped) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != sub {
		return false
	}
	s.appendLocked(batch)
	return true
}

// finish commits what is left and closes the subscription with a status
// line. It does nothing if the subscription was replaced meanwhile.
func (s *Service) finish(sub *subscription, pending []comment.Wrapped, err error) {
	s.mu.Lock()
	if s.sub != sub {
		s.mu.Unlock()
		return
	}
	s.sub = nil
	s.state = StateDisconnected
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		release(sub)
		return
	}
	text := MessageConnectionEnded
	if err != nil {
		text = MessageFetchFailed
	}
	pending = append(pending, s.emulatedLocked(text))
	s.appendLocked(pending)
	s.mu.Unlock()
	release(sub)
}

func (s *Service) emulatedLocked(text string) comment.Wrapped {
	s.lastSeq++
	return comment.Wrapped{
		Type:  comment.TypeEmulated,
		Value: comment.Emulated(text, s.opts.Now()),
		SeqID: s.lastSeq,
	}
}

// appendLocked commits a batch: the window keeps the newest MaxVisible
// items and the popout list becomes what this batch pushed out.
func (s *Service) appendLocked(batch []comment.Wrapped) {
	if len(batch) == 0 {
		return
	}
	combined := make([]comment.Wrapped, 0, len(s.items)+len(batch))
	combined = append(combined, s.items...)
	combined = append(combined, batch...)

	var evicted []comment.Wrapped
	if over := len(combined) - MaxVisible; over > 0 {
		evicted = combined[:over]
		combined = combined[over:]
	}
	if len(evicted) > MaxPopouts {
		evicted = evicted[len(evicted)-MaxPopouts:]
	}
	s.items = cloneItems(combined)
	s.popouts = cloneItems(evicted)
	s.committed.Add(uint64(len(batch)))
	s.publishLocked(batch)
}

func (s *Service) findLocked(seq int64) (comment.Wrapped, bool) {
	for _, item := range s.items {
		if item.SeqID == seq {
			return item, true
		}
	}
	for _, item := range s.popouts {
		if item.SeqID == seq {
			return item, true
		}
	}
	return comment.Wrapped{}, false
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   s.state,
		Room:    s.room,
		Items:   cloneItems(s.items),
		Popouts: cloneItems(s.popouts),
		Policy:  s.policy,
	}
	if s.pinned != nil {
		pinned := *s.pinned
		snap.Pinned = &pinned
	}
	if s.operator != nil {
		op := *s.operator
		snap.Operator = &op
	}
	return snap
}

func (s *Service) publishLocked(added []comment.Wrapped) {
	if len(s.watchers) == 0 {
		return
	}
	update := Update{Snapshot: s.snapshotLocked(), Added: cloneItems(added)}
	for id, ch := range s.watchers {
		select {
		case ch <- update:
		default:
			log.Printf("buffer: subscriber behind, update dropped sub=%s", id)
		}
	}
}

// filtered applies the NG policy. Only viewer chat carries a score.
func filtered(item comment.Wrapped, policy ngfilter.Policy) bool {
	if item.Type != comment.TypeNormal {
		return false
	}
	score, anonymous := comment.ScoreAndAnonymity(item.Value)
	return !ngfilter.Passes(score, anonymous, policy)
}

func cloneItems(items []comment.Wrapped) []comment.Wrapped {
	if len(items) == 0 {
		return []comment.Wrapped{}
	}
	out := make([]comment.Wrapped, len(items))
	copy(out, items)
	return out
}
