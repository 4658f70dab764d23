package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type State string

const (
	StateIdle      State = ""
	StatePreparing State = "preparing"
	StateRunning   State = "running"
)

// Running is a started task. Done closes when the task is over, whether it
// finished on its own or was canceled. Cancel must be safe to call once at
// any time after start.
type Running interface {
	Cancel()
	Done() <-chan struct{}
}

// StartFunc begins the side effects of a prepared task. A nil Running means
// the task finished during start.
type StartFunc func() (Running, error)

// PrepareFunc readies a task. A nil StartFunc means the task decided not to
// run. ctx is canceled when the task is canceled while preparing.
type PrepareFunc func(ctx context.Context) (StartFunc, error)

type task struct {
	label   string
	prepare PrepareFunc
	ctx     context.Context
	stop    context.CancelFunc

	phase    State
	canceled bool
	handle   Running

	cancelOnce sync.Once
	doneOnce   sync.Once
	done       chan struct{}
}

func (t *task) cancelHandle() {
	t.cancelOnce.Do(func() {
		t.handle.Cancel()
	})
}

func (t *task) finish() {
	t.doneOnce.Do(func() {
		t.stop()
		close(t.done)
	})
}

// Runner executes tasks one at a time in FIFO order. Advancement is always
// scheduled on a fresh goroutine so a task callback never re-enters the
// runner on its own stack.
type Runner struct {
	name string

	mu      sync.Mutex
	queue   []*task
	current *task
	idle    WaitNotify
}

func NewRunner(name string) *Runner {
	return &Runner{name: name}
}

func (r *Runner) Add(prepare PrepareFunc, label string) {
	if prepare == nil {
		return
	}
	ctx, stop := context.WithCancel(context.Background())
	t := &task{
		label:   label,
		prepare: prepare,
		ctx:     ctx,
		stop:    stop,
		done:    make(chan struct{}),
	}
	r.mu.Lock()
	r.queue = append(r.queue, t)
	r.mu.Unlock()
}

func (r *Runner) RunNext() {
	go r.advance()
}

// Cancel drops every pending task and cancels the one in flight. It returns
// once the in-flight task has fully unwound.
func (r *Runner) Cancel() {
	r.mu.Lock()
	dropped := r.queue
	r.queue = nil
	done, cancel := r.cancelCurrentLocked()
	r.mu.Unlock()

	r.settle(dropped, done, cancel)
}

// CancelCurrent cancels the in-flight task and leaves the pending queue
// alone; the next task starts after the canceled one unwinds.
func (r *Runner) CancelCurrent() {
	r.mu.Lock()
	done, cancel := r.cancelCurrentLocked()
	r.mu.Unlock()

	r.settle(nil, done, cancel)
}

// CancelQueue drops pending tasks without touching the one in flight.
func (r *Runner) CancelQueue() {
	r.mu.Lock()
	dropped := r.queue
	r.queue = nil
	if r.current == nil {
		r.idle.Notify()
	}
	r.mu.Unlock()

	for _, t := range dropped {
		t.finish()
	}
}

func (r *Runner) WaitUntilFinished(ctx context.Context) error {
	r.mu.Lock()
	if r.current == nil && len(r.queue) == 0 {
		r.mu.Unlock()
		return nil
	}
	ch := r.idle.Wait()
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return StateIdle
	}
	return r.current.phase
}

// Len counts pending tasks plus the one currently preparing.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.queue)
	if r.current != nil && r.current.phase == StatePreparing {
		n++
	}
	return n
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.phase == StateRunning
}

func (r *Runner) cancelCurrentLocked() (<-chan struct{}, *task) {
	t := r.current
	if t == nil {
		return nil, nil
	}
	t.canceled = true
	t.stop()
	if t.handle != nil {
		return t.done, t
	}
	// still preparing or starting: advance sees the latched flag once the
	// start func exists and cancels it right after invoking it.
	return t.done, nil
}

func (r *Runner) settle(dropped []*task, done <-chan struct{}, cancel *task) {
	for _, t := range dropped {
		t.finish()
	}
	if cancel != nil {
		cancel.cancelHandle()
	}
	if done != nil {
		<-done
	}
	r.RunNext()
}

func (r *Runner) advance() {
	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return
	}
	if len(r.queue) == 0 {
		r.idle.Notify()
		r.mu.Unlock()
		return
	}
	t := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	t.phase = StatePreparing
	r.current = t
	r.mu.Unlock()

	start, err := safePrepare(t)
	if err != nil || start == nil {
		if err != nil && !r.isCanceled(t) {
			log.Printf("queue %s: prepare failed label=%s: %v", r.name, t.label, err)
		}
		r.complete(t)
		return
	}
	r.begin(t, start)
}

func (r *Runner) begin(t *task, start StartFunc) {
	r.mu.Lock()
	t.phase = StateRunning
	r.mu.Unlock()

	handle, err := safeStart(start)
	if err != nil || handle == nil {
		if err != nil {
			log.Printf("queue %s: start failed label=%s: %v", r.name, t.label, err)
		}
		r.complete(t)
		return
	}

	r.mu.Lock()
	t.handle = handle
	canceled := t.canceled
	r.mu.Unlock()
	if canceled {
		t.cancelHandle()
	}

	go func() {
		<-handle.Done()
		r.complete(t)
	}()
}

func (r *Runner) complete(t *task) {
	r.mu.Lock()
	if r.current == t {
		r.current = nil
	}
	r.mu.Unlock()
	t.finish()
	r.RunNext()
}

func (r *Runner) isCanceled(t *task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return t.canceled
}

func safePrepare(t *task) (start StartFunc, err error) {
	defer func() {
		if p := recover(); p != nil {
			start, err = nil, fmt.Errorf("prepare panic: %v", p)
		}
	}()
	return t.prepare(t.ctx)
}

func safeStart(start StartFunc) (handle Running, err error) {
	defer func() {
		if p := recover(); p != nil {
			handle, err = nil, fmt.Errorf("start panic: %v", p)
		}
	}()
	return start()
}
