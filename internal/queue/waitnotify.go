package queue

import "sync"

// WaitNotify is a single-slot condition. Wait hands out the pending signal
// channel, Notify closes it and resets the slot for the next round.
type WaitNotify struct {
	mu sync.Mutex
	ch chan struct{}
}

func (w *WaitNotify) Wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch == nil {
		w.ch = make(chan struct{})
	}
	return w.ch
}

func (w *WaitNotify) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch == nil {
		return
	}
	close(w.ch)
	w.ch = nil
}

func (w *WaitNotify) Waiting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch != nil
}
