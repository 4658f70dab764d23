package streamvoice

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/commentdeck/commentdeck/internal/speech"
)

type fakeUtterance struct {
	hold    bool
	playErr error
	once    sync.Once
	done    chan struct{}
}

func (u *fakeUtterance) Play() error {
	if u.playErr != nil {
		return u.playErr
	}
	if !u.hold {
		u.finish()
	}
	return nil
}

func (u *fakeUtterance) Cancel() {
	u.finish()
}

func (u *fakeUtterance) finish() {
	u.once.Do(func() { close(u.done) })
}

func (u *fakeUtterance) Done() <-chan struct{} { return u.done }

// fakeTalker holds utterances whose text starts with "hold" until canceled.
type fakeTalker struct {
	mu    sync.Mutex
	talks []string
	opts  []TalkOptions
	fail  map[string]error
	empty map[string]bool
	block map[string]bool
}

func (f *fakeTalker) Talk(ctx context.Context, text string, opts TalkOptions) (Utterance, error) {
	f.mu.Lock()
	f.talks = append(f.talks, text)
	f.opts = append(f.opts, opts)
	err, empty, block := f.fail[text], f.empty[text], f.block[text]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	if text == "unplayable" {
		return &fakeUtterance{playErr: errors.New("device gone"), done: make(chan struct{})}, nil
	}
	return &fakeUtterance{hold: len(text) >= 4 && text[:4] == "hold", done: make(chan struct{})}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) speak(s *Synth, text string, force bool) {
	s.SpeakText(speech.Speech{Text: text, Label: text},
		func() { r.add("start:" + text) },
		func() { r.add("end:" + text) },
		force, nil)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func waitIdle(t *testing.T, s *Synth) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.WaitForSpeakEnd(ctx); err != nil {
		t.Fatalf("WaitForSpeakEnd: %v", err)
	}
}

func TestPlaysInOrder(t *testing.T) {
	s := New(&fakeTalker{})
	var rec recorder
	rec.speak(s, "1", false)
	rec.speak(s, "2", false)
	rec.speak(s, "3", false)

	waitFor(t, func() bool { return len(rec.snapshot()) == 6 })
	waitIdle(t, s)
	want := []string{"start:1", "end:1", "start:2", "end:2", "start:3", "end:3"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestSkipCurrent(t *testing.T) {
	s := New(&fakeTalker{})
	var rec recorder
	rec.speak(s, "hold-1", false)
	rec.speak(s, "2", false)
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	if !s.Speaking() {
		t.Fatalf("expected speaking")
	}

	s.SkipCurrent()
	waitFor(t, func() bool { return len(rec.snapshot()) == 4 })
	want := []string{"start:hold-1", "end:hold-1", "start:2", "end:2"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestNothingToPlayFiresNoCallbacks(t *testing.T) {
	talker := &fakeTalker{empty: map[string]bool{"silent": true}}
	s := New(talker)
	var rec recorder
	rec.speak(s, "silent", false)
	rec.speak(s, "", false)
	rec.speak(s, "after", false)

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	waitIdle(t, s)
	want := []string{"start:after", "end:after"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	talker.mu.Lock()
	defer talker.mu.Unlock()
	if !reflect.DeepEqual(talker.talks, []string{"silent", "after"}) {
		t.Fatalf("empty text must not reach the engine, talks = %v", talker.talks)
	}
}

func TestTalkErrorAdvances(t *testing.T) {
	s := New(&fakeTalker{fail: map[string]error{"bad": errors.New("engine down")}})
	var rec recorder
	rec.speak(s, "bad", false)
	rec.speak(s, "good", false)

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	want := []string{"start:good", "end:good"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestPlayErrorFiresNoCallbacks(t *testing.T) {
	s := New(&fakeTalker{})
	var rec recorder
	rec.speak(s, "unplayable", false)
	rec.speak(s, "next", false)

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	want := []string{"start:next", "end:next"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestForceDropsQueueAndCurrent(t *testing.T) {
	s := New(&fakeTalker{})
	var rec recorder
	rec.speak(s, "hold-a", false)
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	rec.speak(s, "hold-b", false)
	rec.speak(s, "c", true)

	waitFor(t, func() bool { return len(rec.snapshot()) == 4 })
	waitIdle(t, s)
	want := []string{"start:hold-a", "end:hold-a", "start:c", "end:c"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestCancelWhileSynthesizing(t *testing.T) {
	talker := &fakeTalker{block: map[string]bool{"slow": true}}
	s := New(talker)
	var rec recorder
	rec.speak(s, "slow", false)
	waitFor(t, func() bool {
		talker.mu.Lock()
		defer talker.mu.Unlock()
		return len(talker.talks) == 1
	})

	s.CancelSpeak()
	waitIdle(t, s)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("canceled synthesis must not play, events = %v", got)
	}
	if s.Speaking() {
		t.Fatalf("expected idle")
	}
}

func TestTalkOptionsFromSpeech(t *testing.T) {
	talker := &fakeTalker{}
	s := New(talker)
	rate, volume := 1.5, 0.25
	s.SpeakText(speech.Speech{Text: "x", Rate: &rate, Volume: &volume, MaxTime: time.Second}, nil, nil, false, nil)
	waitFor(t, func() bool {
		talker.mu.Lock()
		defer talker.mu.Unlock()
		return len(talker.opts) == 1
	})
	waitIdle(t, s)

	talker.mu.Lock()
	defer talker.mu.Unlock()
	got := talker.opts[0]
	if got.Speed != 1.5 || got.Volume != 0.25 || got.Pitch != 1 || got.MaxTime != time.Second {
		t.Fatalf("unexpected options %+v", got)
	}
}
