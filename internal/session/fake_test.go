package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quire-dev/quire/internal/adapter"
	"github.com/quire-dev/quire/internal/model"
)

// fakeClock drives session timers deterministically. Advance moves the
// clock and fires every timer that came due, synchronously, in the
// caller's goroutine, so assertions right after Advance see the result.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) adapter.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)

	return t
}

func (c *fakeClock) NewTicker(time.Duration) adapter.Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due, kept []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.claim(now):
			due = append(due, t)
		case !t.done():
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

type fakeTimer struct {
	mu      sync.Mutex
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

// claim marks a pending timer fired when its deadline passed.
func (t *fakeTimer) claim(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired || t.at.After(now) {
		return false
	}
	t.fired = true

	return true
}

func (t *fakeTimer) done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped || t.fired
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true

	return true
}

// fakeTicker never ticks on its own; poll behavior is tested through
// pollOnce and the hint channel.
type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  {}

// stubStore is a gateable PageStore. When enter/release are set, a save
// signals its start on enter and blocks until release closes, which lets
// tests hold a save in flight.
type stubStore struct {
	mu       sync.Mutex
	content  string
	getErr   error
	saveErr  error
	saves    []string
	attempts int

	enter   chan struct{}
	release chan struct{}
}

func (s *stubStore) GetSource(context.Context, model.PageID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return "", s.getErr
	}

	return s.content, nil
}

func (s *stubStore) SaveSource(_ context.Context, _ model.PageID, source string) error {
	s.mu.Lock()
	s.attempts++
	enter, release := s.enter, s.release
	err := s.saveErr
	s.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if release != nil {
		<-release
	}

	if err != nil {
		return err
	}

	s.mu.Lock()
	s.content = source
	s.saves = append(s.saves, source)
	s.mu.Unlock()

	return nil
}

func (s *stubStore) Rename(context.Context, model.PageID, model.PageID) error { return nil }

func (s *stubStore) List(context.Context) ([]model.PageID, error) { return nil, nil }

func (s *stubStore) setContent(src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = src
}

func (s *stubStore) setGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *stubStore) setSaveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *stubStore) setGates(enter, release chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enter, s.release = enter, release
}

func (s *stubStore) saveAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts
}

func (s *stubStore) lastSave() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.saves) == 0 {
		return ""
	}

	return s.saves[len(s.saves)-1]
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.saves)
}

// stubWatcher hands the session a channel the test pushes hints into.
type stubWatcher struct{ ch chan model.PageID }

func (w *stubWatcher) Watch(context.Context) (<-chan model.PageID, error) {
	return w.ch, nil
}

// recorder collects session events for assertions.
type recorder struct{ ch chan model.Event }

func newRecorder() *recorder {
	return &recorder{ch: make(chan model.Event, 32)}
}

func (r *recorder) notify(ev model.Event) { r.ch <- ev }

func (r *recorder) waitFor(t *testing.T, kind model.EventKind) model.Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v event", kind)
		}
	}
}

// assertNo fails when an event of the given kind is already queued.
func (r *recorder) assertNo(t *testing.T, kind model.EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				t.Fatalf("unexpected %v event: %v", kind, ev)
			}
		default:
			return
		}
	}
}
