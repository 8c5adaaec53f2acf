package adapter

import "time"

// Clock abstracts time for the session layer, so debounce timers and
// poll tickers can be driven by a controllable source in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a pending callback. Stop reports whether it fired already.
type Timer interface {
	Stop() bool
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTimer struct{ t *time.Timer }

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) Chan() <-chan time.Time {
	return s.t.C
}

func (s systemTicker) Stop() {
	s.t.Stop()
}
