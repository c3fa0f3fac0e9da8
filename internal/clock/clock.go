// Package clock abstracts wall time so that debounce timers, periodic
// sync triggers and conflict thresholds can be driven from tests.
package clock

import "time"

// Clock is the subset of the time package the client relies on.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f after d. If d <= 0, f runs immediately.
	AfterFunc(d time.Duration, f func()) *Timer
	// NewTicker panics if d <= 0, same as time.NewTicker.
	NewTicker(d time.Duration) *Ticker
}

// Timer отменяемый отложенный вызов
type Timer struct {
	stop func() bool
}

// Stop prevents the timer from firing. Returns false if it already fired
// or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker доставляет тики в канал C
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}

// UnixMilli возвращает текущее время часов в миллисекундах
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}
