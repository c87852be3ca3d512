package examsession

import (
	"fmt"
	"time"
)

// Countdown is the exam timer. It only moves down, floors at zero and reports
// expiry on exactly one tick.
type Countdown struct {
	total     int
	remaining int
	fired     bool
}

// NewCountdown starts a countdown at total seconds.
func NewCountdown(total int) *Countdown {
	if total < 0 {
		total = 0
	}
	return &Countdown{total: total, remaining: total}
}

// Tick advances the countdown by one second. It returns true only on the tick
// that reaches zero.
func (c *Countdown) Tick() bool {
	if c.remaining == 0 {
		return false
	}
	c.remaining--
	if c.remaining == 0 && !c.fired {
		c.fired = true
		return true
	}
	return false
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int { return c.remaining }

// Total returns the starting duration in seconds.
func (c *Countdown) Total() int { return c.total }

// Expired reports whether the countdown has fired.
func (c *Countdown) Expired() bool { return c.fired }

// FormatClock renders seconds as mm:ss. Minutes are not wrapped into hours.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests substitute a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall-clock implementation of Clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
