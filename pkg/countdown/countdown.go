// Package countdown renders the time left until an event and the event's
// start in the viewer's own zone.
package countdown

import (
	"sync"
	"time"
)

type State int

const (
	Pending State = iota
	Complete
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

type Snapshot struct {
	State     State     `json:"state"`
	Remaining Remaining `json:"remaining"`
}

// Decompose splits d into whole days, hours, minutes and seconds. Partial
// seconds are dropped and negative durations decompose to zero.
func Decompose(d time.Duration) Remaining {
	total := int64(d / time.Second)
	if total <= 0 {
		return Remaining{}
	}

	return Remaining{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// Countdown tracks one target instant. Once a tick observes the target it
// stays Complete, even if a later tick reports an earlier time.
type Countdown struct {
	mu         sync.Mutex
	target     time.Time
	state      State
	onComplete func()
}

type Option func(*Countdown)

// OnComplete registers a callback run once, by the tick that completes the
// countdown.
func OnComplete(fn func()) Option {
	return func(c *Countdown) {
		c.onComplete = fn
	}
}

func New(target time.Time, opts ...Option) *Countdown {
	c := &Countdown{target: target, state: Pending}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Countdown) Target() time.Time {
	return c.target
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Countdown) Tick(now time.Time) Snapshot {
	c.mu.Lock()

	if c.state == Complete {
		c.mu.Unlock()
		return Snapshot{State: Complete}
	}

	if now.Before(c.target) {
		c.mu.Unlock()
		return Snapshot{State: Pending, Remaining: Decompose(c.target.Sub(now))}
	}

	c.state = Complete
	callback := c.onComplete
	c.mu.Unlock()

	if callback != nil {
		callback()
	}

	return Snapshot{State: Complete}
}
