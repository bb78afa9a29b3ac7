package renewal

import (
	"context"
	"time"

	"github.com/sw33tLie/ghrenew/pkg/entitlement"
)

type PollState int

const (
	Waiting PollState = iota
	Improved
	Exhausted
)

func (s PollState) String() string {
	switch s {
	case Improved:
		return "improved"
	case Exhausted:
		return "exhausted"
	default:
		return "waiting"
	}
}

// FetchFunc returns a fresh snapshot of the renewed server.
type FetchFunc func(ctx context.Context) (entitlement.Snapshot, error)

// Confirmation is the poller's verdict.
type Confirmation struct {
	State      PollState
	AfterHours int
	Observed   bool // at least one attempt produced a known hour value
	Attempts   int
}

// Poller waits for the panel to reflect a renewal. The provider writes the
// new expiry some time after acknowledging the action, so the poller checks a
// bounded number of times at a fixed interval.
type Poller struct {
	MaxAttempts int
	Interval    time.Duration

	Sleep func(time.Duration) // defaults to time.Sleep
	Now   func() time.Time    // defaults to time.Now
	Log   Logger
}

// Confirm polls until the remaining hours exceed beforeHours or the attempt
// budget runs out. Failed fetches and unknown hours count as no improvement.
// It never returns an error.
func (p Poller) Confirm(ctx context.Context, fetch FetchFunc, beforeHours int) Confirmation {
	return p.poll(ctx, fetch, beforeHours, func(hours int) bool { return hours > beforeHours })
}

// Observe is Confirm without a baseline. It stops at the first known hour
// value, and since nothing can be compared against it never reports Improved.
func (p Poller) Observe(ctx context.Context, fetch FetchFunc) Confirmation {
	c := p.poll(ctx, fetch, 0, func(int) bool { return true })
	c.State = Exhausted
	return c
}

func (p Poller) poll(ctx context.Context, fetch FetchFunc, beforeHours int, done func(hours int) bool) Confirmation {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	log := p.Log
	if log == nil {
		log = nopLogger{}
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	c := Confirmation{State: Waiting, AfterHours: beforeHours}
	for c.Attempts < attempts {
		c.Attempts++
		sleep(p.Interval)

		snap, err := fetch(ctx)
		if err != nil {
			log.Warnf("Poll %d/%d failed: %v", c.Attempts, attempts, err)
			continue
		}
		hours, ok := entitlement.RemainingHours(now(), snap.NextRenewalAt)
		if !ok {
			log.Debugf("Poll %d/%d: remaining time unknown", c.Attempts, attempts)
			continue
		}

		c.Observed = true
		c.AfterHours = hours
		log.Debugf("Poll %d/%d: %dh remaining", c.Attempts, attempts, hours)
		if done(hours) {
			c.State = Improved
			return c
		}
	}
	c.State = Exhausted
	return c
}
