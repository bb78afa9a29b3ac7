package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sw33tLie/ghrenew/pkg/entitlement"
)

var pollNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func expiresIn(hours int) entitlement.Snapshot {
	// half an hour of slack so flooring lands on hours
	t := pollNow.Add(time.Duration(hours)*time.Hour + 30*time.Minute)
	return entitlement.Snapshot{NextRenewalAt: &t}
}

type step struct {
	snap entitlement.Snapshot
	err  error
}

func scripted(steps ...step) (FetchFunc, *int) {
	calls := 0
	return func(context.Context) (entitlement.Snapshot, error) {
		s := steps[len(steps)-1]
		if calls < len(steps) {
			s = steps[calls]
		}
		calls++
		return s.snap, s.err
	}, &calls
}

func testPoller(attempts int, slept *[]time.Duration) Poller {
	return Poller{
		MaxAttempts: attempts,
		Interval:    3 * time.Second,
		Sleep:       func(d time.Duration) { *slept = append(*slept, d) },
		Now:         func() time.Time { return pollNow },
	}
}

func TestConfirmImprovesOnLastAttempt(t *testing.T) {
	var slept []time.Duration
	fetch, calls := scripted(
		step{snap: expiresIn(60)},
		step{snap: expiresIn(60)},
		step{snap: expiresIn(60)},
		step{snap: expiresIn(60)},
		step{snap: expiresIn(65)},
		step{snap: expiresIn(99)},
	)

	c := testPoller(5, &slept).Confirm(context.Background(), fetch, 60)

	assert.Equal(t, Improved, c.State)
	assert.Equal(t, 65, c.AfterHours)
	assert.Equal(t, 5, c.Attempts)
	assert.Equal(t, 5, *calls, "no sixth fetch")
	assert.True(t, c.Observed)
	assert.Len(t, slept, 5)
	assert.Equal(t, 3*time.Second, slept[0])
}

func TestConfirmStopsAtFirstImprovement(t *testing.T) {
	var slept []time.Duration
	fetch, calls := scripted(step{snap: expiresIn(40)}, step{snap: expiresIn(64)})

	c := testPoller(5, &slept).Confirm(context.Background(), fetch, 40)

	assert.Equal(t, Improved, c.State)
	assert.Equal(t, 64, c.AfterHours)
	assert.Equal(t, 2, *calls)
}

func TestConfirmExhaustsWithLastValue(t *testing.T) {
	var slept []time.Duration
	fetch, calls := scripted(step{snap: expiresIn(70)}, step{snap: expiresIn(69)})

	c := testPoller(4, &slept).Confirm(context.Background(), fetch, 70)

	assert.Equal(t, Exhausted, c.State)
	assert.Equal(t, 69, c.AfterHours)
	assert.Equal(t, 4, c.Attempts)
	assert.Equal(t, 4, *calls)
}

func TestConfirmToleratesErrorsAndUnknowns(t *testing.T) {
	var slept []time.Duration
	fetch, calls := scripted(
		step{err: errors.New("timeout")},
		step{snap: entitlement.Snapshot{}},
		step{err: errors.New("timeout")},
	)

	c := testPoller(3, &slept).Confirm(context.Background(), fetch, 33)

	assert.Equal(t, Exhausted, c.State)
	assert.Equal(t, 33, c.AfterHours, "baseline when nothing was observed")
	assert.False(t, c.Observed)
	assert.Equal(t, 3, *calls)
}

func TestConfirmRecoversAfterError(t *testing.T) {
	var slept []time.Duration
	fetch, _ := scripted(
		step{err: errors.New("502")},
		step{snap: expiresIn(80)},
	)

	c := testPoller(5, &slept).Confirm(context.Background(), fetch, 10)

	assert.Equal(t, Improved, c.State)
	assert.Equal(t, 80, c.AfterHours)
	assert.Equal(t, 2, c.Attempts)
}

func TestObserveStopsAtFirstKnownValue(t *testing.T) {
	var slept []time.Duration
	fetch, calls := scripted(
		step{err: errors.New("timeout")},
		step{snap: entitlement.Snapshot{}},
		step{snap: expiresIn(115)},
		step{snap: expiresIn(118)},
	)

	c := testPoller(5, &slept).Observe(context.Background(), fetch)

	assert.Equal(t, Exhausted, c.State, "nothing to compare against")
	assert.Equal(t, 115, c.AfterHours)
	assert.True(t, c.Observed)
	assert.Equal(t, 3, c.Attempts)
	assert.Equal(t, 3, *calls)
}

func TestObserveWithoutReadings(t *testing.T) {
	var slept []time.Duration
	fetch, _ := scripted(step{snap: entitlement.Snapshot{}})

	c := testPoller(4, &slept).Observe(context.Background(), fetch)

	assert.Equal(t, Exhausted, c.State)
	assert.False(t, c.Observed)
	assert.Equal(t, 0, c.AfterHours)
	assert.Equal(t, 4, c.Attempts)
}
