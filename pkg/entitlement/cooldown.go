package entitlement

import (
	"math"
	"time"
)

// Gate is the cooldown decision for one snapshot.
type Gate struct {
	Blocked          bool
	RemainingMinutes int
}

// EvaluateCooldown decides whether a renewal right now would fall inside the
// provider's cooldown window. Missing or unreadable data never blocks, and
// neither does a window of zero or less.
func EvaluateCooldown(s Snapshot, cooldown time.Duration, now time.Time) Gate {
	if cooldown <= 0 {
		return Gate{}
	}
	elapsed, ok := ElapsedMinutes(now, s.LastRenewalAt)
	if !ok {
		return Gate{}
	}
	window := cooldown.Minutes()
	if elapsed >= window {
		return Gate{}
	}
	remaining := int(math.Ceil(window - elapsed))
	if limit := int(math.Ceil(window)); remaining > limit {
		// last renewal stamped in the future
		remaining = limit
	}
	return Gate{Blocked: true, RemainingMinutes: remaining}
}
