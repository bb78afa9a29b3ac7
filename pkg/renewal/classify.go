package renewal

import "strings"

// Outcome names a run's result. The values are also the report kinds.
type Outcome string

const (
	OutcomeSuccess  Outcome = "renew_success"
	OutcomeMaxedOut Outcome = "maxed_out"
	OutcomeFailed   Outcome = "renew_failed"
	OutcomeCooldown Outcome = "cooldown"
	OutcomeError    Outcome = "error"
)

// Classifier infers the renewal result. The panel never says outright that
// the entitlement is at its cap, so the cap is read off the hour values and
// the wording of the provider message.
type Classifier struct {
	CeilingHours     int
	NearCeilingHours int
	LimitPhrases     []string
}

func (c Classifier) Classify(before, after int, message string, actionOK bool) Outcome {
	switch {
	case after > before:
		return OutcomeSuccess
	case before >= c.CeilingHours || after >= c.CeilingHours:
		return OutcomeMaxedOut
	case before >= c.NearCeilingHours && after <= before:
		return OutcomeMaxedOut
	case actionOK && c.mentionsLimit(message):
		return OutcomeMaxedOut
	default:
		return OutcomeFailed
	}
}

func (c Classifier) mentionsLimit(message string) bool {
	msg := strings.ToLower(message)
	for _, p := range c.LimitPhrases {
		if p != "" && strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
