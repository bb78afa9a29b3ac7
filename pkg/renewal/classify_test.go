package renewal

import "testing"

func TestClassify(t *testing.T) {
	c := DefaultConfig().classifier()

	tests := []struct {
		before, after int
		message       string
		actionOK      bool
		want          Outcome
	}{
		{50, 60, "", true, OutcomeSuccess},
		{115, 115, "", true, OutcomeMaxedOut},
		{115, 110, "", true, OutcomeMaxedOut},
		{40, 40, "unexpected token", false, OutcomeFailed},
		{60, 60, "you have reached your limit", true, OutcomeMaxedOut},
		{60, 60, "you have reached your limit", false, OutcomeFailed},
		{60, 60, "Cannot renew: 5-DAY maximum", true, OutcomeMaxedOut},
		{100, 120, "", true, OutcomeSuccess},
		{0, 120, "", false, OutcomeSuccess},
		{120, 96, "", false, OutcomeMaxedOut},
		{90, 121, "", false, OutcomeSuccess},
		{107, 107, "", true, OutcomeFailed},
		{108, 108, "", false, OutcomeMaxedOut},
		{0, 0, "", false, OutcomeFailed},
	}

	for _, tt := range tests {
		got := c.Classify(tt.before, tt.after, tt.message, tt.actionOK)
		if got != tt.want {
			t.Fatalf("Classify(%d, %d, %q, %v) = %s, want %s", tt.before, tt.after, tt.message, tt.actionOK, got, tt.want)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	c := Classifier{CeilingHours: 48, NearCeilingHours: 40, LimitPhrases: []string{"quota"}}

	if got := c.Classify(45, 45, "", true); got != OutcomeMaxedOut {
		t.Fatalf("near ceiling: got %s", got)
	}
	if got := c.Classify(10, 10, "limit", true); got != OutcomeFailed {
		t.Fatalf("default phrase should not apply: got %s", got)
	}
	if got := c.Classify(10, 10, "Quota exceeded", true); got != OutcomeMaxedOut {
		t.Fatalf("custom phrase: got %s", got)
	}
}
