// Package renewal decides whether a free renewal can be attempted, submits
// it, waits for the panel to reflect it and classifies what happened.
package renewal

import (
	"errors"
	"fmt"
	"time"
)

// Config is built once at startup and handed to NewEngine.
type Config struct {
	TargetID   string
	TargetName string

	Cooldown         time.Duration
	CeilingHours     int
	NearCeilingHours int
	LimitPhrases     []string

	PollAttempts   int
	PollInterval   time.Duration
	FallbackWindow int

	// InspectPage consults the contract page's renew button before acting.
	InspectPage bool
}

var DefaultLimitPhrases = []string{"5 d", "5-day", "5 day", "cannot renew", "can't renew", "limit", "maximum"}

func DefaultConfig() Config {
	return Config{
		Cooldown:         30 * time.Minute,
		CeilingHours:     120,
		NearCeilingHours: 108,
		LimitPhrases:     append([]string(nil), DefaultLimitPhrases...),
		PollAttempts:     5,
		PollInterval:     3 * time.Second,
		FallbackWindow:   20,
		InspectPage:      true,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.TargetID == "" && c.TargetName == "" {
		errs = append(errs, errors.New("either a target id or a target name is required"))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown))
	}
	if c.CeilingHours <= 0 {
		errs = append(errs, fmt.Errorf("ceiling hours must be positive, got %d", c.CeilingHours))
	}
	if c.NearCeilingHours <= 0 || c.NearCeilingHours > c.CeilingHours {
		errs = append(errs, fmt.Errorf("near-ceiling hours must be in (0, %d], got %d", c.CeilingHours, c.NearCeilingHours))
	}
	if c.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("poll attempts must be positive, got %d", c.PollAttempts))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval))
	}
	return errors.Join(errs...)
}

func (c Config) classifier() Classifier {
	phrases := c.LimitPhrases
	if phrases == nil {
		phrases = DefaultLimitPhrases
	}
	return Classifier{
		CeilingHours:     c.CeilingHours,
		NearCeilingHours: c.NearCeilingHours,
		LimitPhrases:     phrases,
	}
}
