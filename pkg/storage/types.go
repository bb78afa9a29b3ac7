package storage

import "time"

// Run is one recorded renewal attempt.
type Run struct {
	ID          int64     `json:"id"`
	RanAt       time.Time `json:"ran_at"`
	ServerID    string    `json:"server_id"`
	ServerName  string    `json:"server_name,omitempty"`
	Outcome     string    `json:"outcome"`
	BeforeHours int       `json:"before_hours"`
	AfterHours  int       `json:"after_hours"`
	Attempts    int       `json:"attempts"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

// OutcomeCount is how often an outcome occurred.
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}
