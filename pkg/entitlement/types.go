// Package entitlement turns the panel's loosely shaped responses into a
// single Snapshot and answers time questions about it.
package entitlement

import (
	"strings"
	"time"
)

type LifecycleStatus string

const (
	StatusRunning   LifecycleStatus = "running"
	StatusStarting  LifecycleStatus = "starting"
	StatusStopped   LifecycleStatus = "stopped"
	StatusOffline   LifecycleStatus = "offline"
	StatusSuspended LifecycleStatus = "suspended"
	StatusUnknown   LifecycleStatus = "unknown"
)

// ParseStatus maps a provider status string onto the known set.
func ParseStatus(s string) LifecycleStatus {
	switch st := LifecycleStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusRunning, StatusStarting, StatusStopped, StatusOffline, StatusSuspended:
		return st
	default:
		return StatusUnknown
	}
}

var statusDisplay = map[LifecycleStatus][2]string{
	StatusRunning:   {"🟢", "Running"},
	StatusStarting:  {"🟡", "Starting"},
	StatusStopped:   {"🔴", "Stopped"},
	StatusOffline:   {"⚪", "Offline"},
	StatusSuspended: {"🚫", "Suspended"},
}

// Display returns the icon and label used in reports.
func (s LifecycleStatus) Display() (string, string) {
	if d, ok := statusDisplay[s]; ok {
		return d[0], d[1]
	}
	return "❓", "Unknown"
}

// Snapshot is the canonical entitlement record for one server.
type Snapshot struct {
	ID              string
	DisplayName     string
	Status          LifecycleStatus
	NextRenewalAt   *time.Time
	LastRenewalAt   *time.Time
	ProviderMessage string
	Coins           *float64
}

// Name returns the display name, or fallback when the panel sent none.
func (s Snapshot) Name(fallback string) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return fallback
}

// Merge fills fields of s that are unset with the values from other.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	if s.ID == "" {
		s.ID = other.ID
	}
	if s.DisplayName == "" {
		s.DisplayName = other.DisplayName
	}
	if s.Status == "" || s.Status == StatusUnknown {
		if other.Status != "" {
			s.Status = other.Status
		}
	}
	if s.NextRenewalAt == nil {
		s.NextRenewalAt = other.NextRenewalAt
	}
	if s.LastRenewalAt == nil {
		s.LastRenewalAt = other.LastRenewalAt
	}
	if s.ProviderMessage == "" {
		s.ProviderMessage = other.ProviderMessage
	}
	if s.Coins == nil {
		s.Coins = other.Coins
	}
	return s
}

// ServerSummary is one entry of the server listing.
type ServerSummary struct {
	ID        string
	Name      string
	Status    LifecycleStatus
	CreatedAt *time.Time
}

// ActionResult is what the renew endpoint said about the action itself.
type ActionResult struct {
	Parsed   bool
	Success  bool
	Message  string
	Snapshot Snapshot
}
