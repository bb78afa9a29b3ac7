package transport

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrLoginFailed = errors.New("login failed")

// Exchange is a single request/response pair as seen by a transport.
type Exchange struct {
	URL         string
	Method      string
	StatusCode  int
	ContentType string
	Body        []byte
	ObservedAt  time.Time
}

// IsJSON reports whether the declared content type is JSON.
func (e Exchange) IsJSON() bool {
	ct := strings.ToLower(e.ContentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

// Credentials carries the panel login.
type Credentials struct {
	Email    string
	Password string
}

// Transport executes authenticated calls against the panel. Implementations
// also keep a short log of the exchanges they observed so callers can
// recover API bodies that the primary channel lost.
type Transport interface {
	// Call issues method against path (relative to the panel base URL),
	// asking for JSON where the endpoint supports it.
	Call(ctx context.Context, method, path string) (Exchange, error)
	// RecentExchanges returns at most limit exchanges, newest first.
	RecentExchanges(limit int) []Exchange
	Close() error
}

func joinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
