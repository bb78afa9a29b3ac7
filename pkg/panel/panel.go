// Package panel knows the GreatHost endpoints and turns their responses into
// entitlement values.
package panel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sw33tLie/ghrenew/pkg/entitlement"
	"github.com/sw33tLie/ghrenew/pkg/transport"
)

var ErrUnexpectedResponse = errors.New("unexpected panel response")

const DefaultFallbackWindow = 20

// Logger is satisfied by logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

type Client struct {
	t              transport.Transport
	fallbackWindow int
	log            Logger
}

func NewClient(t transport.Transport, fallbackWindow int, log Logger) *Client {
	if fallbackWindow <= 0 {
		fallbackWindow = DefaultFallbackWindow
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Client{t: t, fallbackWindow: fallbackWindow, log: log}
}

func serversPath() string {
	return "/api/servers"
}

func informationPath(id string) string {
	return "/api/servers/" + id + "/information"
}

func contractPath(id string) string {
	return "/api/renewal/contracts/" + id
}

func renewPath(id string) string {
	return "/api/renewal/contracts/" + id + "/renew-free"
}

func contractPagePath(id string) string {
	return "/contracts/" + id
}

// fetch calls path and normalizes the reply, falling back to the transport's
// recent traffic when the direct reply is unusable.
func (c *Client) fetch(ctx context.Context, path string, m entitlement.Match) (entitlement.Normalized, error) {
	ex, err := c.t.Call(ctx, http.MethodGet, path)
	if err != nil {
		return entitlement.Normalized{}, err
	}
	n := entitlement.Normalize(ex)
	if n.OK() && m.Wants(n.Kind) {
		return n, nil
	}

	c.log.Debugf("GET %s not usable (%s), scanning last %d exchanges", path, n.Reason, c.fallbackWindow)
	if found, ok := entitlement.ScanRecent(c.t.RecentExchanges(c.fallbackWindow), m); ok {
		c.log.Debugf("Recovered %s from recent traffic", path)
		return found, nil
	}
	return n, nil
}

func (c *Client) ListServers(ctx context.Context) ([]entitlement.ServerSummary, error) {
	n, err := c.fetch(ctx, serversPath(), entitlement.Match{
		PathContains: serversPath(),
		Method:       http.MethodGet,
		Kinds:        []entitlement.Kind{entitlement.Listing},
	})
	if err != nil {
		return nil, err
	}
	if n.Kind != entitlement.Listing {
		return nil, fmt.Errorf("%w: server list: %s", ErrUnexpectedResponse, n.Reason)
	}
	return n.Servers, nil
}

// Snapshot combines the server information and renewal contract endpoints.
// Unreadable replies leave the matching fields unknown; only transport
// failures are returned as errors.
func (c *Client) Snapshot(ctx context.Context, id string) (entitlement.Snapshot, error) {
	info, err := c.fetch(ctx, informationPath(id), entitlement.Match{
		ResourceID:   id,
		PathContains: "/information",
		Method:       http.MethodGet,
		Kinds:        []entitlement.Kind{entitlement.Partial, entitlement.Complete},
	})
	if err != nil {
		return entitlement.Snapshot{}, err
	}
	if !info.OK() {
		c.log.Warnf("Server information for %s unreadable: %s", id, info.Reason)
	}

	contract, err := c.fetch(ctx, contractPath(id), entitlement.Match{
		ResourceID:   id,
		PathContains: "/renewal/contracts/",
		Method:       http.MethodGet,
		Kinds:        []entitlement.Kind{entitlement.Complete, entitlement.Partial},
	})
	if err != nil {
		return entitlement.Snapshot{}, err
	}
	if !contract.OK() {
		c.log.Warnf("Renewal contract for %s unreadable: %s", id, contract.Reason)
	}

	snap := contract.Snapshot.Merge(info.Snapshot)
	snap.ID = id
	if snap.Status == "" {
		snap.Status = entitlement.StatusUnknown
	}
	return snap, nil
}

// Renew submits the free renewal. The reply is informational only.
func (c *Client) Renew(ctx context.Context, id string) (entitlement.ActionResult, error) {
	ex, err := c.t.Call(ctx, http.MethodPost, renewPath(id))
	if err != nil {
		return entitlement.ActionResult{}, err
	}
	res := entitlement.NormalizeAction(ex)
	if res.Parsed {
		return res, nil
	}

	if found, ok := entitlement.ScanRecentAction(c.t.RecentExchanges(c.fallbackWindow), entitlement.Match{
		ResourceID:   id,
		PathContains: "/renew-free",
		Method:       http.MethodPost,
	}); ok {
		return found, nil
	}
	return res, nil
}

// ContractPage reads the renew button and hour counter off the contract page.
func (c *Client) ContractPage(ctx context.Context, id string) (entitlement.PageHint, error) {
	ex, err := c.t.Call(ctx, http.MethodGet, contractPagePath(id))
	if err != nil {
		return entitlement.PageHint{}, err
	}
	hint, ok := entitlement.ParseContractPage(ex.Body)
	if !ok {
		return entitlement.PageHint{}, fmt.Errorf("%w: contract page has no renewal widgets (status %d)", ErrUnexpectedResponse, ex.StatusCode)
	}
	return hint, nil
}
