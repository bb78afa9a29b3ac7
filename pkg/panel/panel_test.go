package panel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/ghrenew/pkg/entitlement"
	"github.com/sw33tLie/ghrenew/pkg/transport"
)

// fakeTransport answers calls from a table keyed by "METHOD path" and keeps
// a passive log the test can seed.
type fakeTransport struct {
	replies map[string]transport.Exchange
	errs    map[string]error
	log     []transport.Exchange // newest first
	calls   []string
}

func (f *fakeTransport) Call(_ context.Context, method, path string) (transport.Exchange, error) {
	key := method + " " + path
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return transport.Exchange{}, err
	}
	ex, ok := f.replies[key]
	if !ok {
		ex = transport.Exchange{StatusCode: 404, ContentType: "text/html", Body: []byte("<html><title>Not Found</title></html>")}
	}
	ex.URL = "https://greathost.es" + path
	ex.Method = method
	return ex, nil
}

func (f *fakeTransport) RecentExchanges(limit int) []transport.Exchange {
	if limit > 0 && limit < len(f.log) {
		return f.log[:limit]
	}
	return f.log
}

func (f *fakeTransport) Close() error { return nil }

func jsonReply(body string) transport.Exchange {
	return transport.Exchange{StatusCode: 200, ContentType: "application/json", Body: []byte(body)}
}

func TestListServers(t *testing.T) {
	ft := &fakeTransport{replies: map[string]transport.Exchange{
		"GET /api/servers": jsonReply(`{"servers":[{"id":"s1","name":"loveMC","status":"running"}]}`),
	}}
	servers, err := NewClient(ft, 0, nil).ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "s1", servers[0].ID)
}

func TestListServersUnexpected(t *testing.T) {
	ft := &fakeTransport{replies: map[string]transport.Exchange{
		"GET /api/servers": {StatusCode: 302, ContentType: "text/html", Body: []byte("<html><title>Login</title></html>")},
	}}
	_, err := NewClient(ft, 0, nil).ListServers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedResponse))
	assert.Contains(t, err.Error(), "Login")
}

func TestSnapshotMergesEndpoints(t *testing.T) {
	ft := &fakeTransport{replies: map[string]transport.Exchange{
		"GET /api/servers/s1/information": jsonReply(`{"status":"stopped","name":"loveMC"}`),
		"GET /api/renewal/contracts/s1":   jsonReply(`{"contract":{"renewalInfo":{"nextRenewalDate":"2025-01-06T10:00:00.000Z","lastRenewalDate":"2025-01-05T09:00:00.000Z"}}}`),
	}}
	snap, err := NewClient(ft, 0, nil).Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.ID)
	assert.Equal(t, "loveMC", snap.DisplayName)
	assert.Equal(t, entitlement.StatusStopped, snap.Status)
	assert.NotNil(t, snap.NextRenewalAt)
	assert.NotNil(t, snap.LastRenewalAt)
}

func TestSnapshotFallsBackToRecentTraffic(t *testing.T) {
	ft := &fakeTransport{
		replies: map[string]transport.Exchange{
			"GET /api/servers/s1/information": jsonReply(`{"status":"running"}`),
			"GET /api/renewal/contracts/s1":   {StatusCode: 200, ContentType: "text/html", Body: []byte("<html><title>Dashboard</title></html>")},
		},
		log: []transport.Exchange{
			{URL: "https://greathost.es/api/renewal/contracts/s1", Method: "GET", ContentType: "application/json", Body: []byte(`{"renewalInfo":{"nextRenewalDate":"2025-01-08T00:00:00Z"}}`)},
		},
	}
	snap, err := NewClient(ft, 5, nil).Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, snap.NextRenewalAt)
	assert.Equal(t, 8, snap.NextRenewalAt.Day())
	assert.Equal(t, entitlement.StatusRunning, snap.Status)
}

func TestSnapshotUnknownIsNotAnError(t *testing.T) {
	ft := &fakeTransport{}
	snap, err := NewClient(ft, 0, nil).Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, snap.NextRenewalAt)
	assert.Nil(t, snap.LastRenewalAt)
	assert.Equal(t, entitlement.StatusUnknown, snap.Status)
}

func TestSnapshotTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	ft := &fakeTransport{errs: map[string]error{"GET /api/servers/s1/information": boom}}
	_, err := NewClient(ft, 0, nil).Snapshot(context.Background(), "s1")
	assert.ErrorIs(t, err, boom)
}

func TestRenew(t *testing.T) {
	ft := &fakeTransport{replies: map[string]transport.Exchange{
		"POST /api/renewal/contracts/s1/renew-free": jsonReply(`{"success":false,"message":"Maximum reached"}`),
	}}
	res, err := NewClient(ft, 0, nil).Renew(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, res.Parsed)
	assert.False(t, res.Success)
	assert.Equal(t, "Maximum reached", res.Message)
	assert.Equal(t, []string{"POST /api/renewal/contracts/s1/renew-free"}, ft.calls)
}

func TestRenewFallsBackToRecentTraffic(t *testing.T) {
	ft := &fakeTransport{
		replies: map[string]transport.Exchange{
			"POST /api/renewal/contracts/s1/renew-free": {StatusCode: 200, ContentType: "text/html", Body: []byte("<html></html>")},
		},
		log: []transport.Exchange{
			{URL: "https://greathost.es/api/renewal/contracts/s1/renew-free", Method: "POST", ContentType: "application/json", Body: []byte(`{"success":true,"message":"Renewed"}`)},
		},
	}
	res, err := NewClient(ft, 0, nil).Renew(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Renewed", res.Message)
}

func TestContractPage(t *testing.T) {
	ft := &fakeTransport{replies: map[string]transport.Exchange{
		"GET /contracts/s1": {StatusCode: 200, ContentType: "text/html", Body: []byte(`<button id="renew-free-server-btn">Wait 12 min</button>`)},
	}}
	c := NewClient(ft, 0, nil)
	hint, err := c.ContractPage(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, hint.Waiting)
	assert.Equal(t, 12, hint.WaitMinutes)

	_, err = c.ContractPage(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
}
