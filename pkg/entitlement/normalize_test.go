package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw33tLie/ghrenew/pkg/transport"
)

func jsonExchange(url, body string) transport.Exchange {
	return transport.Exchange{URL: url, Method: "GET", StatusCode: 200, ContentType: "application/json; charset=utf-8", Body: []byte(body)}
}

func htmlExchange(url, body string) transport.Exchange {
	return transport.Exchange{URL: url, Method: "GET", StatusCode: 200, ContentType: "text/html; charset=UTF-8", Body: []byte(body)}
}

func TestNormalizeContractShapes(t *testing.T) {
	next := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	last := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

	nested := `{"contract":{"serverId":"abc","renewalInfo":{"nextRenewalDate":"2025-01-06T10:00:00.000000Z","lastRenewalDate":"2025-01-05T09:00:00Z"}}}`
	flat := `{"serverId":"abc","nextRenewalDate":"2025-01-06T10:00:00Z","lastRenewalDate":"2025-01-05T09:00:00.0Z"}`
	renewalInfo := `{"renewalInfo":{"nextRenewalDate":"2025-01-06T10:00:00.000Z","lastRenewalDate":"2025-01-05T09:00:00.000Z"},"serverId":"abc"}`

	for name, body := range map[string]string{"nested": nested, "flat": flat, "renewalInfo": renewalInfo} {
		n := Normalize(jsonExchange("https://greathost.es/api/renewal/contracts/abc", body))
		require.Equal(t, Complete, n.Kind, name)
		require.NotNil(t, n.Snapshot.NextRenewalAt, name)
		require.NotNil(t, n.Snapshot.LastRenewalAt, name)
		assert.True(t, n.Snapshot.NextRenewalAt.Equal(next), name)
		assert.True(t, n.Snapshot.LastRenewalAt.Equal(last), name)
		assert.Equal(t, "abc", n.Snapshot.ID, name)
	}
}

func TestNormalizePartialAndCoins(t *testing.T) {
	n := Normalize(jsonExchange("/api/servers/abc/information", `{"status":"Running","name":"loveMC","coins":12.5}`))
	require.Equal(t, Partial, n.Kind)
	assert.Equal(t, StatusRunning, n.Snapshot.Status)
	assert.Equal(t, "loveMC", n.Snapshot.DisplayName)
	require.NotNil(t, n.Snapshot.Coins)
	assert.Equal(t, 12.5, *n.Snapshot.Coins)
	assert.Nil(t, n.Snapshot.NextRenewalAt)
}

func TestNormalizeListing(t *testing.T) {
	wrapped := `{"servers":[{"id":"1","name":"loveMC","status":"running","createdAt":"2024-12-01T00:00:00.000Z"},{"id":"2","name":"other","status":"weird"}]}`
	n := Normalize(jsonExchange("/api/servers", wrapped))
	require.Equal(t, Listing, n.Kind)
	require.Len(t, n.Servers, 2)
	assert.Equal(t, "loveMC", n.Servers[0].Name)
	assert.NotNil(t, n.Servers[0].CreatedAt)
	assert.Equal(t, StatusUnknown, n.Servers[1].Status)
	assert.Nil(t, n.Servers[1].CreatedAt)

	bare := Normalize(jsonExchange("/api/servers", `[{"id":"9","name":"solo"}]`))
	require.Equal(t, Listing, bare.Kind)
	assert.Equal(t, "9", bare.Servers[0].ID)
}

func TestNormalizeUnparseable(t *testing.T) {
	tests := []struct {
		name   string
		ex     transport.Exchange
		reason string
	}{
		{"empty body", jsonExchange("/x", "  "), "empty body"},
		{"html page", htmlExchange("/x", "<html><head><title>Just a moment...</title></head></html>"), "Just a moment..."},
		{"plain text", htmlExchange("/x", "Internal Server Error"), "not JSON"},
		{"scalar", jsonExchange("/x", `"ok"`), "scalar"},
		{"empty object", jsonExchange("/x", `{}`), "empty object"},
		{"empty array", jsonExchange("/x", `[]`), "empty array"},
		{"unknown keys", jsonExchange("/x", `{"foo":1}`), "unrecognized"},
		{"error marker", jsonExchange("/x", `{"success":false,"message":"Unauthenticated."}`), "Unauthenticated."},
		{"array without ids", jsonExchange("/x", `[{"name":"x"}]`), "array"},
	}

	for _, tt := range tests {
		n := Normalize(tt.ex)
		assert.Equal(t, Unparseable, n.Kind, tt.name)
		assert.False(t, n.OK(), tt.name)
		assert.Contains(t, n.Reason, tt.reason, tt.name)
	}
}

func TestNormalizeErrorMarkerWithPayload(t *testing.T) {
	n := Normalize(jsonExchange("/x", `{"success":false,"message":"cooldown","contract":{"renewalInfo":{"lastRenewalDate":"2025-01-05T09:00:00Z"}}}`))
	require.Equal(t, Partial, n.Kind)
	assert.NotNil(t, n.Snapshot.LastRenewalAt)
	assert.Equal(t, "cooldown", n.Snapshot.ProviderMessage)
}

func TestNormalizeAction(t *testing.T) {
	ok := NormalizeAction(jsonExchange("/renew-free", `{"success":true,"message":"Renewed","details":{"nextRenewalDate":"2025-01-07T10:00:00.000Z"}}`))
	assert.True(t, ok.Parsed)
	assert.True(t, ok.Success)
	assert.Equal(t, "Renewed", ok.Message)
	assert.NotNil(t, ok.Snapshot.NextRenewalAt)

	refused := NormalizeAction(jsonExchange("/renew-free", `{"success":false,"message":"You can't renew for more than 5 days"}`))
	assert.True(t, refused.Parsed)
	assert.False(t, refused.Success)
	assert.Contains(t, refused.Message, "5 days")

	broken := NormalizeAction(htmlExchange("/renew-free", "<html><title>419 Page Expired</title></html>"))
	assert.False(t, broken.Parsed)
	assert.False(t, broken.Success)
}

func TestScanRecentRecoversSwallowedBody(t *testing.T) {
	primary := htmlExchange("https://greathost.es/api/renewal/contracts/abc", "<html><title>Dashboard</title></html>")
	require.False(t, Normalize(primary).OK())

	// newest first
	log := []transport.Exchange{
		htmlExchange("https://greathost.es/contracts/abc", "<html></html>"),
		jsonExchange("https://greathost.es/api/renewal/contracts/zzz", `{"nextRenewalDate":"2025-01-01T00:00:00Z"}`),
		jsonExchange("https://greathost.es/api/renewal/contracts/abc", `{"contract":{"renewalInfo":{"nextRenewalDate":"2025-01-09T00:00:00.000Z"}}}`),
		jsonExchange("https://greathost.es/api/renewal/contracts/abc", `{"contract":{"renewalInfo":{"nextRenewalDate":"2024-12-01T00:00:00.000Z"}}}`),
	}

	n, ok := ScanRecent(log, Match{ResourceID: "abc", PathContains: "/renewal/contracts/", Method: "GET"})
	require.True(t, ok)
	require.Equal(t, Complete, n.Kind)
	assert.True(t, n.Snapshot.NextRenewalAt.Equal(time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)))
}

func TestScanRecentPrefersDeclaredJSON(t *testing.T) {
	log := []transport.Exchange{
		htmlExchange("/api/renewal/contracts/abc", `  {"nextRenewalDate":"2025-02-01T00:00:00Z"}`),
		jsonExchange("/api/renewal/contracts/abc", `{"nextRenewalDate":"2025-03-01T00:00:00Z"}`),
	}
	n, ok := ScanRecent(log, Match{ResourceID: "abc"})
	require.True(t, ok)
	assert.Equal(t, time.March, n.Snapshot.NextRenewalAt.Month())

	// Without a JSON candidate the object-looking body is accepted.
	n, ok = ScanRecent(log[:1], Match{ResourceID: "abc"})
	require.True(t, ok)
	assert.Equal(t, time.February, n.Snapshot.NextRenewalAt.Month())
}

func TestScanRecentFilters(t *testing.T) {
	log := []transport.Exchange{
		{URL: "/api/renewal/contracts/abc/renew-free", Method: "POST", ContentType: "application/json", Body: []byte(`{"success":true,"message":"done"}`)},
		jsonExchange("/api/servers", `{"servers":[{"id":"abc"}]}`),
	}

	_, ok := ScanRecent(log, Match{ResourceID: "abc", Method: "GET", Kinds: []Kind{Complete, Partial}})
	assert.False(t, ok, "listing and POST must not satisfy a contract match")

	n, ok := ScanRecent(log, Match{PathContains: "/api/servers", Kinds: []Kind{Listing}})
	require.True(t, ok)
	assert.Equal(t, Listing, n.Kind)

	res, ok := ScanRecentAction(log, Match{ResourceID: "abc", PathContains: "/renew-free", Method: "POST"})
	require.True(t, ok)
	assert.Equal(t, "done", res.Message)

	_, ok = ScanRecent(nil, Match{ResourceID: "abc"})
	assert.False(t, ok)
}

func TestScanRecentMatchesWholeIDSegment(t *testing.T) {
	log := []transport.Exchange{
		jsonExchange("/api/renewal/contracts/123", `{"nextRenewalDate":"2025-01-09T00:00:00Z"}`),
		jsonExchange("/api/servers/123/information", `{"nextRenewalDate":"2025-01-09T00:00:00Z"}`),
	}
	_, ok := ScanRecent(log, Match{ResourceID: "12"})
	assert.False(t, ok, "id 12 must not match id 123")

	log = append(log, jsonExchange("/api/renewal/contracts/12?fresh=1", `{"nextRenewalDate":"2025-02-09T00:00:00Z"}`))
	n, ok := ScanRecent(log, Match{ResourceID: "12"})
	require.True(t, ok)
	assert.Equal(t, time.February, n.Snapshot.NextRenewalAt.Month())
}

func TestHasPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		seg  string
		want bool
	}{
		{"/api/renewal/contracts/12", "12", true},
		{"/api/servers/12/information", "12", true},
		{"/api/renewal/contracts/12?x=1", "12", true},
		{"/api/renewal/contracts/12#top", "12", true},
		{"/api/renewal/contracts/123", "12", false},
		{"/api/renewal/contracts/x12", "12", false},
		{"/api/123/servers/12", "12", true},
		{"https://greathost.es/api/servers", "12", false},
	}
	for _, tt := range tests {
		if got := hasPathSegment(tt.url, tt.seg); got != tt.want {
			t.Fatalf("hasPathSegment(%q, %q) = %t, want %t", tt.url, tt.seg, got, tt.want)
		}
	}
}
