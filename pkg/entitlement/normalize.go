package entitlement

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sw33tLie/ghrenew/pkg/transport"
	"github.com/sw33tLie/ghrenew/pkg/whttp"
	"github.com/tidwall/gjson"
)

type Kind int

const (
	Unparseable Kind = iota
	Partial          // recognizable, but carries no renewal dates
	Complete         // carries a next-renewal timestamp
	Listing          // server list
)

func (k Kind) String() string {
	switch k {
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	case Listing:
		return "listing"
	default:
		return "unparseable"
	}
}

// Normalized is the result of reading one exchange.
type Normalized struct {
	Kind     Kind
	Snapshot Snapshot
	Servers  []ServerSummary
	Reason   string // set when Kind is Unparseable
}

func (n Normalized) OK() bool {
	return n.Kind != Unparseable
}

var recognizedKeys = []string{"contract", "renewalInfo", "details", "servers", "message", "status", "nextRenewalDate"}

// payloadKeys are the keys that make a "success": false body worth reading.
var payloadKeys = []string{"contract", "renewalInfo", "details", "servers", "status"}

// Contract fields appear either nested or at the top level depending on the
// endpoint, so each field is looked up under these prefixes in order.
var contractPrefixes = []string{"contract.renewalInfo.", "renewalInfo.", "details.", "contract.", ""}

func unparseable(format string, args ...interface{}) Normalized {
	return Normalized{Kind: Unparseable, Reason: fmt.Sprintf(format, args...)}
}

// parseBody returns the parsed body, or a reason it is unusable.
func parseBody(ex transport.Exchange) (gjson.Result, string) {
	body := bytes.TrimSpace(ex.Body)
	if len(body) == 0 {
		return gjson.Result{}, fmt.Sprintf("empty body (status %d)", ex.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		if title, ok := whttp.GetHTMLTitle(string(body)); ok && bytes.HasPrefix(body, []byte("<")) {
			return gjson.Result{}, fmt.Sprintf("HTML page %q (status %d)", title, ex.StatusCode)
		}
		return gjson.Result{}, fmt.Sprintf("not JSON (status %d, %s)", ex.StatusCode, ex.ContentType)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() && !root.IsArray() {
		return gjson.Result{}, "JSON scalar"
	}
	if len(root.Array()) == 0 && root.IsArray() {
		return gjson.Result{}, "empty array"
	}
	if root.IsObject() && len(root.Map()) == 0 {
		return gjson.Result{}, "empty object"
	}
	return root, ""
}

// Normalize reads one exchange. It never fails; unusable input comes back as
// Unparseable with a reason.
func Normalize(ex transport.Exchange) Normalized {
	root, reason := parseBody(ex)
	if reason != "" {
		return unparseable("%s", reason)
	}

	if root.IsArray() {
		servers := readServers(root)
		if len(servers) == 0 {
			return unparseable("array without server entries")
		}
		return Normalized{Kind: Listing, Servers: servers}
	}

	if !hasAny(root, recognizedKeys) {
		return unparseable("unrecognized shape")
	}
	if success := root.Get("success"); success.Exists() && !success.Bool() && !hasAny(root, payloadKeys) {
		return unparseable("error marker: %s", root.Get("message").String())
	}

	if servers := root.Get("servers"); servers.IsArray() {
		return Normalized{Kind: Listing, Servers: readServers(servers)}
	}

	snap := readSnapshot(root)
	kind := Partial
	if lookup(root, "nextRenewalDate").Exists() {
		kind = Complete
	}
	return Normalized{Kind: kind, Snapshot: snap}
}

// NormalizeAction reads the renew endpoint's reply. Unlike Normalize it keeps
// "success": false bodies, since their message feeds the classifier.
func NormalizeAction(ex transport.Exchange) ActionResult {
	root, reason := parseBody(ex)
	if reason != "" || !root.IsObject() {
		return ActionResult{Message: reason}
	}
	return ActionResult{
		Parsed:   true,
		Success:  root.Get("success").Bool(),
		Message:  root.Get("message").String(),
		Snapshot: readSnapshot(root),
	}
}

func hasAny(root gjson.Result, keys []string) bool {
	for _, k := range keys {
		if root.Get(k).Exists() {
			return true
		}
	}
	return false
}

// lookup returns the first existing value of field under contractPrefixes.
func lookup(root gjson.Result, field string) gjson.Result {
	for _, p := range contractPrefixes {
		if v := root.Get(p + field); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(root gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := root.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func readSnapshot(root gjson.Result) Snapshot {
	snap := Snapshot{
		ID:              firstString(root, "contract.serverId", "contract.server.id", "server.id", "serverId", "id"),
		DisplayName:     firstString(root, "contract.serverName", "contract.server.name", "server.name", "serverName", "name"),
		Status:          ParseStatus(firstString(root, "status", "server.status", "contract.server.status", "information.status")),
		NextRenewalAt:   ParseTimestampPtr(lookup(root, "nextRenewalDate").String()),
		LastRenewalAt:   ParseTimestampPtr(lookup(root, "lastRenewalDate").String()),
		ProviderMessage: root.Get("message").String(),
	}
	for _, field := range []string{"coins", "credits"} {
		if v := lookup(root, field); v.Type == gjson.Number {
			c := v.Float()
			snap.Coins = &c
			break
		}
	}
	return snap
}

func readServers(list gjson.Result) []ServerSummary {
	var out []ServerSummary
	list.ForEach(func(_, s gjson.Result) bool {
		id := s.Get("id").String()
		if id == "" {
			return true
		}
		out = append(out, ServerSummary{
			ID:        id,
			Name:      s.Get("name").String(),
			Status:    ParseStatus(s.Get("status").String()),
			CreatedAt: ParseTimestampPtr(firstString(s, "createdAt", "created_at")),
		})
		return true
	})
	return out
}

// Match selects which observed exchanges are relevant to a resource.
type Match struct {
	ResourceID   string
	PathContains string
	Method       string
	Kinds        []Kind // any usable kind when empty
}

// Wants reports whether k is one of the kinds m asks for.
func (m Match) Wants(k Kind) bool {
	if len(m.Kinds) == 0 {
		return k != Unparseable
	}
	for _, want := range m.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

func (m Match) accepts(ex transport.Exchange) bool {
	if m.ResourceID != "" && !hasPathSegment(ex.URL, m.ResourceID) {
		return false
	}
	if m.PathContains != "" && !strings.Contains(ex.URL, m.PathContains) {
		return false
	}
	if m.Method != "" && !strings.EqualFold(ex.Method, m.Method) {
		return false
	}
	return true
}

// hasPathSegment reports whether seg appears in rawURL as a whole path
// segment.
func hasPathSegment(rawURL, seg string) bool {
	needle := "/" + seg
	for rest := rawURL; ; {
		i := strings.Index(rest, needle)
		if i < 0 {
			return false
		}
		rest = rest[i+len(needle):]
		if rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#' {
			return true
		}
	}
}

// ScanRecent looks through observed exchanges (newest first) for one that
// normalizes. Exchanges declared as JSON are tried before bodies that merely
// look like a JSON object.
func ScanRecent(exchanges []transport.Exchange, m Match) (Normalized, bool) {
	for _, ex := range exchanges {
		if !m.accepts(ex) || !ex.IsJSON() {
			continue
		}
		if n := Normalize(ex); m.Wants(n.Kind) {
			return n, true
		}
	}
	for _, ex := range exchanges {
		if !m.accepts(ex) || ex.IsJSON() {
			continue
		}
		if !bytes.HasPrefix(bytes.TrimSpace(ex.Body), []byte("{")) {
			continue
		}
		if n := Normalize(ex); m.Wants(n.Kind) {
			return n, true
		}
	}
	return Normalized{Kind: Unparseable, Reason: "no usable exchange in recent traffic"}, false
}

// ScanRecentAction is ScanRecent for renew replies.
func ScanRecentAction(exchanges []transport.Exchange, m Match) (ActionResult, bool) {
	for _, ex := range exchanges {
		if !m.accepts(ex) {
			continue
		}
		if res := NormalizeAction(ex); res.Parsed {
			return res, true
		}
	}
	return ActionResult{}, false
}
