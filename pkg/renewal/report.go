package renewal

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sw33tLie/ghrenew/pkg/entitlement"
	"github.com/sw33tLie/ghrenew/pkg/notify"
	"github.com/sw33tLie/ghrenew/pkg/panel"
)

// Report describes one run.
type Report struct {
	Outcome Outcome

	ServerID   string
	ServerName string
	Status     entitlement.LifecycleStatus

	BeforeHours int
	BeforeKnown bool
	AfterHours  int
	AfterKnown  bool
	Attempts    int
	PollState   PollState

	CooldownMinutes int
	CooldownText    string // button text when the page reported the cooldown

	ActionOK bool

	// ProviderMessage is shown in reports. It prefers the renew reply and
	// falls back to what the contract endpoint said.
	ProviderMessage string
	Coins           *float64
	EgressIP        string

	Err         error
	DeliveryErr error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// absorb copies what a fresh snapshot knows about the server into r.
func (r *Report) absorb(s entitlement.Snapshot) {
	r.ServerName = s.Name(r.ServerName)
	if s.Status != "" && s.Status != entitlement.StatusUnknown {
		r.Status = s.Status
	}
	if s.Coins != nil {
		r.Coins = s.Coins
	}
	if s.ProviderMessage != "" && r.ProviderMessage == "" {
		r.ProviderMessage = s.ProviderMessage
	}
}

func (r *Report) beforeText() string {
	if !r.BeforeKnown {
		return "unknown"
	}
	return fmt.Sprintf("%dh", r.BeforeHours)
}

// remainingText is the best known remaining time for reports where the
// renewal did not add any.
func (r *Report) remainingText() string {
	switch {
	case r.BeforeKnown:
		return fmt.Sprintf("%dh", r.BeforeHours)
	case r.AfterKnown:
		return fmt.Sprintf("%dh", r.AfterHours)
	default:
		return "unknown"
	}
}

// FailureClass names the kind of run-level error.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, panel.ErrTargetNotFound):
		return "target not found"
	case errors.Is(err, panel.ErrAmbiguousTarget):
		return "ambiguous target"
	case errors.Is(err, panel.ErrUnexpectedResponse):
		return "unexpected panel response"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Message turns the report into the ordered fields the sinks render.
func (r *Report) Message() notify.Message {
	name := notify.Field{Icon: "📛", Label: "Server", Value: r.ServerName}
	id := notify.Field{Icon: "🆔", Label: "ID", Value: r.ServerID, Code: true}
	icon, label := r.Status.Display()
	status := notify.Field{Icon: "🚀", Label: "Status", Value: icon + " " + label}
	tip := r.ProviderMessage
	if tip == "" {
		tip = "no message"
	}

	var fields []notify.Field
	switch r.Outcome {
	case OutcomeCooldown:
		wait := r.CooldownText
		if r.CooldownMinutes > 0 {
			wait = fmt.Sprintf("%d min", r.CooldownMinutes)
		}
		fields = []notify.Field{
			name, id,
			{Icon: "⏳", Label: "Cooldown", Value: wait},
			{Icon: "📊", Label: "Accumulated", Value: r.beforeText()},
			status,
		}
	case OutcomeSuccess:
		fields = []notify.Field{
			name, id,
			{Icon: "⏰", Label: "Extended", Value: fmt.Sprintf("%d ➔ %dh", r.BeforeHours, r.AfterHours)},
			status,
		}
		if r.Coins != nil {
			fields = append(fields, notify.Field{Icon: "🪙", Label: "Coins", Value: strconv.FormatFloat(*r.Coins, 'f', -1, 64)})
		}
		fields = append(fields, notify.Field{Icon: "💡", Label: "Message", Value: tip})
	case OutcomeMaxedOut:
		fields = []notify.Field{
			name, id,
			{Icon: "⏰", Label: "Remaining", Value: fmt.Sprintf("%dh", r.AfterHours)},
			status,
			{Icon: "💡", Label: "Message", Value: tip},
		}
	case OutcomeFailed:
		fields = []notify.Field{
			name, id, status,
			{Icon: "⏰", Label: "Remaining", Value: r.remainingText()},
			{Icon: "🔁", Label: "Polls", Value: strconv.Itoa(r.Attempts)},
			{Icon: "💡", Label: "Message", Value: tip},
		}
	default:
		errText := "unknown error"
		if r.Err != nil {
			errText = truncate(r.Err.Error(), 100)
		}
		fields = []notify.Field{
			name,
			{Icon: "❌", Label: "Failure", Value: errText, Code: true},
			{Icon: "🧭", Label: "Class", Value: FailureClass(r.Err)},
		}
	}

	if r.EgressIP != "" {
		fields = append(fields, notify.Field{Icon: "🌐", Label: "Egress IP", Value: r.EgressIP, Code: true})
	}

	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	kind := notify.Kind(r.Outcome)
	if r.Outcome == "" {
		kind = notify.KindError
	}
	return notify.Message{Kind: kind, Fields: fields, At: at}
}
