package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sw33tLie/ghrenew/pkg/entitlement"
	"github.com/sw33tLie/ghrenew/pkg/notify"
	"github.com/sw33tLie/ghrenew/pkg/panel"
)

// ErrTransport marks failures talking to the panel.
var ErrTransport = errors.New("panel transport failure")

// Logger abstracts logging so callers can use logrus or anything with the
// same methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Panel is what the engine needs from the hosting panel.
type Panel interface {
	ListServers(ctx context.Context) ([]entitlement.ServerSummary, error)
	Snapshot(ctx context.Context, id string) (entitlement.Snapshot, error)
	Renew(ctx context.Context, id string) (entitlement.ActionResult, error)
}

// PageInspector is implemented by panels that can read the contract page.
type PageInspector interface {
	ContractPage(ctx context.Context, id string) (entitlement.PageHint, error)
}

type Engine struct {
	cfg   Config
	panel Panel
	sink  notify.Sink
	log   Logger

	// Optional hooks, mainly for tests.
	Now      func() time.Time
	Sleep    func(time.Duration)
	EgressIP func(ctx context.Context) (string, error)
}

func NewEngine(cfg Config, p Panel, sink notify.Sink, log Logger) *Engine {
	if log == nil {
		log = nopLogger{}
	}
	return &Engine{cfg: cfg, panel: p, sink: sink, log: log, Now: time.Now, Sleep: time.Sleep}
}

// Run performs one renewal of the configured server and delivers a report.
// Business outcomes are reported with a nil error. Transport and target
// resolution failures are reported as an error report and then returned.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		ServerID:   e.cfg.TargetID,
		ServerName: e.cfg.TargetName,
		Status:     entitlement.StatusUnknown,
		StartedAt:  e.Now(),
	}

	err := e.run(ctx, rep)
	rep.FinishedAt = e.Now()
	if err != nil {
		rep.Outcome = OutcomeError
		rep.Err = err
		e.log.Errorf("Renewal run failed: %v", err)
	}

	if e.EgressIP != nil && rep.Outcome != OutcomeCooldown && rep.Outcome != OutcomeError {
		if ip, ipErr := e.EgressIP(ctx); ipErr != nil {
			e.log.Debugf("Egress IP lookup failed: %v", ipErr)
		} else {
			rep.EgressIP = ip
		}
	}

	if e.sink != nil {
		if dErr := e.sink.Deliver(ctx, rep.Message()); dErr != nil {
			e.log.Warnf("Could not deliver %s report: %v", rep.Outcome, dErr)
			rep.DeliveryErr = dErr
		}
	}
	return rep, err
}

func transportErr(op string, err error) error {
	if errors.Is(err, panel.ErrUnexpectedResponse) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func (e *Engine) run(ctx context.Context, rep *Report) error {
	servers, err := e.panel.ListServers(ctx)
	if err != nil {
		return transportErr("listing servers", err)
	}
	target, err := panel.ResolveTarget(servers, e.cfg.TargetID, e.cfg.TargetName)
	if err != nil {
		return err
	}
	rep.ServerID = target.ID
	if target.Name != "" {
		rep.ServerName = target.Name
	}
	rep.Status = target.Status
	e.log.Infof("Target server: %s (ID: %s)", rep.ServerName, rep.ServerID)

	snap, err := e.panel.Snapshot(ctx, target.ID)
	if err != nil {
		return transportErr("reading renewal state", err)
	}
	rep.absorb(snap)

	now := e.Now()
	before, known := entitlement.RemainingHours(now, snap.NextRenewalAt)
	rep.BeforeHours = before
	rep.BeforeKnown = known

	if gate := entitlement.EvaluateCooldown(snap, e.cfg.Cooldown, now); gate.Blocked {
		e.log.Infof("Still cooling down, %d min left", gate.RemainingMinutes)
		rep.Outcome = OutcomeCooldown
		rep.CooldownMinutes = gate.RemainingMinutes
		return nil
	}

	if e.cfg.InspectPage {
		if stop := e.inspectPage(ctx, rep); stop {
			return nil
		}
	}
	before, known = rep.BeforeHours, rep.BeforeKnown

	action, err := e.panel.Renew(ctx, target.ID)
	if err != nil {
		return transportErr("submitting renewal", err)
	}
	rep.ActionOK = action.Success
	if action.Message != "" {
		rep.ProviderMessage = action.Message
	}
	if action.Snapshot.Coins != nil {
		rep.Coins = action.Snapshot.Coins
	}
	e.log.Infof("Renew response: success=%t message=%q", action.Success, action.Message)

	poller := Poller{
		MaxAttempts: e.cfg.PollAttempts,
		Interval:    e.cfg.PollInterval,
		Sleep:       e.Sleep,
		Now:         e.Now,
		Log:         e.log,
	}
	fetch := func(ctx context.Context) (entitlement.Snapshot, error) {
		s, err := e.panel.Snapshot(ctx, target.ID)
		if err == nil {
			rep.absorb(s)
		}
		return s, err
	}

	var conf Confirmation
	if known {
		conf = poller.Confirm(ctx, fetch, before)
	} else {
		// Without a baseline no reading can count as an extension.
		e.log.Warnf("Remaining time before renewal is unknown, success cannot be confirmed")
		conf = poller.Observe(ctx, fetch)
		before = conf.AfterHours
	}
	rep.AfterHours = conf.AfterHours
	rep.AfterKnown = conf.Observed
	rep.Attempts = conf.Attempts
	rep.PollState = conf.State

	rep.Outcome = e.cfg.classifier().Classify(before, conf.AfterHours, action.Message, action.Success)
	e.log.Infof("Outcome: %s (%s -> %dh after %d polls)", rep.Outcome, rep.beforeText(), conf.AfterHours, conf.Attempts)
	return nil
}

// inspectPage reads the renew button. It reports true when the page shows a
// cooldown and the run should stop there.
func (e *Engine) inspectPage(ctx context.Context, rep *Report) bool {
	inspector, ok := e.panel.(PageInspector)
	if !ok {
		return false
	}
	hint, err := inspector.ContractPage(ctx, rep.ServerID)
	if err != nil {
		e.log.Warnf("Contract page not readable, continuing without it: %v", err)
		return false
	}
	e.log.Debugf("Renew button: %q", hint.ButtonText)
	if !rep.BeforeKnown && hint.HasHours {
		rep.BeforeHours = hint.Hours
		rep.BeforeKnown = true
	}
	if hint.Waiting {
		rep.Outcome = OutcomeCooldown
		rep.CooldownMinutes = hint.WaitMinutes
		rep.CooldownText = hint.ButtonText
		return true
	}
	return false
}
