package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/sw33tLie/ghrenew/internal/utils"
	"github.com/sw33tLie/ghrenew/pkg/metrics"
	"github.com/sw33tLie/ghrenew/pkg/notify"
	"github.com/sw33tLie/ghrenew/pkg/renewal"
	"github.com/sw33tLie/ghrenew/pkg/storage"
)

var errRunInProgress = errors.New("another renewal of this server is in progress")

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// runner holds what stays the same across scheduled runs.
type runner struct {
	cfg  renewal.Config
	sink notify.Sink
	db   *storage.DB // nil when history is off
	wait bool        // wait for the run lock instead of skipping
}

// runOnce logs in, runs the engine and records the result. Login failures
// are reported the same way the engine reports its own run-level errors.
func (r *runner) runOnce(ctx context.Context) (*renewal.Report, error) {
	lockKey := r.cfg.TargetID
	if lockKey == "" {
		lockKey = r.cfg.TargetName
	}
	lock, err := utils.NewRunLock(viper.GetString("lock.dir"), lockKey)
	if err != nil {
		return nil, err
	}
	if r.wait {
		if err := lock.Lock(); err != nil {
			return nil, err
		}
	} else {
		locked, err := lock.TryLock()
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, errRunInProgress
		}
	}
	defer lock.Unlock()

	started := time.Now()
	var rep *renewal.Report
	sess, err := openSession(ctx, r.cfg.FallbackWindow)
	if err != nil {
		rep = &renewal.Report{
			Outcome:    renewal.OutcomeError,
			ServerID:   r.cfg.TargetID,
			ServerName: r.cfg.TargetName,
			Err:        err,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		utils.Log.Errorf("Could not open a panel session: %v", err)
		if dErr := r.sink.Deliver(ctx, rep.Message()); dErr != nil {
			utils.Log.Warnf("Could not deliver error report: %v", dErr)
		}
	} else {
		defer sess.Close()
		engine := renewal.NewEngine(r.cfg, sess.panel, r.sink, utils.Log)
		engine.EgressIP = sess.egressIP
		rep, err = engine.Run(ctx)
	}

	r.record(ctx, rep)
	return rep, err
}

func (r *runner) record(ctx context.Context, rep *renewal.Report) {
	hours := rep.AfterHours
	if rep.BeforeKnown && (rep.Outcome == renewal.OutcomeCooldown || rep.Outcome == renewal.OutcomeFailed) {
		hours = rep.BeforeHours
	}
	metrics.ObserveRun(string(rep.Outcome), rep.ServerID, hours, rep.Duration(), rep.FinishedAt)

	if r.db == nil {
		return
	}
	run := storage.Run{
		RanAt:       rep.StartedAt,
		ServerID:    rep.ServerID,
		ServerName:  rep.ServerName,
		Outcome:     string(rep.Outcome),
		BeforeHours: rep.BeforeHours,
		AfterHours:  rep.AfterHours,
		Attempts:    rep.Attempts,
		Message:     rep.ProviderMessage,
		DurationMS:  rep.Duration().Milliseconds(),
	}
	if rep.Err != nil {
		run.Error = rep.Err.Error()
	}
	if _, err := r.db.RecordRun(ctx, run); err != nil {
		utils.Log.Warnf("Could not record run: %v", err)
	}
}

func newRunner(wait bool) (*runner, error) {
	cfg, err := loadRenewalConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	sink, err := buildSink()
	if err != nil {
		return nil, err
	}
	db, err := openHistory()
	if err != nil {
		utils.Log.Warnf("Run history disabled: %v", err)
		db = nil
	}
	return &runner{cfg: cfg, sink: sink, db: db, wait: wait}, nil
}

func (r *runner) Close() error {
	return r.db.Close()
}
