package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/ghrenew/internal/server"
	"github.com/sw33tLie/ghrenew/internal/utils"
	"github.com/sw33tLie/ghrenew/pkg/metrics"
)

// watchCmd keeps renewing the one configured server on a schedule.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Renew the target server on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, _ := cmd.Flags().GetString("schedule")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		runNow, _ := cmd.Flags().GetBool("now")
		user, _ := cmd.Flags().GetString("user")
		pass, _ := cmd.Flags().GetString("pass")

		r, err := newRunner(false)
		if err != nil {
			return err
		}
		defer r.Close()

		job := func() {
			rep, err := r.runOnce(context.Background())
			switch {
			case errors.Is(err, errRunInProgress):
				metrics.SkippedRun()
				utils.Log.Warn("Skipping scheduled run: lock held by another process")
			case err != nil:
				utils.Log.Errorf("Scheduled run failed: %v", err)
			default:
				utils.Log.Infof("Scheduled run finished: %s", rep.Outcome)
			}
		}

		c := cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(utils.Log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(utils.Log)),
		))
		if _, err := c.AddFunc(schedule, job); err != nil {
			return fmt.Errorf("invalid --schedule %q: %w", schedule, err)
		}

		if metricsAddr != "" {
			srv := server.New(r.db, r.cfg.TargetID, user, pass)
			go func() {
				if err := srv.Start(metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					utils.Log.Errorf("Status server stopped: %v", err)
				}
			}()
		}

		if runNow {
			job()
		}

		c.Start()
		utils.Log.Infof("Watching %s on schedule %q", targetLabel(r), schedule)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		utils.Log.Info("Shutting down, waiting for a running renewal to finish...")
		<-c.Stop().Done()
		return nil
	},
}

func targetLabel(r *runner) string {
	if r.cfg.TargetName != "" {
		return r.cfg.TargetName
	}
	return r.cfg.TargetID
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("schedule", "0 */6 * * *", "Cron schedule (5 fields)")
	watchCmd.Flags().String("metrics-addr", "", "Serve /metrics and run history on this address (Example: :9090)")
	watchCmd.Flags().Bool("now", false, "Run once immediately before waiting for the schedule")
	watchCmd.Flags().String("user", "", "Basic auth user for the status server")
	watchCmd.Flags().String("pass", "", "Basic auth password for the status server")
}
