package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/ghrenew/pkg/entitlement"
	"github.com/sw33tLie/ghrenew/pkg/panel"
)

// statusCmd reads the renewal state without renewing.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the target server's remaining time and cooldown without renewing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRenewalConfig()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx := cmd.Context()

		sess, err := openSession(ctx, cfg.FallbackWindow)
		if err != nil {
			return err
		}
		defer sess.Close()

		servers, err := sess.panel.ListServers(ctx)
		if err != nil {
			return err
		}
		target, err := panel.ResolveTarget(servers, cfg.TargetID, cfg.TargetName)
		if err != nil {
			return err
		}
		snap, err := sess.panel.Snapshot(ctx, target.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		loc := reportLocation()
		icon, label := snap.Status.Display()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Server:\t%s\n", snap.Name(target.Name))
		fmt.Fprintf(w, "ID:\t%s\n", target.ID)
		fmt.Fprintf(w, "Status:\t%s %s\n", icon, label)
		if hours, ok := entitlement.RemainingHours(now, snap.NextRenewalAt); ok {
			fmt.Fprintf(w, "Remaining:\t%dh (expires %s)\n", hours, snap.NextRenewalAt.In(loc).Format(time.RFC3339))
		} else {
			fmt.Fprintf(w, "Remaining:\tunknown\n")
		}
		if snap.LastRenewalAt != nil {
			fmt.Fprintf(w, "Last renewal:\t%s\n", snap.LastRenewalAt.In(loc).Format(time.RFC3339))
		}
		if gate := entitlement.EvaluateCooldown(snap, cfg.Cooldown, now); gate.Blocked {
			fmt.Fprintf(w, "Cooldown:\t%d min left\n", gate.RemainingMinutes)
		} else {
			fmt.Fprintf(w, "Cooldown:\tclear\n")
		}
		if cfg.InspectPage {
			if hint, err := sess.panel.ContractPage(ctx, target.ID); err == nil {
				fmt.Fprintf(w, "Renew button:\t%s\n", hint.ButtonText)
			}
		}
		if snap.Coins != nil {
			fmt.Fprintf(w, "Coins:\t%g\n", *snap.Coins)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
