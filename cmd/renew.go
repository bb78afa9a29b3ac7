package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/ghrenew/internal/utils"
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew the target server once and report the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		r, err := newRunner(wait)
		if err != nil {
			return err
		}
		defer r.Close()

		rep, err := r.runOnce(cmd.Context())
		if err != nil {
			return err
		}
		utils.Log.Infof("Done: %s for %s in %s", rep.Outcome, rep.ServerName, rep.Duration().Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renewCmd)
	renewCmd.Flags().Bool("wait", false, "Wait for a concurrent run on this server instead of giving up")
}
