package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded renewal runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		stats, _ := cmd.Flags().GetBool("stats")

		db, err := openHistory()
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("run history is disabled (db.path is off)")
		}
		defer db.Close()

		ctx := context.Background()
		if stats {
			counts, err := db.OutcomeCounts(ctx)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "OUTCOME\tRUNS\t")
			total := 0
			for _, c := range counts {
				fmt.Fprintf(w, "%s\t%d\t\n", c.Outcome, c.Count)
				total += c.Count
			}
			fmt.Fprintf(w, "TOTAL\t%d\t\n", total)
			return w.Flush()
		}

		runs, err := db.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		loc := reportLocation()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSERVER\tOUTCOME\tHOURS\tPOLLS\tNOTE")
		for _, r := range runs {
			note := r.Message
			if r.Error != "" {
				note = r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d -> %d\t%d\t%s\n",
				r.RanAt.In(loc).Format(time.DateTime), r.ServerName, r.Outcome,
				r.BeforeHours, r.AfterHours, r.Attempts, note)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().Bool("stats", false, "Show run counts per outcome instead")
}
