package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the servers on the account",
	RunE: func(cmd *cobra.Command, args []string) error {
		fallbackWindow := viper.GetInt("renewal.fallback_window")
		sess, err := openSession(cmd.Context(), fallbackWindow)
		if err != nil {
			return err
		}
		defer sess.Close()

		servers, err := sess.panel.ListServers(cmd.Context())
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			fmt.Println("No servers on this account.")
			return nil
		}

		loc := reportLocation()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCREATED\t")
		for _, s := range servers {
			created := "-"
			if s.CreatedAt != nil {
				created = s.CreatedAt.In(loc).Format(time.DateTime)
			}
			icon, label := s.Status.Display()
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t\n", s.ID, s.Name, icon, label, created)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
}
