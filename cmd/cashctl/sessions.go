package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func unreconciledCmd() *cobra.Command {
	var maxAge int
	cmd := &cobra.Command{
		Use:   "unreconciled",
		Short: "List closed sessions waiting for reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			var age *int
			if cmd.Flags().Changed("max-age-days") {
				age = &maxAge
			}
			sessions, err := b.recon.GetUnreconciledSessions(context.Background(), age)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no unreconciled sessions")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tCOLLECTOR\tOPENED\tEXPECTED\tCOUNTED\tDISCREPANCY\tAPPROVED")
			for _, s := range sessions {
				expected, counted, diff := "-", "-", "-"
				if s.ExpectedBalance != nil {
					expected = s.ExpectedBalance.StringFixed(2)
				}
				if s.ClosingBalance != nil {
					counted = s.ClosingBalance.StringFixed(2)
				}
				if s.Discrepancy != nil {
					diff = s.Discrepancy.StringFixed(2)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					s.ID, s.CollectorID, s.OpenedAt.In(b.loc).Format("2006-01-02 15:04"),
					expected, counted, diff, s.IsApproved())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&maxAge, "max-age-days", 0, "only sessions opened within the last N days")
	return cmd
}
