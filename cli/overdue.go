package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func newOverdueCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Scheduled overdue reporting",
	}
	cmd.AddCommand(newOverdueWatchCmd(app))
	return cmd
}

func newOverdueWatchCmd(app *App) *cobra.Command {
	var (
		days     int
		schedule string
		runNow   bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report overdue loans on a cron schedule until interrupted (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = app.Config.Overdue.Days
			}
			if schedule == "" {
				schedule = app.Config.Overdue.Schedule
			}

			w, err := library.NewOverdueWatcher(app.lm, schedule, days, app.reportOverdue)
			if err != nil {
				return err
			}
			if runNow {
				if _, err := w.RunNow(cmd.Context()); err != nil {
					return err
				}
			}
			if err := w.Start(cmd.Context()); err != nil {
				return err
			}
			if next := w.NextRun(); next != nil {
				fmt.Fprintf(app.Out, "Watching for loans open more than %d days (%s). Next check %s.\n",
					days, schedule, next.Format("2006-01-02 15:04"))
			}

			<-cmd.Context().Done()
			w.Stop()
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "age in days after which an open loan is overdue (default from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default from config)")
	cmd.Flags().BoolVar(&runNow, "now", false, "run one check immediately before waiting")
	return cmd
}

func (a *App) reportOverdue(_ context.Context, loans []*library.Loan) error {
	if a.jsonOutput {
		return printJSON(a.Out, loans)
	}
	if len(loans) == 0 {
		fmt.Fprintln(a.Out, "No overdue loans.")
		return nil
	}
	fmt.Fprintf(a.Out, "%d overdue loan(s):\n", len(loans))
	printLoans(a.Out, loans)
	return nil
}
