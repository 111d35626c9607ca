// Package cli provides the command-line interface for the predictor.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stock-predictor/internal/marketdata"
	"stock-predictor/internal/schedule"
)

// addScheduleCommands adds the background job commands.
func addScheduleCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Background data and analysis jobs",
	}

	cmd.AddCommand(newScheduleRunCmd(app))
	cmd.AddCommand(newScheduleStatusCmd(app))
	cmd.AddCommand(newScheduleTriggerCmd(app))

	rootCmd.AddCommand(cmd)
}

// newScheduler wires the scheduler from whatever sources are configured.
// Missing sources stay nil so their jobs report a clear error when fired;
// the concrete pointers must not be assigned to the interfaces directly or
// a nil Kite source would arrive as a non-nil interface.
func newScheduler(app *App) (*schedule.Scheduler, error) {
	var prices marketdata.PriceSource
	if app.Kite != nil {
		prices = app.Kite
	}
	var news marketdata.NewsSource
	if app.News != nil {
		news = app.News
	}
	return schedule.New(app.Store, prices, news, app.Orchestrator, app.Config, app.Logger)
}

func newScheduleRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler in the foreground",
		Long: `Run the job scheduler until interrupted.

Jobs fire on the cron specs from the [schedule] config section: price
append, news fetch, daily analysis, and weekly correlation refresh.
Sources that are not configured leave their jobs failing with a clear
error instead of blocking the rest.`,
		Example: `  predictor schedule run
  predictor schedule run --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			sched, err := newScheduler(app)
			if err != nil {
				output.Error("Failed to build scheduler: %v", err)
				return err
			}

			if err := sched.Start(); err != nil {
				output.Error("Failed to start scheduler: %v", err)
				return err
			}

			color.Cyan("Scheduler")
			fmt.Println()
			displayJobTable(output, sched.Statuses())
			output.Println()
			if app.Kite == nil {
				output.Warning("Kite not configured; the prices job will fail until 'predictor auth login'.")
			}
			if app.News == nil {
				output.Warning("No news sources configured; the news job will fail.")
			}
			output.Info("Running. Press Ctrl+C to stop.")

			<-cmd.Context().Done()

			output.Println()
			output.Info("Stopping, waiting for running jobs...")
			sched.Stop()
			output.Success("✓ Scheduler stopped")
			return nil
		},
	}
}

func newScheduleStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job schedules and last successful runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			cfg := app.Config
			jobs := []struct {
				name string
				spec string
			}{
				{schedule.JobPrices, cfg.Schedule.PriceAppendSpec},
				{schedule.JobNews, cfg.Schedule.NewsFetchSpec},
				{schedule.JobAnalysis, cfg.Schedule.DailyAnalysis},
				{schedule.JobCorrelations, cfg.Schedule.WeeklyCorrelate},
			}

			if output.IsJSON() {
				type jobStatus struct {
					Job         string     `json:"job"`
					Spec        string     `json:"spec"`
					LastSuccess *time.Time `json:"last_success,omitempty"`
				}
				statuses := make([]jobStatus, 0, len(jobs))
				for _, j := range jobs {
					js := jobStatus{Job: j.name, Spec: j.spec}
					if last := app.Store.GetLastSync(j.name); !last.IsZero() {
						js.LastSuccess = &last
					}
					statuses = append(statuses, js)
				}
				return output.JSON(statuses)
			}

			color.Cyan("Scheduled Jobs")
			fmt.Println()

			table := NewTable(output, "JOB", "SCHEDULE", "LAST SUCCESS")
			for _, j := range jobs {
				table.AddRow(j.name, j.spec, syncAgeText(output, app.Store.GetLastSync(j.name)))
			}
			table.Render()

			output.Println()
			output.Dim("Run jobs continuously with 'predictor schedule run'.")
			return nil
		},
	}
}

func newScheduleTriggerCmd(app *App) *cobra.Command {
	jobNames := []string{
		schedule.JobPrices,
		schedule.JobNews,
		schedule.JobAnalysis,
		schedule.JobCorrelations,
	}

	return &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Run a scheduled job once, immediately",
		Example:   "  predictor schedule trigger prices",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			name := strings.ToLower(strings.TrimSpace(args[0]))
			sched, err := newScheduler(app)
			if err != nil {
				output.Error("Failed to build scheduler: %v", err)
				return err
			}

			output.Info("Running job %s...", name)
			start := time.Now()
			if err := sched.Trigger(ctx, name); err != nil {
				output.Error("Job %s failed: %v", name, err)
				return err
			}

			output.Success("✓ Job %s finished in %s", name, FormatDuration(time.Since(start)))
			return nil
		},
	}
}

func displayJobTable(output *Output, statuses []schedule.JobStatus) {
	table := NewTable(output, "JOB", "SCHEDULE", "NEXT RUN")
	for _, s := range statuses {
		next := "-"
		if !s.NextRun.IsZero() {
			next = FormatDateTime(s.NextRun)
		}
		table.AddRow(s.Name, s.Spec, next)
	}
	table.Render()
}
