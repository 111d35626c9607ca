// Package cli provides the command-line interface for the predictor.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stock-predictor/internal/analysis/categorize"
	"stock-predictor/internal/analysis/sentiment"
	apperrors "stock-predictor/internal/errors"
	"stock-predictor/internal/models"
	"stock-predictor/internal/pipeline"
	"stock-predictor/internal/store"
)

// addAnalysisCommands adds the analysis pipeline commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newScoreCmd(app))
	rootCmd.AddCommand(newTopCmd(app))
	rootCmd.AddCommand(newCorrelationsCmd(app))
	rootCmd.AddCommand(newEventsCmd(app))
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [ticker]",
		Short: "Run the analysis pipeline for a stock",
		Long: `Run the full analysis pipeline for a stock.

The pipeline categorizes unanalyzed news events, scores their sentiment,
recomputes event-price correlations, and updates the predictability score.
A stage failure degrades the run to PARTIAL; later stages continue on the
last stored results.`,
		Example: `  predictor analyze RELIANCE
  predictor analyze RELIANCE --skip-events
  predictor analyze --all --workers 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if app.Orchestrator == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("orchestrator not available")
			}

			skipEvents, _ := cmd.Flags().GetBool("skip-events")
			skipCorrelations, _ := cmd.Flags().GetBool("skip-correlations")
			skipPredictability, _ := cmd.Flags().GetBool("skip-predictability")
			all, _ := cmd.Flags().GetBool("all")
			workers, _ := cmd.Flags().GetInt("workers")

			opts := pipeline.RunOptions{
				UpdateEvents:         !skipEvents,
				UpdateCorrelations:   !skipCorrelations,
				UpdatePredictability: !skipPredictability,
			}

			if all {
				if len(args) > 0 {
					return fmt.Errorf("cannot combine --all with a ticker")
				}
				return runBatchAnalysis(cmd.Context(), app, output, workers, opts)
			}

			if len(args) == 0 {
				return fmt.Errorf("ticker argument or --all required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			ticker := strings.ToUpper(args[0])
			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			result, err := app.Orchestrator.Run(ctx, stock.ID, opts)
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			displayRun(output, result)
			return nil
		},
	}

	cmd.Flags().Bool("skip-events", false, "Skip event categorization and sentiment")
	cmd.Flags().Bool("skip-correlations", false, "Skip correlation recomputation")
	cmd.Flags().Bool("skip-predictability", false, "Skip predictability scoring")
	cmd.Flags().Bool("all", false, "Analyze every active stock")
	cmd.Flags().Int("workers", 0, "Concurrent workers for --all (default: config batch_workers)")

	return cmd
}

func runBatchAnalysis(ctx context.Context, app *App, output *Output, workers int, opts pipeline.RunOptions) error {
	if workers <= 0 {
		workers = app.Config.Analysis.BatchWorkers
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	batch, err := app.Orchestrator.RunAll(ctx, workers, opts)
	if err != nil {
		output.Error("Batch analysis failed: %v", err)
		return err
	}

	if output.IsJSON() {
		return output.JSON(batch)
	}

	fmt.Println()
	color.Cyan("Batch Analysis")
	output.Printf("  Stocks:    %d\n", batch.Total)
	output.Printf("  Succeeded: %s\n", output.Green(strconv.Itoa(batch.Succeeded)))
	output.Printf("  Partial:   %s\n", output.Yellow(strconv.Itoa(batch.Partial)))
	output.Printf("  Failed:    %s\n", output.Red(strconv.Itoa(batch.Failed)))
	output.Printf("  Elapsed:   %s\n", FormatDuration(batch.Elapsed))

	if batch.Failed > 0 || batch.Partial > 0 {
		output.Println()
		table := NewTable(output, "TICKER", "STATUS", "ERROR")
		for _, res := range batch.Results {
			if res.Status == models.RunSuccess {
				continue
			}
			table.AddRow(res.Ticker, output.StatusText(res.Status), TruncateString(res.Error, 60))
		}
		table.Render()
	}

	return nil
}

func displayRun(output *Output, result *models.AnalysisRunResult) {
	fmt.Println()
	color.Cyan("Analysis - %s", result.Ticker)
	output.Printf("  Status:   %s\n", output.StatusText(result.Status))
	output.Printf("  Elapsed:  %s\n", FormatDuration(result.Duration()))
	if result.Error != "" {
		output.Printf("  Error:    %s\n", output.Red(result.Error))
	}
	output.Println()

	if len(result.Stages) > 0 {
		table := NewTable(output, "STAGE", "STATUS", "DETAIL")
		for _, stage := range result.Stages {
			detail := stageDetail(result, stage)
			table.AddRow(stageName(stage.Stage), output.StatusText(stage.Status), detail)
		}
		table.Render()
		output.Println()
	}

	if result.Predictability != nil {
		displayScore(output, result.Ticker, result.Predictability)
	}
}

func stageName(stage models.RunStage) string {
	switch stage {
	case models.StageEvents:
		return "Event analysis"
	case models.StageCorrelations:
		return "Correlation"
	case models.StagePredictability:
		return "Scoring"
	}
	return string(stage)
}

func stageDetail(result *models.AnalysisRunResult, stage models.StageResult) string {
	if stage.Error != "" {
		return TruncateString(stage.Error, 50)
	}
	switch stage.Stage {
	case models.StageEvents:
		return fmt.Sprintf("%d events analyzed", result.EventsAnalyzed)
	case models.StageCorrelations:
		return fmt.Sprintf("%d category records", result.Correlations)
	case models.StagePredictability:
		if result.Predictability != nil {
			return fmt.Sprintf("overall %d/100", result.Predictability.OverallScore)
		}
	}
	return ""
}

func newScoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <ticker>",
		Short: "Show or recompute a stock's predictability score",
		Long: `Show the current predictability score for a stock.

With --refresh the score is recomputed from stored events and correlations
without touching the earlier pipeline stages.`,
		Example: `  predictor score RELIANCE
  predictor score RELIANCE --refresh
  predictor score RELIANCE --history 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if app.Orchestrator == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("orchestrator not available")
			}

			ticker := strings.ToUpper(args[0])
			refresh, _ := cmd.Flags().GetBool("refresh")
			lookback, _ := cmd.Flags().GetInt("lookback")
			history, _ := cmd.Flags().GetInt("history")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			var record *models.PredictabilityRecord
			if refresh {
				record, err = app.Orchestrator.ScoreStock(ctx, stock.ID, lookback)
				if err != nil {
					output.Error("Scoring failed: %v", err)
					return err
				}
			} else {
				record, err = app.Store.GetCurrentPredictability(ctx, stock.ID)
				if err != nil {
					output.Error("Failed to load score: %v", err)
					return err
				}
				if record == nil {
					output.Warning("No score yet for %s. Run 'predictor analyze %s' first.", ticker, ticker)
					return nil
				}
			}

			if output.IsJSON() {
				return output.JSON(record)
			}

			displayScore(output, ticker, record)

			if history > 0 {
				records, err := app.Store.GetPredictabilityHistory(ctx, stock.ID, history)
				if err != nil {
					output.Warning("Failed to load history: %v", err)
					return nil
				}
				displayScoreHistory(output, records)
			}

			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "Recompute the score from stored analysis results")
	cmd.Flags().Int("lookback", 0, "Lookback window in days for --refresh (default: config lookback_days)")
	cmd.Flags().Int("history", 0, "Also show the last N historical scores")

	return cmd
}

func displayScore(output *Output, ticker string, record *models.PredictabilityRecord) {
	content := []string{
		fmt.Sprintf("Overall:     %s  %s", output.ScoreText(record.OverallScore), ScoreBand(record.OverallScore)),
		"",
		fmt.Sprintf("Information: %3d/100", record.InformationScore),
		fmt.Sprintf("Pattern:     %3d/100", record.PatternScore),
		fmt.Sprintf("Timing:      %3d/100", record.TimingScore),
		fmt.Sprintf("Direction:   %3d/100", record.DirectionScore),
		"",
		fmt.Sprintf("Prediction:  %s, %s over ~%dd", output.DirectionText(record.Prediction.Direction),
			FormatMagnitude(record.Prediction.MagnitudeLow, record.Prediction.MagnitudeHigh),
			record.Prediction.TimingDays),
		fmt.Sprintf("Win Rate:    %s", FormatWinRate(record.Prediction.WinRate, record.SampleSize)),
		fmt.Sprintf("Confidence:  %s", FormatConfidence(record.Confidence)),
	}

	output.Box(fmt.Sprintf("%s Predictability", ticker), content)
	output.Dim("  Calculated: %s", FormatDateTime(record.CalculatedAt))
}

func displayScoreHistory(output *Output, records []models.PredictabilityRecord) {
	if len(records) == 0 {
		return
	}

	output.Println()
	output.Bold("History %s", output.SourceTag(SourceLocal))
	table := NewTable(output, "DATE", "OVERALL", "INFO", "PATTERN", "TIMING", "DIRECTION")
	for _, rec := range records {
		table.AddRow(
			FormatDate(rec.ScoreDate),
			output.ScoreText(rec.OverallScore),
			strconv.Itoa(rec.InformationScore),
			strconv.Itoa(rec.PatternScore),
			strconv.Itoa(rec.TimingScore),
			strconv.Itoa(rec.DirectionScore),
		)
	}
	table.Render()
}

func newTopCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top [limit]",
		Short: "Rank stocks by current predictability score",
		Example: `  predictor top
  predictor top 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			limit := 20
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid limit %q", args[0])
				}
				limit = n
			}

			records, err := app.Store.ListCurrentPredictability(ctx, limit)
			if err != nil {
				output.Error("Failed to list scores: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Warning("No scores yet. Run 'predictor analyze --all' first.")
				return nil
			}

			fmt.Println()
			color.Cyan("Predictability Ranking")
			table := NewTable(output, "#", "TICKER", "SCORE", "BAND", "DIRECTION", "CONF", "DATE")
			for i, rec := range records {
				ticker := tickerForStock(ctx, app.Store, rec.StockID)
				table.AddRow(
					strconv.Itoa(i+1),
					ticker,
					output.ScoreText(rec.OverallScore),
					ScoreBand(rec.OverallScore),
					output.DirectionText(rec.Prediction.Direction),
					FormatConfidence(rec.Confidence),
					FormatDate(rec.ScoreDate),
				)
			}
			table.Render()
			return nil
		},
	}

	return cmd
}

func tickerForStock(ctx context.Context, dataStore store.DataStore, stockID int64) string {
	stock, err := dataStore.GetStock(ctx, stockID)
	if err != nil {
		return fmt.Sprintf("#%d", stockID)
	}
	return stock.Ticker
}

func newCorrelationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlations <ticker>",
		Short: "Show event-price correlations for a stock",
		Long: `Show the per-category event-price correlation records of a stock.

With --refresh the records are recomputed from stored events and prices
before display.`,
		Example: `  predictor correlations RELIANCE
  predictor correlations RELIANCE --refresh --detailed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if app.Orchestrator == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("orchestrator not available")
			}

			ticker := strings.ToUpper(args[0])
			refresh, _ := cmd.Flags().GetBool("refresh")
			detailed, _ := cmd.Flags().GetBool("detailed")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			if refresh {
				count, err := app.Orchestrator.RefreshCorrelations(ctx, stock.ID)
				if err != nil {
					output.Error("Correlation refresh failed: %v", err)
					return err
				}
				if !output.IsJSON() {
					output.Success("✓ Recomputed %d correlation records", count)
				}
			}

			records, err := app.Store.GetCorrelations(ctx, stock.ID)
			if err != nil {
				output.Error("Failed to load correlations: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			if len(records) == 0 {
				output.Warning("No correlations yet for %s. Run 'predictor analyze %s' first.", ticker, ticker)
				return nil
			}

			fmt.Println()
			color.Cyan("Correlations - %s", ticker)
			table := NewTable(output, "CATEGORY", "SAMPLES", "WIN RATE", "AVG MOVE", "DIRECTION", "DAYS", "CONF")
			for _, rec := range records {
				table.AddRow(
					string(rec.Category),
					strconv.Itoa(rec.SampleSize),
					fmt.Sprintf("%.0f%%", rec.WinRate*100),
					output.FormatPercentColored(rec.AvgChangePct),
					output.DirectionText(rec.Direction),
					strconv.Itoa(rec.DaysToMove),
					FormatConfidence(rec.Confidence),
				)
			}
			table.Render()

			if detailed {
				for _, rec := range records {
					displayWindows(output, rec)
				}
			}

			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "Recompute correlations before display")
	cmd.Flags().Bool("detailed", false, "Show per-window statistics")

	return cmd
}

func displayWindows(output *Output, rec models.CorrelationRecord) {
	output.Println()
	output.Bold("%s windows %s", rec.Category, output.SourceTag(SourceCalc))
	table := NewTable(output, "WINDOW", "SAMPLES", "WIN RATE", "AVG MOVE", "CONSISTENCY")
	windows := []struct {
		name  string
		stats models.WindowStats
	}{
		{"same-day", rec.SameDay},
		{"next-day", rec.NextDay},
		{"lagged", rec.Lagged},
	}
	for _, w := range windows {
		table.AddRow(
			w.name,
			strconv.Itoa(w.stats.SampleSize),
			fmt.Sprintf("%.0f%%", w.stats.WinRate*100),
			FormatPercent(w.stats.AvgChangePct),
			fmt.Sprintf("%.2f", w.stats.Consistency),
		)
	}
	table.Render()
}

func newEventsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <ticker>",
		Short: "List analyzed news events for a stock",
		Example: `  predictor events RELIANCE
  predictor events RELIANCE --category earnings --days 90
  predictor events categorize RELIANCE
  predictor events sentiment "Company reports record quarterly profit"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			ticker := strings.ToUpper(args[0])
			category, _ := cmd.Flags().GetString("category")
			days, _ := cmd.Flags().GetInt("days")
			limit, _ := cmd.Flags().GetInt("limit")
			duplicates, _ := cmd.Flags().GetBool("duplicates")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			filter := store.EventFilter{
				StockID:           stock.ID,
				Category:          models.EventCategory(category),
				Limit:             limit,
				IncludeDuplicates: duplicates,
			}
			if days > 0 {
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}

			events, err := app.Store.GetEvents(ctx, filter)
			if err != nil {
				output.Error("Failed to load events: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(events)
			}

			if len(events) == 0 {
				output.Warning("No events stored for %s. Run 'predictor news fetch %s' first.", ticker, ticker)
				return nil
			}

			fmt.Println()
			color.Cyan("Events - %s", ticker)
			table := NewTable(output, "DATE", "CATEGORY", "SENTIMENT", "SCORE", "SOURCE", "HEADLINE")
			for _, event := range events {
				table.AddRow(
					FormatDate(event.EventDate),
					string(event.Category),
					output.SentimentText(event.SentimentCategory),
					fmt.Sprintf("%+.2f", event.SentimentScore),
					event.SourceName,
					TruncateString(event.Headline, 48),
				)
			}
			table.Render()
			output.Println()
			output.SourceLine(SourceNews, "%d stored headlines", len(events))
			return nil
		},
	}

	cmd.Flags().String("category", "", "Filter by event category")
	cmd.Flags().Int("days", 0, "Only events from the last N days")
	cmd.Flags().Int("limit", 50, "Maximum events to list")
	cmd.Flags().Bool("duplicates", false, "Include events flagged as duplicates")

	cmd.AddCommand(newEventsCategorizeCmd(app))
	cmd.AddCommand(newEventsSentimentCmd(app))

	return cmd
}

func newEventsCategorizeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <ticker>",
		Short: "Categorize and score pending events without re-correlating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if app.Orchestrator == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("orchestrator not available")
			}

			ticker := strings.ToUpper(args[0])
			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			result, err := app.Orchestrator.Run(ctx, stock.ID, pipeline.RunOptions{UpdateEvents: true})
			if err != nil {
				output.Error("Event analysis failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			if result.Status == models.RunSuccess {
				output.Success("✓ Analyzed %d events for %s", result.EventsAnalyzed, ticker)
			} else {
				displayRun(output, result)
			}
			return nil
		},
	}
}

func newEventsSentimentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentiment <headline>",
		Short: "Categorize and score a headline without storing it",
		Long: `Run the categorization and sentiment engines over an arbitrary
headline. Nothing is stored; this is a dry run against the same keyword
tables and lexicon the pipeline uses.`,
		Example: `  predictor events sentiment "Company reports record quarterly profit"
  predictor events sentiment "Board announces dividend" --content "Interim dividend of Rs 5 per share..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			headline := strings.Join(args, " ")
			content, _ := cmd.Flags().GetString("content")

			categorization := categorize.New().Categorize(headline, content)
			dual := sentiment.New().AnalyzeHeadlineContent(headline, content)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"category":            categorization.Primary,
					"category_confidence": categorization.Confidence,
					"secondaries":         categorization.Secondaries,
					"sentiment":           dual,
				})
			}

			output.Println()
			output.Bold("%s", TruncateString(headline, 70))
			output.Printf("  Category:   %s (%s)\n", categorization.Primary, FormatConfidence(categorization.Confidence))
			for cat, conf := range categorization.Secondaries {
				output.Dim("              also %s (%s)", cat, FormatConfidence(conf))
			}
			output.Printf("  Sentiment:  %s %+.2f\n", output.SentimentText(dual.Category), dual.Score)
			if content != "" {
				output.Dim("              headline %+.2f, content %+.2f", dual.HeadlineScore, dual.ContentScore)
			}
			return nil
		},
	}

	cmd.Flags().String("content", "", "Article body to score alongside the headline")

	return cmd
}

// describeStockErr reports stock lookup failures with a usable hint.
func describeStockErr(output *Output, ticker string, err error) error {
	if errors.Is(err, apperrors.ErrStockNotFound) {
		output.Error("Stock %s is not tracked. Add it with 'predictor stocks add %s'.", ticker, ticker)
		return err
	}
	output.Error("Failed to load stock %s: %v", ticker, err)
	return err
}
