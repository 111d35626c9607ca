// Package cli provides the command-line interface for the predictor.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stock-predictor/internal/models"
	"stock-predictor/internal/security"
	"stock-predictor/internal/store"
	"stock-predictor/pkg/utils"
)

// backfillDays is how far back a first price fetch reaches.
const backfillDays = 365

// addStockCommands adds the stock universe commands.
func addStockCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStocksCmd(app))
}

// addDataCommands adds market data commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newNewsCmd(app))
}

func newStocksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "Manage the tracked stock universe",
	}

	cmd.AddCommand(newStocksAddCmd(app))
	cmd.AddCommand(newStocksListCmd(app))
	cmd.AddCommand(newStocksShowCmd(app))
	cmd.AddCommand(newStocksDeactivateCmd(app))

	return cmd
}

func newStocksAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <ticker> <company name>",
		Short: "Add a stock to the tracked universe",
		Example: `  predictor stocks add RELIANCE "Reliance Industries"
  predictor stocks add INFY "Infosys" --market NSE --sector IT`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			ticker := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := security.ValidateTicker(ticker); err != nil {
				output.Error("Invalid ticker: %v", err)
				return err
			}

			market, _ := cmd.Flags().GetString("market")
			market = strings.ToUpper(strings.TrimSpace(market))
			if err := security.ValidateMarket(market); err != nil {
				output.Error("Invalid market: %v", err)
				return err
			}

			sector, _ := cmd.Flags().GetString("sector")
			industry, _ := cmd.Flags().GetString("industry")

			stock := &models.Stock{
				Ticker:      ticker,
				CompanyName: strings.Join(args[1:], " "),
				Market:      models.Market(market),
				Sector:      sector,
				Industry:    industry,
				IsActive:    true,
			}

			if err := app.Store.SaveStock(ctx, stock); err != nil {
				output.Error("Failed to add stock: %v", err)
				output.Dim("If %s is already tracked, use 'predictor stocks show %s'.", ticker, ticker)
				return err
			}

			if output.IsJSON() {
				return output.JSON(stock)
			}

			output.Success("✓ Added %s (%s) on %s", stock.Ticker, stock.CompanyName, stock.Market)
			output.Dim("Fetch data with 'predictor data fetch %s' and 'predictor news fetch %s'.", ticker, ticker)
			return nil
		},
	}

	cmd.Flags().StringP("market", "m", "NSE", "Market (NSE, BSE, NYSE)")
	cmd.Flags().String("sector", "", "Sector classification")
	cmd.Flags().String("industry", "", "Industry classification")

	return cmd
}

func newStocksListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked stocks",
		Example: `  predictor stocks list
  predictor stocks list --market NSE --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			market, _ := cmd.Flags().GetString("market")
			all, _ := cmd.Flags().GetBool("all")

			filter := store.StockFilter{
				Market:     models.Market(strings.ToUpper(market)),
				ActiveOnly: !all,
			}

			stocks, err := app.Store.ListStocks(ctx, filter)
			if err != nil {
				output.Error("Failed to list stocks: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(stocks)
			}

			if len(stocks) == 0 {
				output.Warning("No stocks tracked yet. Add one with 'predictor stocks add'.")
				return nil
			}

			fmt.Println()
			color.Cyan("Tracked Stocks (%d)", len(stocks))
			table := NewTable(output, "TICKER", "COMPANY", "MARKET", "SECTOR", "STATUS", "PRICES", "NEWS")
			for _, stock := range stocks {
				table.AddRow(
					stock.Ticker,
					TruncateString(stock.CompanyName, 28),
					string(stock.Market),
					TruncateString(stock.Sector, 14),
					analysisStatusText(output, stock.AnalysisStatus),
					syncAgeText(output, stock.LastPriceUpdatedAt),
					syncAgeText(output, stock.LastNewsUpdatedAt),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("market", "m", "", "Filter by market (NSE, BSE, NYSE)")
	cmd.Flags().Bool("all", false, "Include deactivated stocks")

	return cmd
}

func newStocksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticker>",
		Short: "Show details for one stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			ticker := strings.ToUpper(args[0])
			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			if output.IsJSON() {
				return output.JSON(stock)
			}

			output.Println()
			output.Bold("%s - %s", stock.Ticker, stock.CompanyName)
			output.Printf("  Market:    %s\n", stock.Market)
			if stock.Sector != "" {
				output.Printf("  Sector:    %s\n", stock.Sector)
			}
			if stock.Industry != "" {
				output.Printf("  Industry:  %s\n", stock.Industry)
			}
			output.Printf("  Active:    %v\n", stock.IsActive)
			output.Printf("  Status:    %s\n", analysisStatusText(output, stock.AnalysisStatus))
			output.Printf("  Prices:    %s\n", syncAgeText(output, stock.LastPriceUpdatedAt))
			output.Printf("  News:      %s\n", syncAgeText(output, stock.LastNewsUpdatedAt))

			record, err := app.Store.GetCurrentPredictability(ctx, stock.ID)
			if err == nil && record != nil {
				output.Println()
				displayScore(output, stock.Ticker, record)
			}
			return nil
		},
	}
}

func newStocksDeactivateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <ticker>",
		Short: "Exclude a stock from batch analysis and scheduled jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}

			ticker := strings.ToUpper(args[0])
			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			stock.IsActive = false
			if err := app.Store.SaveStock(ctx, stock); err != nil {
				output.Error("Failed to deactivate %s: %v", ticker, err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(stock)
			}

			output.Success("✓ Deactivated %s", ticker)
			output.Dim("Historical data and scores are kept; re-add with 'predictor stocks add'.")
			return nil
		},
	}
}

func analysisStatusText(output *Output, status models.AnalysisStatus) string {
	switch status {
	case models.AnalysisCompleted:
		return output.Green(string(status))
	case models.AnalysisProcessing:
		return output.Cyan(string(status))
	case models.AnalysisFailed:
		return output.Red(string(status))
	case models.AnalysisPending:
		return output.Yellow(string(status))
	default:
		return string(status)
	}
}

func syncAgeText(output *Output, at time.Time) string {
	if at.IsZero() {
		return output.DimText("never")
	}
	age := time.Since(at)
	text := FormatDuration(age) + " ago"
	if age > 48*time.Hour {
		return output.Yellow(text)
	}
	return text
}

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage daily price data",
	}

	cmd.AddCommand(newDataFetchCmd(app))
	cmd.AddCommand(newDataShowCmd(app))

	return cmd
}

func newDataFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <ticker>",
		Short: "Fetch and store daily OHLCV bars from Kite",
		Long: `Fetch daily OHLCV bars for a stock from Kite Connect.

Only days newer than the stored data are requested; a first fetch backfills
one year of history.`,
		Example: `  predictor data fetch RELIANCE
  predictor data fetch RELIANCE --days 90`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}
			if app.Kite == nil {
				output.Error("Kite is not configured. Set api_key in credentials.toml and run 'predictor auth login'.")
				return fmt.Errorf("price source not configured")
			}

			ticker := strings.ToUpper(args[0])
			days, _ := cmd.Flags().GetInt("days")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			now := time.Now()
			backfill := backfillDays
			if days > 0 {
				backfill = days
			}

			from := now.AddDate(0, 0, -backfill)
			freshness, err := app.Store.GetPriceFreshness(ctx, stock.ID)
			if err == nil && !freshness.IsZero() && days == 0 {
				from = freshness.AddDate(0, 0, 1)
			}
			if !from.Before(now) {
				output.Info("Price data for %s is already current", ticker)
				return nil
			}

			bars, err := app.Kite.FetchDaily(ctx, stock, from, now)
			if err != nil {
				output.Error("Fetch failed: %v", err)
				return err
			}
			if len(bars) == 0 {
				output.Info("No new trading days for %s", ticker)
				return nil
			}

			if err := app.Store.SavePrices(ctx, bars); err != nil {
				output.Error("Failed to store bars: %v", err)
				return err
			}
			if err := app.Store.MarkPricesSynced(ctx, stock.ID, now); err != nil {
				app.Logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to stamp price sync time")
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker": ticker,
					"bars":   len(bars),
					"from":   bars[0].Date,
					"to":     bars[len(bars)-1].Date,
				})
			}

			output.Success("✓ Stored %d bars for %s (%s to %s)",
				len(bars), ticker, FormatDate(bars[0].Date), FormatDate(bars[len(bars)-1].Date))
			if utils.IsMarketOpen() {
				output.Dim("Market is open; today's bar will be available after close.")
			}
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "Refetch this many days regardless of stored data")

	return cmd
}

func newDataShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <ticker>",
		Short: "Show recent stored price bars",
		Example: `  predictor data show RELIANCE
  predictor data show RELIANCE --days 30`,
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
			days, _ := cmd.Flags().GetInt("days")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			to := time.Now()
			from := to.AddDate(0, 0, -days)
			bars, err := app.Store.GetPrices(ctx, stock.ID, from, to)
			if err != nil {
				output.Error("Failed to load prices: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(bars)
			}

			if len(bars) == 0 {
				output.Warning("No price data stored for %s. Run 'predictor data fetch %s' first.", ticker, ticker)
				return nil
			}

			fmt.Println()
			color.Cyan("Prices - %s", ticker)
			table := NewTable(output, "DATE", "OPEN", "HIGH", "LOW", "CLOSE", "CHANGE", "VOLUME")
			var prevClose, turnover float64
			for i, bar := range bars {
				change := "-"
				if i > 0 && prevClose != 0 {
					diff := bar.Close - prevClose
					change = output.FormatPercentColored(diff / prevClose * 100)
				}
				turnover += bar.Close * float64(bar.Volume)
				table.AddRow(
					FormatDate(bar.Date),
					FormatPrice(bar.Open),
					FormatPrice(bar.High),
					FormatPrice(bar.Low),
					FormatPrice(bar.Close),
					change,
					FormatVolume(bar.Volume),
				)
				prevClose = bar.Close
			}
			table.Render()

			last := bars[len(bars)-1]
			output.Println()
			output.Printf("  Traded value: %s\n", FormatCompact(turnover))
			output.SourceLine(SourceKite, "Last close %s on %s", FormatIndianCurrency(last.Close), FormatDate(last.Date))
			return nil
		},
	}

	cmd.Flags().Int("days", 14, "Days of history to show")

	return cmd
}

func newNewsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Manage news events",
	}

	cmd.AddCommand(newNewsFetchCmd(app))

	return cmd
}

func newNewsFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <ticker>",
		Short: "Fetch headlines from configured news feeds",
		Long: `Fetch fresh headlines for a stock from the configured news feeds.

Headlines already stored (matched by content hash) are skipped. Fetched
events stay unanalyzed until the next 'predictor analyze' run.`,
		Example: `  predictor news fetch RELIANCE
  predictor news fetch RELIANCE --days 14`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store unavailable. Check the database path with 'predictor config show'.")
				return fmt.Errorf("store not available")
			}
			if app.News == nil {
				output.Error("No news sources configured. Add [[news.sources]] entries to config.toml.")
				return fmt.Errorf("news source not configured")
			}

			ticker := strings.ToUpper(args[0])
			days, _ := cmd.Flags().GetInt("days")

			stock, err := app.Store.GetStockByTicker(ctx, ticker)
			if err != nil {
				return describeStockErr(output, ticker, err)
			}

			now := time.Now()
			since := stock.LastNewsUpdatedAt
			if since.IsZero() || days > 0 {
				since = now.AddDate(0, 0, -daysOrDefault(days, 7))
			}

			events, err := app.News.FetchHeadlines(ctx, stock, since)
			if err != nil {
				output.Error("Fetch failed: %v", err)
				return err
			}

			fresh := make([]models.NewsEvent, 0, len(events))
			for _, event := range events {
				seen, err := app.Store.HasContentHash(ctx, stock.ID, event.ContentHash)
				if err != nil {
					output.Error("Dedup check failed: %v", err)
					return err
				}
				if !seen {
					fresh = append(fresh, event)
				}
			}

			if len(fresh) > 0 {
				if err := app.Store.SaveEvents(ctx, fresh); err != nil {
					output.Error("Failed to store events: %v", err)
					return err
				}
			}
			if err := app.Store.MarkNewsSynced(ctx, stock.ID, now); err != nil {
				app.Logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to stamp news sync time")
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":  ticker,
					"fetched": len(events),
					"stored":  len(fresh),
					"skipped": len(events) - len(fresh),
				})
			}

			output.Success("✓ Stored %d fresh events for %s (%d fetched, %d already known)",
				len(fresh), ticker, len(events), len(events)-len(fresh))
			if len(fresh) > 0 {
				output.Dim("Analyze them with 'predictor analyze %s'.", ticker)
			}
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "Fetch headlines from the last N days (default: since last sync)")

	return cmd
}

func daysOrDefault(days, fallback int) int {
	if days > 0 {
		return days
	}
	return fallback
}
