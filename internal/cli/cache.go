// Package cli provides the command-line interface for the predictor.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-predictor/internal/cache"
	"stock-predictor/internal/security"
)

// addCacheCommands adds cache invalidation commands.
func addCacheCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cached score management",
	}

	cmd.AddCommand(newCacheClearCmd(app))

	rootCmd.AddCommand(cmd)
}

func newCacheClearCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear [ticker]",
		Short: "Invalidate cached predictability scores",
		Long: `Invalidate cached predictability scores in Redis.

Scores are recomputed and recached on the next analysis run. With a
ticker, only that stock's entries are dropped; with --all, every key
the predictor owns is cleared.`,
		Example: `  predictor cache clear RELIANCE
  predictor cache clear --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			all, _ := cmd.Flags().GetBool("all")
			if all && len(args) > 0 {
				output.Error("Cannot combine --all with a ticker")
				return fmt.Errorf("cannot combine --all with a ticker")
			}
			if !all && len(args) == 0 {
				output.Error("Ticker argument or --all required")
				return fmt.Errorf("ticker argument or --all required")
			}

			if !app.Config.Redis.Enabled {
				output.Info("Redis cache is disabled; nothing to clear.")
				return nil
			}

			if all {
				err := app.Cache.InvalidatePattern(ctx, cache.PatternAll)
				auditCacheCleared(ctx, app, cache.PatternAll, err)
				if err != nil {
					output.Error("Failed to clear cache: %v", err)
					return err
				}
				output.Success("✓ Cleared all cached scores")
				return nil
			}

			ticker := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := security.ValidateTicker(ticker); err != nil {
				output.Error("Invalid ticker: %v", err)
				return err
			}

			pattern := "predictor:*:" + ticker
			err := app.Cache.Invalidate(ctx, ticker)
			auditCacheCleared(ctx, app, pattern, err)
			if err != nil {
				output.Error("Failed to clear cache for %s: %v", ticker, err)
				return err
			}
			output.Success("✓ Cleared cached scores for %s", ticker)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Clear every cached entry")

	return cmd
}

func auditCacheCleared(ctx context.Context, app *App, pattern string, err error) {
	if app.Audit == nil {
		return
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	_ = app.Audit.LogCacheCleared(ctx, pattern, err == nil, errMsg)
}
