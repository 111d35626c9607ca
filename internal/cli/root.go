// Package cli provides the command-line interface for the predictor.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-predictor/internal/cache"
	"stock-predictor/internal/config"
	"stock-predictor/internal/logging"
	"stock-predictor/internal/marketdata"
	"stock-predictor/internal/pipeline"
	"stock-predictor/internal/security"
	"stock-predictor/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-01"
)

// App holds the application dependencies.
type App struct {
	Config       *config.Config
	ConfigDir    string
	Logger       zerolog.Logger
	Store        store.DataStore
	Cache        cache.Invalidator
	Kite         *marketdata.KiteSource
	News         *marketdata.Scraper
	Orchestrator *pipeline.Orchestrator
	Credentials  *security.CredentialManager
	Audit        *security.AuditLogger
}

// NewRootCmd creates the root command for the CLI. configDir is the
// resolved configuration directory, honoring the --config flag.
func NewRootCmd(cfg *config.Config, configDir string, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
		Cache:     cache.Noop{},
	}

	// Initialize Kite source if credentials are available
	if cfg.Credentials.Kite.APIKey != "" {
		app.Kite = marketdata.NewKiteSource(marketdata.KiteConfig{
			APIKey:      cfg.Credentials.Kite.APIKey,
			APISecret:   cfg.Credentials.Kite.APISecret,
			AccessToken: cfg.Credentials.Kite.AccessToken,
		})
		logger.Debug().Msg("Kite price source initialized")
	}

	// Initialize news scraper if feeds are configured
	if len(cfg.News.Sources) > 0 {
		app.News = marketdata.NewScraper(newsFeeds(cfg), cfg.News.RatePerSecond, cfg.News.RequestTimeout, logger)
		logger.Debug().Int("feeds", len(cfg.News.Sources)).Msg("News scraper initialized")
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, analysis commands will be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	// Upgrade to the Redis invalidator when the cache layer is enabled
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(cfg.Redis.Addr, redisPassword(cfg), cfg.Redis.DB)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Redis, cache invalidation disabled")
		} else {
			app.Cache = redisCache
			logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Redis invalidator initialized")
		}
	}

	if app.Store != nil {
		app.Orchestrator = pipeline.New(app.Store, app.Cache, cfg.Analysis, logger)
	}

	app.Credentials = security.NewCredentialManager(configDir, cfg.Security.SessionTimeout)

	auditCfg := security.DefaultAuditConfig()
	auditCfg.LogDir = filepath.Join(configDir, "audit")
	auditLogger, err := security.NewAuditLogger(auditCfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize audit log")
	} else {
		app.Audit = auditLogger
	}

	rootCmd := &cobra.Command{
		Use:   "predictor",
		Short: "Stock Predictor - news-driven predictability scoring CLI",
		Long: `Stock Predictor analyzes how Indian equities react to news.

It categorizes news events, scores their sentiment, correlates event
categories with historical price moves, and condenses the result into a
0-100 predictability score per stock.

Use 'predictor help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-predictor)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Add all command groups
	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addStockCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addScheduleCommands(rootCmd, app)
	addCacheCommands(rootCmd, app)

	return rootCmd
}

// newsFeeds converts configured news sources into scraper feeds.
func newsFeeds(cfg *config.Config) []marketdata.Feed {
	feeds := make([]marketdata.Feed, 0, len(cfg.News.Sources))
	for _, src := range cfg.News.Sources {
		feeds = append(feeds, marketdata.Feed{
			Name:    src.Name,
			URL:     src.URL,
			Quality: src.Quality,
		})
	}
	return feeds
}

// redisPassword resolves the Redis password, preferring credentials.toml.
func redisPassword(cfg *config.Config) string {
	if cfg.Credentials.Redis.Password != "" {
		return cfg.Credentials.Redis.Password
	}
	return cfg.Redis.Password
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Predictor v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.ConfigDir})
			} else {
				output.Println(app.ConfigDir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write template configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			written, err := config.Init(app.ConfigDir)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"written": written})
			}
			if len(written) == 0 {
				output.Info("Configuration files already exist, nothing written")
				return nil
			}
			for _, path := range written {
				output.Success("✓ Created %s", path)
			}
			output.Println()
			output.Dim("Edit credentials.toml, then run 'predictor auth setup' to encrypt it.")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Redis Enabled:   %v\n", cfg.Redis.Enabled)
	if cfg.Redis.Enabled {
		output.Printf("  Addr:            %s\n", cfg.Redis.Addr)
		output.Printf("  DB:              %d\n", cfg.Redis.DB)
	}
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Lookback Days:   %d\n", cfg.Analysis.LookbackDays)
	output.Printf("  Min Sample Size: %d\n", cfg.Analysis.MinSampleSize)
	output.Printf("  Batch Workers:   %d\n", cfg.Analysis.BatchWorkers)
	output.Println()

	output.Bold("News Sources")
	if len(cfg.News.Sources) == 0 {
		output.Dim("  none configured")
	}
	for _, src := range cfg.News.Sources {
		output.Printf("  %-16s quality %.2f\n", src.Name, src.Quality)
	}
	output.Printf("  Rate:            %.1f req/s\n", cfg.News.RatePerSecond)
	output.Printf("  Timeout:         %s\n", cfg.News.RequestTimeout)
	output.Println()

	output.Bold("Schedule")
	output.Printf("  Enabled:         %v\n", cfg.Schedule.Enabled)
	output.Printf("  Price Append:    %s\n", cfg.Schedule.PriceAppendSpec)
	output.Printf("  News Fetch:      %s\n", cfg.Schedule.NewsFetchSpec)
	output.Printf("  Daily Analysis:  %s\n", cfg.Schedule.DailyAnalysis)
	output.Printf("  Weekly Corr:     %s\n", cfg.Schedule.WeeklyCorrelate)
	output.Println()

	output.Bold("Security")
	output.Printf("  Encrypt Creds:   %v\n", cfg.Security.EncryptCredentials)
	output.Printf("  Session Timeout: %s\n", cfg.Security.SessionTimeout)

	return nil
}
