// Command predictor scores how predictably stocks react to news.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stock-predictor/internal/cli"
	"stock-predictor/internal/config"
	"stock-predictor/internal/logging"
)

func main() {
	args := os.Args[1:]

	configDir := flagValue(args, "--config")
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.FilePath = filepath.Join(configDir, "logs", "predictor.log")
	if hasFlag(args, "--json") {
		// Keep stdout parseable when the output feeds a pipeline.
		logCfg.Console = false
	}
	if hasFlag(args, "--debug") {
		logCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithConfig(logCfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(cfg, configDir, logger).ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// flagValue extracts a flag that must be known before cobra parses the
// command line; the config has to load before the command tree is built.
func flagValue(args []string, name string) string {
	for i, arg := range args {
		if arg == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"=")
		}
	}
	return ""
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == name || strings.HasPrefix(arg, name+"=") {
			return true
		}
	}
	return false
}
