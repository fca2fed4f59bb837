package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/app"
	"github.com/ternarybob/tenderwatch/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	runOnce      = flag.Bool("once", false, "Run a single crawl and exit")
	resetData    = flag.Bool("reset", false, "Drop all stored data before starting")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("TenderWatch version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover a config file if none was specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("tenderwatch.toml"); err == nil {
			configFiles = append(configFiles, "tenderwatch.toml")
		} else if _, err := os.Stat("deployments/local/tenderwatch.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/tenderwatch.toml")
		}
	}

	// Startup sequence: defaults -> config files -> env, then logger,
	// then banner.
	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.LoadVersionFromFile())

	logger.Info().
		Strs("config_files", configFiles).
		Int("sources", len(config.EnabledSources())).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	if *resetData {
		if err := application.Reset(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset storage")
			os.Exit(1)
		}
		logger.Info().Msg("Storage reset complete")
	}

	if *runOnce {
		if err := application.Pipeline.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("Crawl run failed")
			os.Exit(1)
		}
		status := application.Pipeline.Status()
		logger.Info().Str("result", status.Message).Msg("Crawl run finished")

		if stats, err := application.Storage.GetStats(ctx); err == nil {
			logger.Info().
				Int("articles", stats.TotalArticles).
				Int("bids", stats.TotalBids).
				Int("new", stats.NewBids).
				Int("notified", stats.NotifiedBids).
				Msg("Store totals")
		}
		return
	}

	application.Scheduler.Start()

	logger.Info().Msg("TenderWatch running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
}
