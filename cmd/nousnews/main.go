package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/handlers"
	"github.com/ternarybob/nousnews/internal/server"
	"github.com/ternarybob/nousnews/internal/services/agent"
	"github.com/ternarybob/nousnews/internal/services/llm"
	"github.com/ternarybob/nousnews/internal/services/prices"
	"github.com/ternarybob/nousnews/internal/services/scheduler"
	"github.com/ternarybob/nousnews/internal/services/seed"
	"github.com/ternarybob/nousnews/internal/storage/badger"
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
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("NousNews version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("nousnews.toml"); err == nil {
			configFiles = append(configFiles, "nousnews.toml")
		}
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> files -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Application configuration loaded")

	// Storage
	store, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()

	// Seed configured sources and asset series
	if err := seed.Apply(config, store, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed sources from configuration")
	}

	// Services
	llmService := llm.NewClaudeService(&config.Claude, logger)
	priceSyncer := prices.NewSyncer(logger, store)
	agentService := agent.NewService(config, logger, store, llmService, priceSyncer)
	schedulerService := scheduler.NewService(config, logger, store, agentService)

	if config.Agent.RunForeverEnabled {
		if err := schedulerService.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start run-forever loop")
		}
	} else {
		logger.Info().Msg("Run-forever loop disabled; use POST /api/agent/loop/start to begin")
	}

	// HTTP control surface
	srv := server.New(config, logger, &server.Handlers{
		API:     handlers.NewAPIHandler(),
		Agent:   handlers.NewAgentHandler(agentService, schedulerService, store, logger),
		Loop:    handlers.NewLoopHandler(schedulerService),
		Cards:   handlers.NewCardHandler(store, logger),
		Sources: handlers.NewSourcesHandler(store, logger),
		Prices:  handlers.NewPricesHandler(store, logger),
	})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	// Graceful shutdown: stop the loop first so no new runs start,
	// then drain the HTTP server.
	if err := schedulerService.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop run-forever loop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
