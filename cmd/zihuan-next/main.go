// Package main implements the entry point for the zihuan-next bridge.
// zihuan-next holds one websocket to a chat-bot gateway, classifies every
// incoming message event, persists the raw frame, and routes the event to
// the handler for its conversation category.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/FredYakumo/zihuan-next/adapter"
	"github.com/FredYakumo/zihuan-next/component"
	"github.com/FredYakumo/zihuan-next/config"
	"github.com/FredYakumo/zihuan-next/dispatch"
	"github.com/FredYakumo/zihuan-next/event"
	"github.com/FredYakumo/zihuan-next/metric"
	"github.com/FredYakumo/zihuan-next/msgstore"
	"github.com/FredYakumo/zihuan-next/natsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "zihuan-next"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	// Metrics registry plus the scrape endpoint when enabled
	registry, metricsServer := setupMetrics(cfg)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	// Storage tier is decided exactly once, before the gateway is dialed
	store, natsClient, err := setupMessageStore(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close(ctx)
	}

	dispatcher, err := setupDispatcher(logger)
	if err != nil {
		return err
	}

	bot, err := setupAdapter(cfg, store, dispatcher, natsClient, registry, logger)
	if err != nil {
		return err
	}

	// Run application with signal handling
	return runWithSignalHandling(ctx, bot, registry, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting zihuan-next (chat gateway bridge)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration. Connection
// flags feed the loader's environment override layer, so the precedence
// chain stays flag > environment > file > default.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	if cliCfg.GatewayURL != "" {
		_ = os.Setenv("ZIHUAN_GATEWAY_URL", cliCfg.GatewayURL)
	}
	if cliCfg.Token != "" {
		_ = os.Setenv("ZIHUAN_GATEWAY_TOKEN", cliCfg.Token)
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	slog.Debug("Configuration loaded",
		"config", cfg.Redacted(),
		"store_configured", cfg.Store.StoreConfigured())

	return cfg, nil
}

// setupMetrics creates the registry and serves the scrape endpoint when
// metrics are enabled. The server runs until the process exits.
func setupMetrics(cfg *config.Config) (*metric.MetricsRegistry, *metric.Server) {
	registry := metric.NewMetricsRegistry()
	if !cfg.Metrics.Enabled {
		return registry, nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		slog.Info("Metrics server listening", "address", server.Address())
		if err := server.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()

	return registry, server
}

// setupMessageStore probes remote storage once and builds the message
// store on whichever tier won. The returned client is non-nil only when
// the remote tier was selected; the caller owns closing it.
func setupMessageStore(
	ctx context.Context,
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*msgstore.MessageStore, *natsclient.Client, error) {
	var client *natsclient.Client
	if cfg.Store.StoreConfigured() {
		opts := []natsclient.ClientOption{
			natsclient.WithName(appName),
			natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
		}
		if cfg.Store.Token != "" {
			opts = append(opts, natsclient.WithToken(cfg.Store.Token))
		}

		var err error
		client, err = natsclient.NewClient(cfg.Store.URL(), opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create store client: %w", err)
		}
	}

	backend, tier := msgstore.SelectBackend(ctx, client, cfg.Store.BucketName(), logger)
	store, err := msgstore.NewMessageStore(backend, tier,
		msgstore.WithLogger(logger),
		msgstore.WithMetrics(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create message store: %w", err)
	}

	// A client that lost the selection is already closed
	if tier != msgstore.TierRemote {
		client = nil
	}

	core := registry.CoreMetrics()
	core.RecordNATSStatus(client != nil)
	if client != nil {
		if rtt, err := client.RTT(); err == nil {
			core.RecordNATSRTT(rtt)
		}
	}

	return store, client, nil
}

// setupDispatcher builds the routing table for classified message events
func setupDispatcher(logger *slog.Logger) (*dispatch.Dispatcher, error) {
	dispatcher := dispatch.NewDispatcher(logger)

	if err := dispatcher.Register(event.TypePrivate, privateMessageHandler(logger)); err != nil {
		return nil, fmt.Errorf("register private handler: %w", err)
	}
	if err := dispatcher.Register(event.TypeGroup, groupMessageHandler(logger)); err != nil {
		return nil, fmt.Errorf("register group handler: %w", err)
	}

	return dispatcher, nil
}

// privateMessageHandler logs direct conversations in the record format
// operators grep for.
func privateMessageHandler(logger *slog.Logger) dispatch.Handler {
	return func(_ context.Context, ev *event.TypedEvent) error {
		sender, err := event.DecodeProfile(ev.Sender)
		if err != nil {
			return fmt.Errorf("decode sender profile: %w", err)
		}

		logger.Info(fmt.Sprintf("[Friend Message] [Sender: %s(%s)] Message: %s",
			sender.Nickname, sender.UserID, ev.PlainText()),
			"message_id", ev.ID)
		return nil
	}
}

// groupMessageHandler logs group conversations with the group-local sender
// name and any mention targets.
func groupMessageHandler(logger *slog.Logger) dispatch.Handler {
	return func(_ context.Context, ev *event.TypedEvent) error {
		sender, err := event.DecodeProfile(ev.Sender)
		if err != nil {
			return fmt.Errorf("decode sender profile: %w", err)
		}

		attrs := []any{
			"message_id", ev.ID,
			"sender_name", sender.DisplayName(true),
		}
		if targets := ev.AtTargets(); len(targets) > 0 {
			attrs = append(attrs, "at_targets", targets)
		}

		logger.Info(fmt.Sprintf("[Group Message] [Group: %s(%s)] [Sender: %s(%s)] Message: %s",
			ev.GroupName, ev.GroupID, sender.Nickname, sender.UserID, ev.PlainText()),
			attrs...)
		return nil
	}
}

// setupAdapter wires the gateway connection to the store and dispatcher
func setupAdapter(
	cfg *config.Config,
	store *msgstore.MessageStore,
	dispatcher *dispatch.Dispatcher,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*adapter.BotAdapter, error) {
	deps := component.Dependencies{
		NATSClient: natsClient,
		Metrics:    registry,
		Logger:     logger,
	}

	bot, err := adapter.New("bot_adapter", adapter.Config{
		URL:   cfg.Gateway.URL,
		Token: cfg.Gateway.Token,
	}, store, dispatcher, deps)
	if err != nil {
		return nil, fmt.Errorf("create adapter: %w", err)
	}

	if err := bot.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize adapter: %w", err)
	}

	return bot, nil
}

// runWithSignalHandling starts the adapter and waits for a shutdown signal
// or for the gateway connection to end on its own
func runWithSignalHandling(
	ctx context.Context,
	bot *adapter.BotAdapter,
	registry *metric.MetricsRegistry,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := bot.Start(signalCtx); err != nil {
		return fmt.Errorf("start adapter: %w", err)
	}

	core := registry.CoreMetrics()
	core.RecordServiceStatus(appName, 2)
	defer core.RecordServiceStatus(appName, 0)

	slog.Info("zihuan-next started successfully (bridging gateway events)")

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case <-bot.Done():
		slog.Warn("Gateway connection ended")
	}

	if err := bot.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping adapter", "error", err)
	}

	// A connection loss is fatal so the supervisor restarts the process
	if err := bot.Err(); err != nil {
		return fmt.Errorf("gateway session failed: %w", err)
	}

	slog.Info("zihuan-next shutdown complete")
	return nil
}
