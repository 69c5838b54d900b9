// File: cmd/logward/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/pipeline"
	"github.com/logward/logward/internal/server"
	"github.com/logward/logward/internal/storage"
	"github.com/logward/logward/internal/stream"
	"github.com/logward/logward/pkg/utils"
)

var (
	version = "1.0.0"

	configFile string
	logLevel   string
)

// Application holds all components of the service
type Application struct {
	config *config.Config
	logger *logrus.Logger

	store      storage.Store
	registry   *notify.Registry
	dispatcher *notify.Dispatcher
	pipeline   *pipeline.Pipeline
	broker     *stream.Broker
	server     *server.Server
	metrics    *metrics.Manager

	cleanupStop chan struct{}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "logward",
		Short: "Log event distribution pipeline",
		Long:  "Logward ingests application log events and distributes them to storage, notification channels, and live streams.",
		RunE:  run,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("logward %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := utils.InitLogger(level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app, err := newApplication(cfg)
	if err != nil {
		return err
	}

	return app.Run()
}

// newApplication wires all components together
func newApplication(cfg *config.Config) (*Application, error) {
	logger := utils.GetLogger()

	app := &Application{
		config:      cfg,
		logger:      logger,
		metrics:     metrics.NewManager(),
		cleanupStop: make(chan struct{}),
	}

	// Storage
	store, err := storage.NewStore(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.store = store

	// Notification channels
	app.registry = notify.NewRegistry()
	channels := []notify.Channel{
		notify.NewEmailChannel(&cfg.Notifications.Email),
		notify.NewWebhookChannel(&cfg.Notifications.Webhook, cfg.Notifications.NotificationTimeout),
		notify.NewChatChannel(&cfg.Notifications.Chat, cfg.Notifications.NotificationTimeout),
	}
	for _, ch := range channels {
		if err := app.registry.Register(ch); err != nil {
			return nil, err
		}
	}

	app.dispatcher = notify.NewDispatcher(app.registry, cfg.Notifications.NotificationTimeout)
	app.dispatcher.SetMetricsManager(app.metrics)

	// Ingestion pipeline
	guard := pipeline.NewDeduplicationGuard(cfg.Pipeline.DedupCapacity)
	guard.SetInternalChannel(cfg.Pipeline.InternalChannel)
	guard.SetInternalPatterns(cfg.Pipeline.InternalNamePatterns)

	filterCfg := pipeline.FilterChainConfig{
		AllowedEnvironments: cfg.Pipeline.AllowedEnvironments,
	}
	if cfg.Pipeline.RateLimitEnabled {
		filterCfg.RateLimitPerMinute = cfg.Pipeline.RateLimitPerMinute
	}
	filters := pipeline.NewFilterChain(filterCfg)

	app.pipeline = pipeline.New(guard, filters, store, app.dispatcher, pipeline.Config{
		DefaultEnvironment: cfg.Pipeline.DefaultEnvironment,
	})
	app.pipeline.SetMetricsManager(app.metrics)

	// Live streaming
	app.broker = stream.NewBroker(store, stream.BrokerConfig{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		StatsInterval:     cfg.Stream.StatsInterval,
		PollInterval:      cfg.Stream.PollInterval,
		MaxSessionTime:    cfg.Stream.MaxSessionTime,
		ReplayLimit:       cfg.Stream.ReplayLimit,
	})
	app.broker.SetMetricsManager(app.metrics)

	// HTTP API
	app.server = server.NewServer(&cfg.Server, server.Dependencies{
		Pipeline:   app.pipeline,
		Store:      store,
		Dispatcher: app.dispatcher,
		Registry:   app.registry,
		Broker:     app.broker,
		Metrics:    app.metrics,
		Version:    version,
	})

	return app, nil
}

// Run starts the application and blocks until shutdown
func (app *Application) Run() error {
	app.logger.WithFields(logrus.Fields{
		"version":     version,
		"storage":     app.config.Storage.Type,
		"environment": app.config.App.Environment,
	}).Info("Starting logward")

	if err := app.store.Connect(); err != nil {
		return err
	}
	if err := app.store.Migrate(); err != nil {
		return err
	}
	if ms, ok := app.store.(interface {
		SetMetricsManager(*metrics.Manager)
	}); ok {
		ms.SetMetricsManager(app.metrics)
	}

	if app.config.Storage.RetentionDays > 0 {
		go app.runRetentionCleanup()
	}
	go app.runSystemMetrics()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		app.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			app.logger.WithField("error", err.Error()).Error("HTTP server error")
			return app.shutdownWith(err)
		}
	}

	return app.shutdownWith(nil)
}

func (app *Application) shutdownWith(cause error) error {
	app.logger.Info("Shutting down")

	close(app.cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.server.Stop(ctx); err != nil {
		app.logger.WithField("error", err.Error()).Error("Failed to stop HTTP server cleanly")
	}
	if err := app.store.Close(); err != nil {
		app.logger.WithField("error", err.Error()).Error("Failed to close storage")
	}

	app.logger.Info("Shutdown complete")
	return cause
}

// runRetentionCleanup purges records past the retention period on a
// fixed interval.
func (app *Application) runRetentionCleanup() {
	interval := app.config.Storage.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-app.cleanupStop:
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -app.config.Storage.RetentionDays)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := app.store.PurgeOlderThan(ctx, cutoff, nil)
			cancel()

			if err != nil {
				app.logger.WithField("error", err.Error()).Error("Retention cleanup failed")
				continue
			}
			if deleted > 0 {
				app.logger.WithFields(logrus.Fields{
					"deleted": deleted,
					"cutoff":  cutoff.Format(time.RFC3339),
				}).Info("Retention cleanup completed")
			}
		}
	}
}

// runSystemMetrics refreshes process-level gauges periodically
func (app *Application) runSystemMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.cleanupStop:
			return
		case <-ticker.C:
			app.metrics.UpdateSystemMetrics()
		}
	}
}
