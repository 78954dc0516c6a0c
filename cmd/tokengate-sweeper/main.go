// Package main provides the entry point for tokengate-sweeper.
//
// tokengate-sweeper is the TokenGate daemon process: it owns the token
// store, runs the background expiry sweeper, and serves the
// operational endpoints (metrics, health, status).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/norlun/tokengate-go/internal/config"
	"github.com/norlun/tokengate-go/internal/core/service"
	"github.com/norlun/tokengate-go/internal/infra/buildinfo"
	"github.com/norlun/tokengate-go/internal/infra/confloader"
	"github.com/norlun/tokengate-go/internal/infra/shutdown"
	"github.com/norlun/tokengate-go/internal/server/opsserver"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/internal/telemetry/metric"
	"github.com/norlun/tokengate-go/pkg/token"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("tokengate-sweeper %s\n", buildinfo.String())
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting tokengate-sweeper",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"store", cfg.Store.Backend)

	if config.IsDefaultSecret(cfg) {
		log.Warn("token.secret is the built-in default; set TOKENGATE_TOKEN__SECRET before issuing real tokens")
	}

	// Open the token store
	ctx := context.Background()
	store, err := config.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// Build the lifecycle manager around the store
	metrics := metric.NewRegistry()
	manager := service.NewTokenManager(store, token.NewGenerator([]byte(cfg.Token.Secret)), &service.ManagerConfig{
		TTLSeconds:            cfg.Token.TTLSeconds,
		RenewThresholdSeconds: cfg.Token.RenewThresholdSeconds,
		Metrics:               metrics,
		Logger:                log,
	})

	// Setup graceful shutdown
	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	// Register shutdown hooks (reverse order of startup)
	shutdownHandler.OnShutdown(func(_ context.Context) error {
		log.Info("closing token store")
		return store.Close()
	})

	// Start the background sweeper
	var sweeper *service.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = service.NewSweeper(manager, &service.SweeperConfig{
			Interval: cfg.Sweeper.Interval,
			Logger:   log,
		})

		sweepCtx, cancelSweep := context.WithCancel(ctx)
		sweepDone := make(chan struct{})
		go func() {
			defer close(sweepDone)
			if err := sweeper.Run(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("sweeper exited", "error", err)
			}
		}()

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("stopping sweeper")
			cancelSweep()
			select {
			case <-sweepDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	} else {
		log.Warn("sweeper disabled; expired records are only removed when a validation touches them")
	}

	// Start the operational listener
	if cfg.Telemetry.MetricsAddr != "" {
		router := opsserver.NewRouter(&opsserver.RouterConfig{
			Store:        store,
			StoreBackend: cfg.Store.Backend,
			Metrics:      metrics,
			Logger:       log,
			AllowFrom:    cfg.Telemetry.AllowFrom,
		})

		opsServer, err := opsserver.New(opsserver.Options{
			Addr:        cfg.Telemetry.MetricsAddr,
			TLSCertFile: cfg.Telemetry.TLSCertFile,
			TLSKeyFile:  cfg.Telemetry.TLSKeyFile,
			Logger:      log,
		}, router)
		if err != nil {
			return fmt.Errorf("operational listener: %w", err)
		}

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down operational listener")
			return opsServer.Shutdown(ctx)
		})

		go func() {
			log.Info("operational listener started",
				"addr", cfg.Telemetry.MetricsAddr,
				"tls", opsServer.TLSEnabled())

			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("operational listener error", "error", err)
				shutdownHandler.Trigger()
			}
		}()
	}

	// Settings that can change without a restart: the log level and the
	// sweep cadence. Everything else, the token TTL included, stays as
	// captured at startup.
	var reloadMu sync.Mutex
	applyConfig := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		next, err := loadConfig(*configFile)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if next.Telemetry.LogLevel != cfg.Telemetry.LogLevel {
			logger.SetLevel(next.Telemetry.LogLevel)
			log.Info("log level changed",
				"from", cfg.Telemetry.LogLevel,
				"to", next.Telemetry.LogLevel)
			cfg.Telemetry.LogLevel = next.Telemetry.LogLevel
		}
		if sweeper != nil && next.Sweeper.Interval != cfg.Sweeper.Interval {
			sweeper.SetInterval(next.Sweeper.Interval)
			log.Info("sweep interval changed",
				"from", cfg.Sweeper.Interval.String(),
				"to", sweeper.Interval().String())
			cfg.Sweeper.Interval = next.Sweeper.Interval
		}
	}

	// Re-read the configuration on SIGHUP.
	reload := shutdown.NewReloadHandler(applyConfig)
	reload.Start()
	defer reload.Stop()

	// The same settings apply when the config file itself is rewritten,
	// so templated deployments do not need to signal the process.
	if *configFile != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			log.Warn("config file watcher unavailable", "error", err)
		} else if err := watcher.Watch(*configFile); err != nil {
			log.Warn("config file watch failed", "path", *configFile, "error", err)
			watcher.Stop()
		} else {
			name := filepath.Base(*configFile)
			watcher.OnChange(func(path string) {
				if filepath.Base(path) == name {
					applyConfig()
				}
			})
			watcher.StartAsync()
			defer watcher.Stop()
		}
	}

	// Wait for shutdown signal
	log.Info("daemon started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("daemon stopped gracefully")
	return nil
}

// loadConfig loads and validates configuration from file, environment,
// and the legacy environment aliases.
func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Telemetry.LogLevel,
		Format: cfg.Telemetry.LogFormat,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}
