package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/edmondantes/salary-bot/core/config"
	"github.com/edmondantes/salary-bot/core/logger"

	"log/slog"
)

// App is a long-running application with an explicit lifecycle. Start must
// not block; Stop is bounded by its context.
type App interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options describe how to load configuration and build the application.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Build      func(cfg *coreconfig.Config) (App, error)

	ShutdownLogger func() error
	StopTimeout    time.Duration
}

// Run loads configuration, builds the app and runs it until SIGINT/SIGTERM.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Build == nil {
		return fmt.Errorf("cmd: Build is required")
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	app, err := opts.Build(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("cmd: start failed: %w", err)
	}
	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	<-ctx.Done()

	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
	)

	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()

	return app.Stop(stopCtx)
}
