// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gradyzhuo/plank/internal/app"
	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/logging"
	"github.com/gradyzhuo/plank/internal/observability"
	"github.com/gradyzhuo/plank/internal/plugin"
)

// launchConfig holds configuration for the launch command.
type launchConfig struct {
	Program     string            `koanf:"program"`
	LogFormat   string            `koanf:"log-format"`
	LogLevel    string            `koanf:"log-level"`
	MetricsAddr string            `koanf:"metrics-addr"`
	PluginsDirs []string          `koanf:"plugins-dir"`
	Options     map[string]string `koanf:"option"`
	Watch       bool              `koanf:"watch"`
}

// Validate checks that the configuration is valid.
func (cfg *launchConfig) Validate() error {
	if cfg.Program == "" {
		return fmt.Errorf("program is required")
	}
	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	return nil
}

// options converts the --option pairs to launch options.
func (cfg *launchConfig) options() map[string]any {
	out := make(map[string]any, len(cfg.Options))
	for k, v := range cfg.Options {
		out[k] = v
	}
	return out
}

// Default values for launch command flags.
const (
	defaultMetricsAddr = ""
	shutdownTimeout    = 5 * time.Second
)

// LaunchDeps holds the injectable dependencies of the launch command.
type LaunchDeps struct {
	// RuntimeFactory builds the runtime. metrics is nil when the metrics
	// server is disabled.
	RuntimeFactory func(metrics *observability.Metrics) *app.Runtime
	// ObservabilityServerFactory builds the metrics and health server.
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer
	// Wait blocks until the application should shut down.
	Wait func(ctx context.Context) error
}

// ObservabilityServer is the subset of observability.Server launch uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// NewLaunchCmd creates the launch subcommand.
func NewLaunchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch the application for a program",
		Long: `Load the configuration document, make the selected program the
default, discover and load plugins and run until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := parseLaunchConfig(cmd)
			if err != nil {
				return err
			}
			return runLaunchWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	addLaunchFlags(cmd.Flags())
	return cmd
}

func addLaunchFlags(fs *pflag.FlagSet) {
	fs.String("program", config.BaseProgram, "program to launch")
	fs.String("log-format", "", "log format (json or text, default: logger.format)")
	fs.String("log-level", "", "log level (default: logger.level)")
	fs.String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.StringSlice("plugins-dir", nil, "extra plugin discovery roots")
	fs.StringToString("option", nil, "launch option key=value, repeatable")
	fs.Bool("watch", false, "reload the default configuration when the document changes (plugins keep their launch-time configuration)")
}

// parseLaunchConfig reads the launch flags into a launchConfig.
func parseLaunchConfig(cmd *cobra.Command) (*launchConfig, error) {
	k := koanf.New(".")
	if err := k.Load(posflag.Provider(cmd.Flags(), ".", k), nil); err != nil {
		return nil, oops.In("cli").Wrapf(err, "read flags")
	}
	cfg := &launchConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("cli").Wrapf(err, "decode flags")
	}
	return cfg, nil
}

// runLaunchWithDeps launches the application with injectable dependencies.
// If deps is nil, default implementations are used.
func runLaunchWithDeps(ctx context.Context, cfg *launchConfig, cmd *cobra.Command, deps *LaunchDeps) error {
	if deps == nil {
		deps = &LaunchDeps{}
	}
	if deps.RuntimeFactory == nil {
		deps.RuntimeFactory = func(metrics *observability.Metrics) *app.Runtime {
			return app.NewRuntime(app.WithMetrics(metrics))
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if deps.Wait == nil {
		deps.Wait = waitForSignal
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var application *app.Application
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			return application != nil && application.Loaded()
		})
		metrics = obsServer.Metrics()
	}

	rt := deps.RuntimeFactory(metrics)
	program, err := loadProgram(rt, cfg.Program)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg, program)
	slog.Info("launching application",
		"app", program.App().Name(),
		"program", program.Name(),
		"config", configFile)

	application = app.New(rt, program, nil,
		app.WithPluginOptions(plugin.WithSearchPaths(cfg.PluginsDirs...)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	if err := application.Launch(ctx, cfg.options()); err != nil {
		stopObservability(obsServer)
		return fmt.Errorf("failed to launch: %w", err)
	}

	if cfg.Watch {
		republishOnChange(rt)
		go func() {
			if err := rt.Config.Watch(ctx, configFile, cfg.Program, rt.BuildOptions()...); err != nil {
				slog.Warn("configuration watch stopped", "error", err)
			}
		}()
	}

	cmd.Printf("Launched %s (%s)\n", application.Name(), program.Name())

	if err := deps.Wait(ctx); err != nil {
		slog.Warn("wait interrupted", "error", err)
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := application.Unload(shutdownCtx); err != nil {
		slog.Warn("error unloading plugins", "error", err)
	}
	stopObservability(obsServer)

	slog.Info("shutdown complete")
	return nil
}

// setupLogging configures the default logger from flags, falling back to the
// program's logger section.
func setupLogging(cfg *launchConfig, program *config.Configuration) {
	format := cfg.LogFormat
	if format == "" {
		format = program.Logger().Format()
	}
	level := cfg.LogLevel
	if level == "" {
		level = program.Logger().Level()
	}
	logging.SetDefault("plank", version, format, logging.ParseLevel(level))
}

// republishOnChange merges every reloaded default configuration into the
// main store, so templates resolved against it see the new values. The
// running application keeps the sections and plugin data directories it
// was launched with.
func republishOnChange(rt *app.Runtime) {
	rt.Config.OnChange(func(c *config.Configuration) {
		rt.Stores.Main().Merge(c.Store())
		slog.Info("configuration reloaded; launched plugins keep their configuration",
			"program", c.Name())
	})
}

// waitForSignal blocks until SIGINT, SIGTERM or ctx is done.
func waitForSignal(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("received shutdown signal")
	return nil
}

// monitorServerErrors cancels ctx when the server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errChan <-chan error, name string) {
	select {
	case err, ok := <-errChan:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}
