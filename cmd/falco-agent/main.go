package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/falco-agent/internal/activation"
	"github.com/canonical/falco-agent/internal/config"
	"github.com/canonical/falco-agent/internal/falco"
	"github.com/canonical/falco-agent/internal/gitrepo"
	"github.com/canonical/falco-agent/internal/reconcile"
	"github.com/canonical/falco-agent/internal/runner"
	"github.com/canonical/falco-agent/internal/secrets"
	"github.com/canonical/falco-agent/internal/service"
	reposync "github.com/canonical/falco-agent/internal/sync"
	"github.com/canonical/falco-agent/internal/systemd"
	"github.com/canonical/falco-agent/internal/watch"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "falco-agent",
	Short: "Keep a locally-installed Falco daemon installed, configured and running",
	Long: `falco-agent converges the local Falco installation to match declared
configuration: it renders the Falco config and service unit, drives the
systemd unit through install/configure/remove transitions, and optionally
pulls rule and config overrides from a remote Git repository over SSH.

It is driven by orchestrator lifecycle events (the hook command) or runs
continuously (the watch command).`,
	SilenceUsage: true,
}

var hookCmd = &cobra.Command{
	Use:   "hook <event>",
	Short: "Run one reconciliation pass for a lifecycle event",
	Long: `Hook executes a single reconciliation pass for an orchestrator lifecycle
event and exits. Recoverable failures (invalid configuration, sync failures)
are reported as a blocked status with exit code 0; the Falco service being
down after a reconcile attempt is fatal and exits non-zero.`,
	Args: cobra.ExactArgs(1),
	ValidArgs: []string{
		string(reconcile.EventInstall),
		string(reconcile.EventUpgrade),
		string(reconcile.EventRemove),
		string(reconcile.EventUpdateStatus),
		string(reconcile.EventConfigChanged),
		string(reconcile.EventSecretChanged),
	},
	RunE: runHook,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile continuously on an interval",
	Long: `Watch runs reconciliation on the configured interval. When a listen address
(or an activated socket) is configured, an authenticated HTTP endpoint also
accepts trigger requests for an immediate pass, so a push pipeline does not
have to wait for the next tick.`,
	RunE: runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("falco-agent %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/falco-agent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	event, err := reconcile.ParseEvent(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rec, err := buildReconciler(cfg, logger)
	if err != nil {
		return err
	}

	if err := rec.Run(ctx, event); err != nil {
		logger.Error("reconciliation failed", "event", string(event), "error", err)
		return err
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rec, err := buildReconciler(cfg, logger)
	if err != nil {
		return err
	}

	listener, err := activation.Listener()
	if err != nil {
		return fmt.Errorf("socket activation: %w", err)
	}

	watcher, err := watch.New(watch.Options{
		Interval:   cfg.Watch.Interval.Std(),
		ListenAddr: cfg.Watch.ListenAddr,
		Listener:   listener,
		SecretFile: cfg.Watch.TriggerSecretFile,
	}, func(ctx context.Context) error {
		return rec.Run(ctx, reconcile.EventUpdateStatus)
	}, logger)
	if err != nil {
		return err
	}

	if err := watcher.Run(ctx); err != nil {
		logger.Error("watch terminated", "error", err)
		return err
	}
	return nil
}

// buildReconciler wires the reconciler and its collaborators from config.
func buildReconciler(cfg *config.Config, logger *slog.Logger) (*reconcile.Reconciler, error) {
	layout, err := falco.NewLayout(cfg.Falco.BaseDir)
	if err != nil {
		return nil, err
	}

	run := runner.NewShell()
	sysd := systemd.NewClient(run)
	svc := service.New(layout, sysd, service.DefaultUnitDir, logger)

	gitClient := gitrepo.NewShellClient(run, cfg.SSHKeyFile(), cfg.KnownHostsFile())
	provisioner := gitrepo.NewProvisioner(cfg.Paths.SSHDir, cfg.SSHKeyFile(), cfg.KnownHostsFile(), run)
	store := secrets.NewDirStore(cfg.Paths.SecretsDir)
	syncer := reposync.New(cfg.Paths.WorkingDir, gitClient, provisioner, run, store, cfg.SettingRepo.SSHKeyID, logger)

	reporter := reconcile.NewLogReporter(logger)
	return reconcile.New(cfg.SettingRepo.URL, layout, svc, syncer, reporter, logger), nil
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/falco-agent/config.yaml", home)
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"base_dir", cfg.Falco.BaseDir,
		"setting_repo", cfg.SettingRepo.URL,
		"working_dir", cfg.Paths.WorkingDir)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
