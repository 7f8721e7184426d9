package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"warpd/internal/classify"
	"warpd/internal/config"
	"warpd/internal/logging"
	"warpd/internal/reconcile"
	"warpd/internal/runtime"
	"warpd/internal/startupcheck"
	"warpd/internal/store"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Exit codes: 0 on clean shutdown, a distinct non-zero code
// for each class of startup failure so supervisors can tell them apart.
const (
	exitInvalidConfig      = 2
	exitMissingCapability  = 3
	exitRuntimeUnavailable = 4
)

var version = "dev"

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var cfgErr *config.ValidationError
	var capErr *startupcheck.MissingCapabilityError
	var rtErr *startupcheck.RuntimeUnavailableError
	switch {
	case errors.As(err, &cfgErr):
		return exitInvalidConfig
	case errors.As(err, &capErr):
		return exitMissingCapability
	case errors.As(err, &rtErr):
		return exitRuntimeUnavailable
	default:
		return 1
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:           "warpd",
		Short:         "Warp route daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to warpd config file")

	cmd.AddCommand(runCmd(&configPath, &debug))
	cmd.AddCommand(checkCmd(&configPath))
	cmd.AddCommand(configValidateCmd(&configPath))
	return cmd
}

func runCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the warp route daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return &config.ValidationError{Err: err}
			}
			if *debug {
				cfg.LogLevel = logging.LevelDebug
			}
			if err := logging.Configure(cfg.LogLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg)
		},
	}
}

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify capabilities and runtime connectivity without installing routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(*configPath); err != nil {
				return &config.ValidationError{Err: err}
			}
			if err := startupcheck.CheckCapabilities(); err != nil {
				return err
			}
			rt, err := runtime.NewDockerClientFromEnv()
			if err != nil {
				return &startupcheck.RuntimeUnavailableError{Err: err}
			}
			defer rt.Close()
			if err := startupcheck.CheckRuntime(cmd.Context(), rt); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func configValidateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration utilities"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without running the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return &config.ValidationError{Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: warp_name_pattern=%q target_label=%q rules=%d\n",
				cfg.WarpNamePattern, cfg.TargetLabel, len(cfg.Rules))
			if len(cfg.Rules) > 0 {
				echoed, err := yaml.Marshal(cfg.Rules)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(echoed))
			}
			return nil
		},
	})
	return cmd
}

// runDaemon wires the Runtime Client, Classifier, Store, Namespace
// Provider and Route Programmer factory into a Reconciler and runs it
// until ctx is canceled.
func runDaemon(ctx context.Context, cfg config.AppConfig) error {
	if err := startupcheck.CheckCapabilities(); err != nil {
		return err
	}

	rt, err := runtime.NewDockerClientFromEnv()
	if err != nil {
		return &startupcheck.RuntimeUnavailableError{Err: err}
	}
	defer rt.Close()

	if err := startupcheck.CheckRuntime(ctx, rt); err != nil {
		return err
	}

	classifier := classify.New(classify.Config{
		WarpNamePattern:        cfg.WarpNamePattern,
		TargetLabel:            cfg.TargetLabel,
		NetworkPreferenceLabel: cfg.NetworkPreferenceLabel,
	})

	r := reconcile.New(
		reconcile.WithRuntime(rt),
		reconcile.WithClassifier(classifier),
		reconcile.WithStore(store.New()),
		reconcile.WithNamespaceProvider(newNamespaceProvider()),
		reconcile.WithProgrammerFactory(newProgrammerFactory()),
		reconcile.WithRules(cfg.Rules),
	)

	slog.Info("warpd starting", "warp_name_pattern", cfg.WarpNamePattern, "target_label", cfg.TargetLabel)
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("warpd shut down")
	return nil
}

func defaultConfigPath() string {
	if v := os.Getenv("WARPD_CONFIG"); v != "" {
		return v
	}
	return "/etc/warpd/config.yaml"
}
