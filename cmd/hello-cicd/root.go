package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aescanero/hello-cicd/internal/config"
)

// newRootCmd builds the command tree. Running the root command starts the server.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hello-cicd",
		Short:        "hello-cicd serves a fixed greeting for CI/CD pipelines",
		Long:         `hello-cicd is a minimal web server answering GET / with "Hello, AWS CI/CD!".`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd)
		},
	}

	cmd.Flags().String("host", "", "bind address (overrides HELLO_HTTP_HOST)")
	cmd.Flags().Int("port", 0, "listen port (overrides HELLO_HTTP_PORT)")
	cmd.Flags().Bool("debug", false, "enable debug mode and auto-reload (overrides HELLO_DEBUG)")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hello-cicd %s (built %s, %s %s/%s)\n",
				Version, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// applyFlagOverrides copies explicitly set flags over the environment configuration
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	if flags.Changed("host") {
		if cfg.HTTPHost, err = flags.GetString("host"); err != nil {
			return err
		}
	}
	if flags.Changed("port") {
		if cfg.HTTPPort, err = flags.GetInt("port"); err != nil {
			return err
		}
	}
	if flags.Changed("debug") {
		if cfg.Debug, err = flags.GetBool("debug"); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func runServer(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting hello-cicd",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.Bool("debug", cfg.Debug))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restart, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Error("hello-cicd failed", zap.Error(err))
		return err
	}

	if restart {
		logger.Info("restarting after change")
		_ = logger.Sync()
		return reexec()
	}

	logger.Info("hello-cicd shut down complete")
	return nil
}
