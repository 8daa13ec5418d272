package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/logger"
	"github.com/oshokin/webdeploy/internal/service/deployer"
	"github.com/oshokin/webdeploy/internal/version"
)

var (
	// configPath to the deployment manifest YAML file.
	configPath string

	// configOnly forces a config-only run regardless of the manifest mode.
	configOnly bool

	// logLevel overrides the manifest log level when set.
	logLevel string

	// rootCmd represents the base command running the deployment pipeline.
	rootCmd = &cobra.Command{
		Use:   "webdeploy",
		Short: "Deploy a web application release with zero downtime",
		Long: "Fetch a release artifact, prepare an isolated release directory, atomically " +
			"cut the live root over to it, relink shared resources, run migrations and " +
			"restore normal cron and service operation. Safe to re-run after partial failure.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel(ctx)

			options := &deployer.Options{
				ConfigPath: configPath,
				ConfigOnly: configOnly,
			}

			return deployer.Run(ctx, options)
		},
	}
)

// Execute runs the webdeploy CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel applies the command-line level override, when provided.
func applyLogLevel(ctx context.Context) {
	if logLevel == "" {
		return
	}

	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping default", "level", logLevel)
		return
	}

	logger.SetLevel(level)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to deployment manifest")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&configOnly, "config-only", false,
		"skip fetch and prepare; reconcile configuration against the existing release")
}
