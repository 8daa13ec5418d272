package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/webdeploy/internal/config"
	"github.com/oshokin/webdeploy/internal/service/maintenance"
)

// maintenanceCmd is the operator escape hatch for toggling the maintenance
// window outside a deployment, using the same controller as the pipeline.
var maintenanceCmd = &cobra.Command{
	Use:       "maintenance [on|off|status]",
	Short:     "Enter, exit or inspect the maintenance window",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		applyLogLevel(ctx)

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		controller := maintenance.NewController(
			cfg.Maintenance.FlagFile,
			cfg.Cron.TabFile,
			cfg.Cron.Jobs,
		)

		switch args[0] {
		case "on":
			return controller.Enter(ctx)
		case "off":
			return controller.Exit(ctx)
		default:
			status, statusErr := controller.CurrentStatus(ctx)
			if statusErr != nil {
				return statusErr
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"flag raised: %t, jobs suspended: %t\n",
				status.FlagRaised, status.JobsSuspended)

			return nil
		}
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(maintenanceCmd)
}
