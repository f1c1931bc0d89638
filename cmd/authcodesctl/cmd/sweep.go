package cmd

import (
	"github.com/biihlive/authcodes/config"
	"github.com/biihlive/authcodes/internal/app"
	"github.com/biihlive/authcodes/internal/jobs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired codes now, using the server's store configuration",
	Long: `Opens the configured code store directly and deletes every record whose
expiry has passed, the same work the hourly cleanup job does.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		ctx := log.Logger.WithContext(cmd.Context())

		a, err := app.New(ctx, cfg, appLogger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(ctx) }()

		result, sweepErr := jobs.SweepAll(ctx, a.Sweepers())
		if err := printYAML(cmd.OutOrStdout(), map[string]interface{}{
			"deleted": map[string]int64(result),
			"total":   result.Total(),
		}); err != nil {
			return err
		}
		return sweepErr
	},
}
