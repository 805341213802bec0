package cli

import (
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "prms"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the prms command tree. Without a subcommand it serves HTTP.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "prms",
		Short: "Patient Referral Management System",
		Long: `Track patient referrals: register referred patients, search records,
update referral status and view status counts on a dashboard.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default: $PRMS_CONFIG)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// loadConfig reads configuration and builds the process logger.
func loadConfig(opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
