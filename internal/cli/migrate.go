package cli

import (
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
