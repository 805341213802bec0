package cli

import (
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/repository"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the spreadsheet store with its header row if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Store.Backend != repository.BackendExcel {
				return fmt.Errorf("init only applies to the excel backend (configured: %s)", cfg.Store.Backend)
			}

			repo := repository.NewExcelPatientsRepository(cfg.Store.ExcelPath, logger)
			if err := repo.EnsureStore(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store ready: %s\n", repo.Path())
			return nil
		},
	}
}
