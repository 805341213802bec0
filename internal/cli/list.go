package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/logger"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/service"

	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

type listOptions struct {
	Search string
	Format string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print referral records",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			// 服务日志写 stdout，会污染列表输出
			log := logger.NewCLILogger()
			defer func() { _ = log.Sync() }()

			repo, closeRepo, err := openRepository(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := service.NewPatientService(repo, nil, log)
			resp, err := svc.ListPatients(cmd.Context(), service.ListPatientsRequest{Search: opts.Search})
			if err != nil {
				return err
			}
			return writePatients(cmd.OutOrStdout(), opts.Format, resp.Items)
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "filter by name (case-insensitive) or mobile substring")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func writePatients(w io.Writer, format string, patients []domain.Patient) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(patients)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REFID\tNAME\tMOBILE\tREFERRED\tDRNAME\tSTATUS\tCREATED AT")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Mobile, p.Referred, p.DrName, p.Status, p.CreatedAt)
	}
	return tw.Flush()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
