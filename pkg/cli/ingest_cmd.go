package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ancine-dash/internal/domain"
)

func newIngestCmd(rt *rootState) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract, convert and unify the source files in the data directory",
		Long: "Extracts archives, converts every CSV, spreadsheet and JSON source to Parquet and " +
			"unifies them into the master dataset. Steps whose output already exists are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rt.openStores()
			if err != nil {
				return err
			}
			defer s.Close()

			report, runErr := rt.newApp(s).Pipeline.Run(cmd.Context())
			if err := printResults(cmd, report.Results); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("ingest: %w", runErr)
			}
			if n := report.Count(domain.OutcomeFailed); strict && n > 0 {
				return fmt.Errorf("ingest: %d file(s) failed", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any file failed")
	return cmd
}
