package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ancine-dash/internal/source"
)

func newSyncCmd(rt *rootState) *cobra.Command {
	var ingest bool

	cmd := &cobra.Command{
		Use:   "sync [s3://bucket/prefix | az://container/prefix | gs://bucket/prefix]",
		Short: "Download source files from object storage into the data directory",
		Long: "Lists the prefix and downloads every supported archive or source file that is not " +
			"already present in the data directory. Without an argument SOURCE_URI is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := rt.cfg.SourceURI
			if len(args) == 1 {
				uri = args[0]
			}
			if uri == "" {
				return errors.New("no source given: pass a URI or set SOURCE_URI")
			}
			loc, err := source.ParseURI(uri)
			if err != nil {
				return err
			}

			bucket, err := source.Open(cmd.Context(), loc, rt.cfg.Storage)
			if err != nil {
				return err
			}
			defer bucket.Close() //nolint:errcheck

			syncer := source.NewSyncer(bucket, loc, rt.cfg.DataDir, rt.cfg.MasterFile, rt.logger)
			results, syncErr := syncer.Sync(cmd.Context())
			if !ingest || syncErr != nil {
				if err := printResults(cmd, results); err != nil {
					return err
				}
				if syncErr != nil {
					return fmt.Errorf("sync: %w", syncErr)
				}
				return nil
			}

			s, err := rt.openStores()
			if err != nil {
				return err
			}
			defer s.Close()
			report, runErr := rt.newApp(s).Pipeline.RunTriggered(cmd.Context(), "sync")
			if err := printResults(cmd, append(results, report.Results...)); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("ingest: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Run the ingestion pipeline after downloading")
	return cmd
}
