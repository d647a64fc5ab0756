package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ancine-dash/internal/db"
	"ancine-dash/internal/db/repository"
	"ancine-dash/internal/domain"
)

// runJSON is the machine-readable shape of a ledger run.
type runJSON struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	Converted  int        `json:"converted"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toRunJSON(r *domain.IngestionRun) runJSON {
	return runJSON{
		ID: r.ID, Trigger: r.Trigger, Status: string(r.Status),
		Converted: r.Converted, Skipped: r.Skipped, Failed: r.Failed,
		Error: r.Error, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
	}
}

func newRunsCmd(rt *rootState) *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded ingestion runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := db.OpenLedger(rt.cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer ledger.Close() //nolint:errcheck
			repo := repository.NewRunRepo(ledger.Write, ledger.Read)

			page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
			runs, total, err := repo.ListRuns(cmd.Context(), page)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				out := struct {
					Runs          []runJSON `json:"runs"`
					NextPageToken string    `json:"next_page_token,omitempty"`
				}{Runs: make([]runJSON, 0, len(runs)), NextPageToken: next}
				for i := range runs {
					out.Runs = append(out.Runs, toRunJSON(&runs[i]))
				}
				return PrintJSON(w, out)
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID, r.Trigger, string(r.Status),
					fmt.Sprint(r.Converted), fmt.Sprint(r.Skipped), fmt.Sprint(r.Failed),
					r.StartedAt.Local().Format(time.DateTime),
				})
			}
			PrintTable(w, []string{"id", "trigger", "status", "converted", "skipped", "failed", "started"}, rows)
			if next != "" {
				fmt.Fprintf(w, "\nMore runs: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 20, "Runs per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token from a previous page")

	cmd.AddCommand(newRunsShowCmd(rt))
	return cmd
}

func newRunsShowCmd(rt *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its per-file results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := db.OpenLedger(rt.cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer ledger.Close() //nolint:errcheck
			repo := repository.NewRunRepo(ledger.Write, ledger.Read)

			run, err := repo.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := repo.ListFiles(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(w, map[string]any{"run": toRunJSON(run), "files": toResultsJSON(files)})
			}
			fmt.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.Trigger, run.Status)
			if run.Error != "" {
				fmt.Fprintf(w, "Error: %s\n", run.Error)
			}
			fmt.Fprintln(w)
			return printResults(cmd, files)
		},
	}
}
