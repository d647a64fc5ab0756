package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ancine-dash/internal/domain"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintTable writes rows under upper-cased headers, columns separated by at
// least two spaces. No columns means no output.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// fileResultJSON is the machine-readable shape of a step result.
type fileResultJSON struct {
	Step    string `json:"step"`
	Input   string `json:"input"`
	Output  string `json:"output"`
	Outcome string `json:"outcome"`
	Rows    int64  `json:"rows"`
	Reason  string `json:"reason,omitempty"`
}

func toResultsJSON(results []domain.FileResult) []fileResultJSON {
	out := make([]fileResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, fileResultJSON{
			Step: string(r.Step), Input: r.Input, Output: r.Output,
			Outcome: string(r.Outcome), Rows: r.Rows, Reason: r.Reason,
		})
	}
	return out
}

func printResults(cmd *cobra.Command, results []domain.FileResult) error {
	w := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(w, toResultsJSON(results))
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{string(r.Step), string(r.Outcome), r.Input, fmt.Sprint(r.Rows), r.Reason})
	}
	PrintTable(w, []string{"step", "outcome", "input", "rows", "reason"}, rows)
	return nil
}
