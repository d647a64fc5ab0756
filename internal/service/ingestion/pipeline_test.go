package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/db"
	"ancine-dash/internal/db/repository"
	"ancine-dash/internal/domain"
)

func newTestPipeline(t *testing.T, dataDir string, runs domain.RunRepository) *Pipeline {
	t.Helper()
	return NewPipeline(Options{DataDir: dataDir}, openDuck(t), runs, nil)
}

func putFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// resultFor returns the result of the given step whose input has the given base name.
func resultFor(t *testing.T, r *domain.Report, step domain.Step, base string) domain.FileResult {
	t.Helper()
	for _, fr := range r.Results {
		if fr.Step == step && filepath.Base(fr.Input) == base {
			return fr
		}
	}
	t.Fatalf("no %s result for %s", step, base)
	return domain.FileResult{}
}

func TestPipeline_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "lote.zip"), map[string]string{
		"2023/sessoes_a.csv": "TITULO_BRASIL;PUBLICO\nBACURAU;10\nAQUARIUS;5\n",
		"leia-me.txt":        "ignored",
	})
	putFile(t, filepath.Join(dir, "sessoes_b.json"),
		`{"data":[{"PUBLICO":"7","UF":"SP","meta":{"sala":"1"}}]}`)

	p := newTestPipeline(t, dir, nil)
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeConverted, resultFor(t, report, domain.StepExtract, "lote.zip").Outcome)
	assert.Equal(t, domain.OutcomeSkipped, resultFor(t, report, domain.StepConvert, "leia-me.txt").Outcome)

	a := resultFor(t, report, domain.StepConvert, "sessoes_a.csv")
	assert.Equal(t, domain.OutcomeConverted, a.Outcome)
	assert.Equal(t, int64(2), a.Rows)
	assert.Equal(t, filepath.Join(dir, "sessoes_a.parquet"), a.Output)

	b := resultFor(t, report, domain.StepConvert, "sessoes_b.json")
	assert.Equal(t, domain.OutcomeConverted, b.Outcome)
	assert.Equal(t, []string{"PUBLICO", "UF", "meta.sala"}, readParquet(t, b.Output).Columns)

	unify := report.Results[len(report.Results)-1]
	assert.Equal(t, domain.StepUnify, unify.Step)
	assert.Equal(t, domain.OutcomeConverted, unify.Outcome)
	assert.Equal(t, int64(3), unify.Rows)

	master := readParquet(t, filepath.Join(dir, "ancine_all.parquet"))
	assert.ElementsMatch(t, []string{"TITULO_BRASIL", "PUBLICO", "UF", "meta.sala"}, master.Columns)
	assert.Len(t, master.Rows, 3)
	assert.Empty(t, report.Failures())
}

func TestPipeline_HeadersDifferingOnlyInCaseKeepBothValues(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "valores.csv"), "valor;VALOR\n1;2\n")

	report, err := newTestPipeline(t, dir, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Failures())

	master := readParquet(t, filepath.Join(dir, "ancine_all.parquet"))
	assert.Equal(t, []string{"valor", "VALOR_2"}, master.Columns)
	require.Len(t, master.Rows, 1)
	assert.Equal(t, str("1"), master.Rows[0]["valor"])
	assert.Equal(t, str("2"), master.Rows[0]["VALOR_2"])
}

func TestPipeline_SecondRunConvertsNothing(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "lote.zip"), map[string]string{"a.csv": "A;B\n1;2\n"})
	putFile(t, filepath.Join(dir, "b.csv"), "B;C\n3;4\n")

	p := newTestPipeline(t, dir, nil)
	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, first.Count(domain.OutcomeConverted))

	master := filepath.Join(dir, "ancine_all.parquet")
	before, err := os.Stat(master)
	require.NoError(t, err)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Count(domain.OutcomeConverted))
	assert.Zero(t, second.Count(domain.OutcomeFailed))
	assert.Equal(t, "output exists", resultFor(t, second, domain.StepConvert, "b.csv").Reason)

	after, err := os.Stat(master)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestPipeline_FailureIsolatedPerFile(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "a.csv"), "A;B\n1;2\n")
	putFile(t, filepath.Join(dir, "b.csv"), "A;B\n1;2;3;4\n")
	putFile(t, filepath.Join(dir, "c.csv"), "B;C\n5;6\n")

	report, err := newTestPipeline(t, dir, nil).Run(context.Background())
	require.NoError(t, err)

	bad := resultFor(t, report, domain.StepConvert, "b.csv")
	assert.Equal(t, domain.OutcomeFailed, bad.Outcome)
	assert.Contains(t, bad.Reason, "fields")
	assert.NoFileExists(t, filepath.Join(dir, "b.parquet"))
	assert.NoFileExists(t, partialPath(filepath.Join(dir, "b.parquet")))

	assert.Equal(t, domain.OutcomeConverted, resultFor(t, report, domain.StepConvert, "a.csv").Outcome)
	assert.Equal(t, domain.OutcomeConverted, resultFor(t, report, domain.StepConvert, "c.csv").Outcome)

	master := readParquet(t, filepath.Join(dir, "ancine_all.parquet"))
	assert.Equal(t, []string{"A", "B", "C"}, master.Columns)
	assert.Len(t, master.Rows, 2)
}

func TestPipeline_SameStemFirstWins(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "lote.zip"), map[string]string{"dup.csv": "ORIGEM\nzip\n"})
	putFile(t, filepath.Join(dir, "dup.csv"), "ORIGEM\nsolto\n")

	report, err := newTestPipeline(t, dir, nil).Run(context.Background())
	require.NoError(t, err)

	var outcomes []domain.Outcome
	for _, fr := range report.Results {
		if fr.Step == domain.StepConvert && filepath.Base(fr.Input) == "dup.csv" {
			outcomes = append(outcomes, fr.Outcome)
		}
	}
	assert.Equal(t, []domain.Outcome{domain.OutcomeConverted, domain.OutcomeSkipped}, outcomes)

	tbl := readParquet(t, filepath.Join(dir, "dup.parquet"))
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, str("zip"), tbl.Rows[0]["ORIGEM"])
}

func TestPipeline_ReservedAndEmptySources(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "ancine_all.csv"), "A\n1\n")
	putFile(t, filepath.Join(dir, "vazio.csv"), "A;B\n")
	putFile(t, filepath.Join(dir, "ok.csv"), "A\n2\n")

	report, err := newTestPipeline(t, dir, nil).Run(context.Background())
	require.NoError(t, err)

	reserved := resultFor(t, report, domain.StepConvert, "ancine_all.csv")
	assert.Equal(t, domain.OutcomeFailed, reserved.Outcome)
	assert.Contains(t, reserved.Reason, "reserved")

	empty := resultFor(t, report, domain.StepConvert, "vazio.csv")
	assert.Equal(t, domain.OutcomeSkipped, empty.Outcome)
	assert.Equal(t, "source has no rows", empty.Reason)
	assert.NoFileExists(t, filepath.Join(dir, "vazio.parquet"))
}

func TestPipeline_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "quebrado.zip"), "not a zip")
	putFile(t, filepath.Join(dir, "ok.csv"), "A\n1\n")

	report, err := newTestPipeline(t, dir, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, resultFor(t, report, domain.StepExtract, "quebrado.zip").Outcome)
	assert.NoDirExists(t, filepath.Join(dir, extractDirName, "quebrado"))
	assert.FileExists(t, filepath.Join(dir, "ancine_all.parquet"))
}

func TestPipeline_NoSourcesIsFatal(t *testing.T) {
	report, err := newTestPipeline(t, t.TempDir(), nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoSources))
	require.NotNil(t, report)
}

func TestPipeline_Cancelled(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "a.csv"), "A\n1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(t, dir, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "ancine_all.parquet"))
}

func TestPipeline_RecordsLedger(t *testing.T) {
	dir := t.TempDir()
	putFile(t, filepath.Join(dir, "a.csv"), "A\n1\n")
	putFile(t, filepath.Join(dir, "b.csv"), "A\n1;2\n")

	ledger := db.OpenTestLedger(t)
	runs := repository.NewRunRepo(ledger.Write, ledger.Read)

	report, err := newTestPipeline(t, dir, runs).RunTriggered(context.Background(), "schedule")
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	run, err := runs.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "schedule", run.Trigger)
	assert.Equal(t, domain.RunStatusPartial, run.Status)
	assert.Equal(t, 2, run.Converted)
	assert.Equal(t, 1, run.Failed)
	assert.NotNil(t, run.FinishedAt)

	files, err := runs.ListFiles(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, files, len(report.Results))
}

func TestPipeline_InvalidCompression(t *testing.T) {
	p := NewPipeline(Options{DataDir: t.TempDir(), Compression: "rar"}, openDuck(t), nil, nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
}
