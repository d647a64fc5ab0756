package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ancine-dash/internal/domain"
)

// extractDirName is the directory under the data dir that receives archive contents.
const extractDirName = "tmp_extract"

var errNoRows = errors.New("source has no rows")

// Options configures a Pipeline.
type Options struct {
	DataDir     string
	MasterFile  string
	Compression string
	Decoder     DecoderOptions
}

// Pipeline runs extraction, conversion and unification over a data directory.
// Files are processed one at a time; a failure in one file is recorded and
// the run moves on.
type Pipeline struct {
	opts    Options
	decoder *Decoder
	unifier *Unifier
	guard   domain.Guard
	runs    domain.RunRepository
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline. runs may be nil to skip the run ledger.
func NewPipeline(opts Options, duck *sql.DB, runs domain.RunRepository, logger *slog.Logger) *Pipeline {
	if opts.MasterFile == "" {
		opts.MasterFile = "ancine_all.parquet"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:    opts,
		decoder: NewDecoder(opts.Decoder),
		unifier: NewUnifier(duck, opts.DataDir, opts.MasterFile, opts.Compression),
		guard:   ExistenceGuard{},
		runs:    runs,
		logger:  logger.With("component", "ingestion"),
	}
}

// Run executes one manual ingestion run.
func (p *Pipeline) Run(ctx context.Context) (*domain.Report, error) {
	return p.RunTriggered(ctx, "manual")
}

// RunTriggered executes one ingestion run, recording trigger in the run ledger.
// The returned report is non-nil even when err is set.
func (p *Pipeline) RunTriggered(ctx context.Context, trigger string) (*domain.Report, error) {
	report := &domain.Report{StartedAt: time.Now().UTC()}

	if err := os.MkdirAll(p.extractDir(), 0o755); err != nil {
		return report, fmt.Errorf("prepare data dir: %w", err)
	}
	if _, err := parquetCodec(p.opts.Compression); err != nil {
		return report, err
	}

	if p.runs != nil {
		run, err := p.runs.StartRun(ctx, trigger)
		if err != nil {
			return report, fmt.Errorf("start run: %w", err)
		}
		report.RunID = run.ID
	}

	runErr := p.run(ctx, report)
	report.FinishedAt = time.Now().UTC()

	if p.runs != nil {
		// The run may have been cancelled; the ledger still gets its final state.
		if _, err := p.runs.FinishRun(context.WithoutCancel(ctx), report.RunID, report, runErr); err != nil && runErr == nil {
			runErr = fmt.Errorf("finish run: %w", err)
		}
	}

	p.logger.Info("ingestion run finished",
		"run_id", report.RunID,
		"converted", report.Count(domain.OutcomeConverted),
		"skipped", report.Count(domain.OutcomeSkipped),
		"failed", report.Count(domain.OutcomeFailed),
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, runErr
}

func (p *Pipeline) run(ctx context.Context, report *domain.Report) error {
	if err := p.extractAll(ctx, report); err != nil {
		return err
	}
	if err := p.convertAll(ctx, report); err != nil {
		return err
	}
	return p.unify(ctx, report)
}

func (p *Pipeline) extractDir() string {
	return filepath.Join(p.opts.DataDir, extractDirName)
}

func (p *Pipeline) extractAll(ctx context.Context, report *domain.Report) error {
	entries, err := os.ReadDir(p.opts.DataDir)
	if err != nil {
		return fmt.Errorf("list data dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || archiveKindOf(e.Name()) == archiveNone {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		archive := filepath.Join(p.opts.DataDir, e.Name())
		dest := filepath.Join(p.extractDir(), stem(archive))

		done, err := p.guard.Done(markerPath(dest))
		if err != nil {
			return err
		}
		if done {
			if err := p.record(ctx, report, domain.Skipped(domain.StepExtract, archive, dest, "already extracted")); err != nil {
				return err
			}
			continue
		}

		res, err := Extract(ctx, archive, dest)
		if isCancel(err) {
			return err
		}
		result := domain.Converted(domain.StepExtract, archive, dest, int64(res.Files))
		if err != nil {
			result = domain.Failed(domain.StepExtract, archive, dest, err)
		}
		if err := p.record(ctx, report, result); err != nil {
			return err
		}
	}
	return nil
}

// sources lists conversion inputs: everything under tmp_extract, then loose
// convertible files in the data dir, each group in lexical order.
func (p *Pipeline) sources() ([]string, error) {
	var out []string
	err := filepath.WalkDir(p.extractDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == extractedMarker {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list extracted files: %w", err)
	}

	entries, err := os.ReadDir(p.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	var loose []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch formatOf(e.Name()) {
		case formatCSV, formatXLSX, formatXLS, formatJSON:
			loose = append(loose, filepath.Join(p.opts.DataDir, e.Name()))
		}
	}
	sort.Strings(loose)
	return append(out, loose...), nil
}

func (p *Pipeline) convertAll(ctx context.Context, report *domain.Report) error {
	srcs, err := p.sources()
	if err != nil {
		return err
	}
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := p.convert(ctx, src)
		if err != nil {
			return err
		}
		if err := p.record(ctx, report, result); err != nil {
			return err
		}
	}
	return nil
}

// convert handles one source file. The returned error is reserved for
// conditions that stop the whole run; per-file problems come back as a
// Failed result.
func (p *Pipeline) convert(ctx context.Context, src string) (domain.FileResult, error) {
	f := formatOf(src)
	if f == formatUnknown {
		return domain.Skipped(domain.StepConvert, src, "", "unsupported extension"), nil
	}
	out := filepath.Join(p.opts.DataDir, outputName(src))
	if filepath.Base(out) == p.opts.MasterFile {
		return domain.Failed(domain.StepConvert, src, out,
			domain.ErrValidation("source name %q is reserved for the master dataset", stem(src))), nil
	}

	done, err := p.guard.Done(out)
	if err != nil {
		return domain.FileResult{}, err
	}
	if done {
		return domain.Skipped(domain.StepConvert, src, out, "output exists"), nil
	}

	var rows int64
	if f == formatParquet {
		rows, err = passthrough(src, out)
	} else {
		rows, err = p.decodeTo(ctx, src, out)
	}
	switch {
	case isCancel(err):
		return domain.FileResult{}, err
	case errors.Is(err, errNoRows):
		return domain.Skipped(domain.StepConvert, src, out, errNoRows.Error()), nil
	case err != nil:
		return domain.Failed(domain.StepConvert, src, out, err), nil
	}
	return domain.Converted(domain.StepConvert, src, out, rows), nil
}

func (p *Pipeline) decodeTo(ctx context.Context, src, out string) (int64, error) {
	w, err := NewColumnarWriter(out, WriterOptions{Compression: p.opts.Compression})
	if err != nil {
		return 0, err
	}
	if _, err := p.decoder.Decode(ctx, src, func(b *domain.Batch) error {
		return w.Write(ctx, b)
	}); err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	if w.Rows() == 0 {
		return 0, errNoRows
	}
	return w.Rows(), nil
}

func (p *Pipeline) unify(ctx context.Context, report *domain.Report) error {
	master := p.unifier.MasterPath()
	done, err := p.guard.Done(master)
	if err != nil {
		return err
	}
	if done {
		return p.record(ctx, report, domain.Skipped(domain.StepUnify, p.opts.DataDir, master, "master dataset exists"))
	}

	res, err := p.unifier.Unify(ctx)
	if err != nil {
		p.logger.Error("unify failed", "output", master, "error", err)
		return fmt.Errorf("unify: %w", err)
	}
	p.logger.Debug("unified columns", "columns", res.Columns, "sources", len(res.Sources))
	return p.record(ctx, report, domain.Converted(domain.StepUnify, p.opts.DataDir, master, res.Rows))
}

// record appends a result to the report, logs it and writes it to the ledger.
func (p *Pipeline) record(ctx context.Context, report *domain.Report, r domain.FileResult) error {
	report.Results = append(report.Results, r)

	attrs := []any{"step", string(r.Step), "input", r.Input, "output", r.Output}
	switch r.Outcome {
	case domain.OutcomeConverted:
		p.logger.Info("converted", append(attrs, "rows", r.Rows)...)
	case domain.OutcomeSkipped:
		p.logger.Info("skipped", append(attrs, "reason", r.Reason)...)
	case domain.OutcomeFailed:
		p.logger.Error("failed", append(attrs, "error", r.Reason)...)
	}

	if p.runs == nil {
		return nil
	}
	if err := p.runs.RecordFile(context.WithoutCancel(ctx), report.RunID, r); err != nil {
		return fmt.Errorf("record file result: %w", err)
	}
	return nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
