package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"ancine-dash/internal/domain"
)

// WriterOptions configures a ColumnarWriter.
type WriterOptions struct {
	Compression string // parquet codec name, default snappy
}

// ColumnarWriter writes batches to one Parquet file whose columns are all
// nullable utf8. The file is opened on the first batch, which also fixes the
// schema. Data goes to <path>.partial and is renamed to path on Close.
type ColumnarWriter struct {
	path  string
	codec compress.Compression
	mem   memory.Allocator

	out         *os.File
	fw          *pqarrow.FileWriter
	schema      domain.Schema
	arrowSchema *arrow.Schema
	rows        int64
	done        bool
}

// NewColumnarWriter validates options and returns a writer for path. Nothing
// is created on disk until the first Write.
func NewColumnarWriter(path string, opts WriterOptions) (*ColumnarWriter, error) {
	codec, err := parquetCodec(opts.Compression)
	if err != nil {
		return nil, err
	}
	return &ColumnarWriter{path: path, codec: codec, mem: memory.DefaultAllocator}, nil
}

// Rows returns the number of rows written so far.
func (w *ColumnarWriter) Rows() int64 { return w.rows }

// Write appends a batch. Batches after the first must carry the same set of
// columns, in any order; otherwise the file is aborted with a SchemaDriftError.
func (w *ColumnarWriter) Write(ctx context.Context, b *domain.Batch) error {
	if w.done {
		return fmt.Errorf("write %s: writer is closed", w.path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.fw == nil {
		if err := w.open(b.Schema); err != nil {
			return err
		}
	} else if !w.schema.SameColumns(b.Schema) {
		w.Abort()
		return &domain.SchemaDriftError{
			Path:     w.path,
			Expected: w.schema.SortedNames(),
			Got:      b.Schema.SortedNames(),
		}
	}
	if b.Len() == 0 {
		return nil
	}

	rec := w.buildRecord(b)
	defer rec.Release()
	if err := w.fw.Write(rec); err != nil {
		w.Abort()
		return fmt.Errorf("write parquet %s: %w", w.path, err)
	}
	w.rows += int64(b.Len())
	return nil
}

// Close finalizes the file and moves it into place. A writer that never
// received a batch creates nothing.
func (w *ColumnarWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.fw == nil {
		return nil
	}
	partial := partialPath(w.path)
	// The parquet writer closes the underlying file as part of its footer write.
	err := w.fw.Close()
	if cerr := w.out.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	w.fw, w.out = nil, nil
	if err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("close parquet %s: %w", w.path, err)
	}
	if _, err := os.Stat(w.path); err == nil {
		_ = os.Remove(partial)
		return fmt.Errorf("finalize %s: %w", w.path, domain.ErrOutputExists)
	}
	if err := os.Rename(partial, w.path); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}
	return nil
}

// Abort discards everything written so far.
func (w *ColumnarWriter) Abort() {
	w.done = true
	if w.fw != nil {
		_ = w.fw.Close()
		w.fw = nil
	}
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
		_ = os.Remove(partialPath(w.path))
	}
}

func (w *ColumnarWriter) open(schema domain.Schema) error {
	if _, err := os.Stat(w.path); err == nil {
		return fmt.Errorf("open %s: %w", w.path, domain.ErrOutputExists)
	}

	fields := make([]arrow.Field, schema.Len())
	for i, name := range schema.Names() {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	out, err := os.Create(partialPath(w.path)) //nolint:gosec // path derived from the data directory
	if err != nil {
		return fmt.Errorf("create %s: %w", partialPath(w.path), err)
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(w.codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithAllocator(w.mem),
	)
	fw, err := pqarrow.NewFileWriter(arrowSchema, out, props,
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(partialPath(w.path))
		return fmt.Errorf("create parquet writer: %w", err)
	}

	w.out, w.fw = out, fw
	w.schema, w.arrowSchema = schema, arrowSchema
	return nil
}

// buildRecord converts a batch into an arrow record laid out in file column order.
func (w *ColumnarWriter) buildRecord(b *domain.Batch) arrow.Record {
	rb := array.NewRecordBuilder(w.mem, w.arrowSchema)
	defer rb.Release()

	for j, name := range w.schema.Names() {
		src, _ := b.Schema.Index(name)
		sb := rb.Field(j).(*array.StringBuilder)
		sb.Reserve(b.Len())
		for _, row := range b.Rows {
			if v := row[src]; v.Valid {
				sb.Append(v.String)
			} else {
				sb.AppendNull()
			}
		}
	}
	return rb.NewRecord()
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4_raw", "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported parquet compression %q", name)
	}
}

// parquetInfo reads the column names and row count from a Parquet footer.
func parquetInfo(path string) ([]string, int64, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, 0, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer rdr.Close() //nolint:errcheck

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, 0, fmt.Errorf("read parquet %s: %w", path, err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, 0, fmt.Errorf("read parquet schema %s: %w", path, err)
	}
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names, rdr.NumRows(), nil
}
