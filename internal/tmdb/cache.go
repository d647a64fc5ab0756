package tmdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// cacheColumn is the single column of a cache artifact.
const cacheColumn = "json"

var cacheSchema = arrow.NewSchema([]arrow.Field{
	{Name: cacheColumn, Type: arrow.BinaryTypes.String},
}, nil)

// Cache stores raw detail responses as one-row Parquet files named <id>.parquet.
type Cache struct {
	dir string
	mem memory.Allocator
}

// NewCache creates a cache rooted at dir. The directory is created on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, mem: memory.DefaultAllocator}
}

// Path returns the artifact location for a movie id.
func (c *Cache) Path(id int64) string {
	return filepath.Join(c.dir, strconv.FormatInt(id, 10)+".parquet")
}

// Get returns the cached payload for id. A missing artifact is a miss; an
// unreadable one is deleted and reported as a miss together with the read error.
func (c *Cache) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	path := c.Path(id)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	payload, err := c.read(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, err
	}
	return payload, true, nil
}

func (c *Cache) read(ctx context.Context, path string) ([]byte, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open cache artifact: %w", err)
	}
	defer rdr.Close() //nolint:errcheck

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, c.mem)
	if err != nil {
		return nil, fmt.Errorf("read cache artifact: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cache table: %w", err)
	}
	defer tbl.Release()

	if tbl.NumCols() != 1 || tbl.Column(0).Name() != cacheColumn || tbl.NumRows() != 1 {
		return nil, fmt.Errorf("cache artifact %s has an unexpected shape", filepath.Base(path))
	}
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		strs, ok := chunk.(*array.String)
		if !ok || strs.Len() == 0 {
			continue
		}
		if strs.IsNull(0) {
			return nil, fmt.Errorf("cache artifact %s holds a null payload", filepath.Base(path))
		}
		return []byte(strs.Value(0)), nil
	}
	return nil, fmt.Errorf("cache artifact %s holds no payload", filepath.Base(path))
}

// Put writes payload for id. The artifact is written to a temporary name and
// renamed so readers never observe a partial file.
func (c *Cache) Put(id int64, payload []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := c.Path(id)
	tmp := path + ".partial"

	out, err := os.Create(tmp) //nolint:gosec // path built from a numeric id
	if err != nil {
		return fmt.Errorf("create cache artifact: %w", err)
	}
	if err := c.write(out, payload); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize cache artifact: %w", err)
	}
	return nil
}

func (c *Cache) write(out *os.File, payload []byte) error {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(c.mem),
	)
	fw, err := pqarrow.NewFileWriter(cacheSchema, out, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("open cache writer: %w", err)
	}

	rb := array.NewRecordBuilder(c.mem, cacheSchema)
	defer rb.Release()
	rb.Field(0).(*array.StringBuilder).Append(string(payload))
	rec := rb.NewRecord()
	defer rec.Release()

	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write cache artifact: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close cache artifact: %w", err)
	}
	return nil
}
