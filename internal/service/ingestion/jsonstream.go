package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ancine-dash/internal/domain"
)

// itemSegment in a key path means "each element of the array here".
const itemSegment = "item"

// Materialize streams the array found at keyPath in r and emits its objects
// flattened into batches of at most batchSize rows. keyPath uses dotted
// object keys with "item" standing for array elements, e.g. "data.item".
// A missing path or an empty array emits nothing and is not an error.
func Materialize(ctx context.Context, r io.Reader, keyPath string, batchSize int, emit func(*domain.Batch) error) (int64, error) {
	if strings.TrimSpace(keyPath) == "" {
		return 0, domain.ErrValidation("json key path is required")
	}
	if batchSize <= 0 {
		return 0, domain.ErrValidation("batch size must be positive, got %d", batchSize)
	}

	m := &materializer{
		ctx:       ctx,
		dec:       json.NewDecoder(r),
		batchSize: batchSize,
		emit:      emit,
		spelling:  make(map[string]string),
		logger:    slog.Default().With("component", "ingestion"),
	}
	m.dec.UseNumber()

	if err := m.walk(strings.Split(keyPath, ".")); err != nil {
		return m.rows, err
	}
	if err := m.flush(); err != nil {
		return m.rows, err
	}
	return m.rows, nil
}

type materializer struct {
	ctx       context.Context
	dec       *json.Decoder
	batchSize int
	emit      func(*domain.Batch) error
	logger    *slog.Logger

	pending []*record
	items   int64
	rows    int64

	// spelling maps a folded column name to the first spelling seen in the
	// stream, so "Nome" and "nome" in different items land in one column.
	spelling map[string]string
}

// walk consumes the next JSON value, descending along path. Values that do not
// match the path shape are skipped.
func (m *materializer) walk(path []string) error {
	if len(path) == 0 {
		var raw json.RawMessage
		if err := m.dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode item %d: %w", m.items, err)
		}
		return m.add(raw)
	}

	tok, err := m.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	seg := path[0]
	switch {
	case delim == '[' && seg == itemSegment:
		for m.dec.More() {
			if err := m.ctx.Err(); err != nil {
				return err
			}
			if err := m.walk(path[1:]); err != nil {
				return err
			}
		}
		return m.closeDelim(']')
	case delim == '{' && seg != itemSegment:
		for m.dec.More() {
			keyTok, err := m.dec.Token()
			if err != nil {
				return fmt.Errorf("read json key: %w", err)
			}
			if key, _ := keyTok.(string); key == seg {
				if err := m.walk(path[1:]); err != nil {
					return err
				}
				continue
			}
			if err := skipValue(m.dec); err != nil {
				return err
			}
		}
		return m.closeDelim('}')
	default:
		return skipRest(m.dec, delim)
	}
}

func (m *materializer) closeDelim(want json.Delim) error {
	tok, err := m.dec.Token()
	if err != nil {
		return fmt.Errorf("read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("read json: expected %q, got %v", want, tok)
	}
	return nil
}

func (m *materializer) add(raw json.RawMessage) error {
	idx := m.items
	m.items++
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.ErrValidation("json item %d is not an object", idx)
	}
	rec := newRecord()
	if err := flattenObject(trimmed, "", rec); err != nil {
		return fmt.Errorf("flatten item %d: %w", idx, err)
	}
	m.pending = append(m.pending, rec)
	if len(m.pending) >= m.batchSize {
		return m.flush()
	}
	return nil
}

// canonical returns the stream-wide spelling of a column name.
func (m *materializer) canonical(name string) string {
	key := domain.FoldName(name)
	if s, ok := m.spelling[key]; ok {
		return s
	}
	m.spelling[key] = name
	return name
}

// flush turns the pending records into one batch. Columns follow first
// appearance across the batch; keys absent from a record are null.
func (m *materializer) flush() error {
	if len(m.pending) == 0 {
		return nil
	}
	if err := m.ctx.Err(); err != nil {
		return err
	}

	var names []string
	seen := make(map[string]struct{})
	for _, rec := range m.pending {
		for _, k := range rec.keys {
			name := m.canonical(k)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		m.logger.Debug("dropped json items without fields", "items", len(m.pending), "first_item", m.items-int64(len(m.pending)))
		m.pending = m.pending[:0]
		return nil
	}
	schema, err := domain.NewSchema(names...)
	if err != nil {
		return err
	}
	batch := domain.NewBatch(schema, len(m.pending))
	for _, rec := range m.pending {
		values := make(map[string]domain.Value, len(rec.values))
		for k, v := range rec.values {
			values[m.canonical(k)] = v
		}
		if err := batch.AppendRecord(values); err != nil {
			return err
		}
	}
	m.pending = m.pending[:0]
	if err := m.emit(batch); err != nil {
		return err
	}
	m.rows += int64(batch.Len())
	return nil
}

// skipValue discards the next complete JSON value without buffering it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("skip json value: %w", err)
	}
	if d, ok := tok.(json.Delim); ok {
		return skipRest(dec, d)
	}
	return nil
}

// skipRest discards the remainder of a container whose opening delim has
// already been read.
func skipRest(dec *json.Decoder, open json.Delim) error {
	if open != '{' && open != '[' {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("skip json value: %w", err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
