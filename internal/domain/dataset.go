package domain

import (
	"database/sql"
	"sort"
	"strings"
)

// Schema is an ordered set of unique, non-empty column names. Uniqueness
// ignores case, as DuckDB identifiers do.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema validates names and builds a Schema preserving their order.
func NewSchema(names ...string) (Schema, error) {
	if len(names) == 0 {
		return Schema{}, ErrValidation("schema must have at least one column")
	}
	index := make(map[string]int, len(names))
	folded := make(map[string]string, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return Schema{}, ErrValidation("column %d has an empty name", i)
		}
		if prev, dup := folded[FoldName(n)]; dup {
			if prev == n {
				return Schema{}, ErrValidation("duplicate column %q", n)
			}
			return Schema{}, ErrValidation("duplicate column %q (same as %q ignoring case)", n, prev)
		}
		folded[FoldName(n)] = n
		index[n] = i
	}
	return Schema{names: append([]string(nil), names...), index: index}, nil
}

// Names returns a copy of the column names in order.
func (s Schema) Names() []string { return append([]string(nil), s.names...) }

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.names) }

// Index returns the position of a column.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// SameColumns reports whether both schemas hold the same set of names,
// regardless of order.
func (s Schema) SameColumns(o Schema) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for _, n := range s.names {
		if _, ok := o.index[n]; !ok {
			return false
		}
	}
	return true
}

// SortedNames returns the column names sorted, for stable error messages.
func (s Schema) SortedNames() []string {
	out := s.Names()
	sort.Strings(out)
	return out
}

// FoldName is the key under which two column names count as the same column.
func FoldName(name string) string { return strings.ToLower(name) }

// Value is one untyped cell. Invalid means SQL NULL.
type Value = sql.NullString

// Text returns a non-null Value.
func Text(s string) Value { return Value{String: s, Valid: true} }

// Null returns a null Value.
func Null() Value { return Value{} }

// Batch is a bounded group of source records sharing one schema.
// Rows are positional: Rows[i][j] is the value of Schema column j.
type Batch struct {
	Schema Schema
	Rows   [][]Value
}

// NewBatch creates an empty batch with room for capacity rows.
func NewBatch(schema Schema, capacity int) *Batch {
	return &Batch{Schema: schema, Rows: make([][]Value, 0, capacity)}
}

// AppendRow adds a positional row; the row length must match the schema.
func (b *Batch) AppendRow(values []Value) error {
	if len(values) != b.Schema.Len() {
		return ErrValidation("row has %d values, schema has %d columns", len(values), b.Schema.Len())
	}
	b.Rows = append(b.Rows, values)
	return nil
}

// AppendRecord adds a row from a column-name mapping. Columns absent from
// the mapping are null; names outside the schema are rejected.
func (b *Batch) AppendRecord(rec map[string]Value) error {
	row := make([]Value, b.Schema.Len())
	for name, v := range rec {
		i, ok := b.Schema.Index(name)
		if !ok {
			return ErrValidation("column %q is not part of the batch schema", name)
		}
		row[i] = v
	}
	b.Rows = append(b.Rows, row)
	return nil
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.Rows) }
