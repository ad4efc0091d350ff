package frame

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ============================================================================
// I/O — CSV and database/sql loaders
// ============================================================================
// The caller reads data from wherever it lives. CSV columns are typed by
// InferSeries; SQL columns by the driver's Go types.
// ============================================================================

// CSVOption tweaks ReadCSV.
type CSVOption func(*csvOptions)

type csvOptions struct {
	delimiter rune
	name      string
	maxRows   int
}

// WithDelimiter sets the field separator (default ',').
func WithDelimiter(r rune) CSVOption {
	return func(o *csvOptions) { o.delimiter = r }
}

// WithFrameName names the resulting frame.
func WithFrameName(name string) CSVOption {
	return func(o *csvOptions) { o.name = name }
}

// WithMaxRows stops reading after n data rows (0 = all).
func WithMaxRows(n int) CSVOption {
	return func(o *csvOptions) { o.maxRows = n }
}

// ReadCSV parses CSV with a header row. Short rows are padded with nulls
// and long rows truncated. Blank header cells become unnamed_<i>, and
// repeated headers get a numeric suffix.
func ReadCSV(r io.Reader, opts ...CSVOption) (*DataFrame, error) {
	o := csvOptions{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)
	reader.Comma = o.delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV has no header row")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	headers = uniqueHeaders(headers)

	cols := make([][]string, len(headers))
	for {
		if o.maxRows > 0 && len(cols) > 0 && len(cols[0]) >= o.maxRows {
			break
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		for i := range headers {
			if i < len(row) {
				cols[i] = append(cols[i], row[i])
			} else {
				cols[i] = append(cols[i], "")
			}
		}
	}

	series := make([]*Series, len(headers))
	for i, h := range headers {
		series[i] = InferSeries(h, cols[i])
	}
	df, err := New(series...)
	if err != nil {
		return nil, err
	}
	df.name = o.name
	return df, nil
}

// ReadCSVFile reads a CSV file. The frame is named after the file.
func ReadCSVFile(path string, opts ...CSVOption) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	opts = append([]CSVOption{WithFrameName(name)}, opts...)
	df, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return df, nil
}

func uniqueHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("unnamed_%d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

// WriteCSV writes the frame with a header row. Nulls become empty fields.
func (df *DataFrame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(df.Columns()); err != nil {
		return err
	}
	row := make([]string, len(df.columns))
	for i := 0; i < df.rows; i++ {
		for c, s := range df.columns {
			row[c] = s.Format(i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to path, creating parent directories.
func (df *DataFrame) WriteCSVFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSQL runs query on db and loads the result set. Any database/sql
// driver works; column types follow the values the driver returns.
func ReadSQL(ctx context.Context, db *sql.DB, query string, args ...any) (*DataFrame, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	cols := make([][]any, len(names))
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			cols[i] = append(cols[i], normalizeSQLValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := make([]*Series, len(names))
	for i, name := range uniqueHeaders(names) {
		if cols[i] == nil {
			cols[i] = []any{}
		}
		s, err := NewSeries(name, cols[i])
		if err != nil {
			return nil, err
		}
		series[i] = s
	}
	return New(series...)
}

func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
