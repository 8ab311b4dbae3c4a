// Package artifact writes the write-only audit dumps of a pipeline run:
// raw page responses, the merged batch as JSON and CSV, and the aggregation
// report. Every file name carries the operation timestamp.
package artifact

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
)

// TimestampLayout is the timestamp embedded in artifact file names.
const TimestampLayout = "20060102_150405"

// DefaultDir is where artifacts land unless configured otherwise.
const DefaultDir = "raw_data"

// Writer writes artifacts below one directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates the directory if needed and returns a writer rooted at it.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the artifact directory.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) path(prefix, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, w.now().Format(TimestampLayout), ext)
	return filepath.Join(w.dir, name)
}

// WriteRawPage stores a page response body verbatim.
func (w *Writer) WriteRawPage(page int, body []byte) (string, error) {
	path := w.path(fmt.Sprintf("raw_response_page_%d", page), "txt")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write raw page %d: %w", page, err)
	}
	return path, nil
}

// WriteJSON stores v as indented JSON without HTML escaping.
func (w *Writer) WriteJSON(prefix string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", prefix, err)
	}

	path := w.path(prefix, "json")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteCSV stores records as a CSV table. Columns are the sorted union of
// all record keys; nested values are JSON encoded and missing fields are empty.
func (w *Writer) WriteCSV(prefix string, records []catalog.RawRecord) (string, error) {
	data, err := RenderCSV(records)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", prefix, err)
	}

	path := w.path(prefix, "csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// RenderCSV renders records as RFC 4180 CSV with a header row.
func RenderCSV(records []catalog.RawRecord) ([]byte, error) {
	columns := Columns(records)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(columns); err != nil {
		return nil, err
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = cell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// Columns returns the sorted union of keys across records.
func Columns(records []catalog.RawRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
