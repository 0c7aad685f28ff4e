package knowledge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/adtree/internal/capec"
)

// CAPEC CSV export column names.
const (
	colID                = "ID"
	colName              = "Name"
	colAbstraction       = "Abstraction"
	colStatus            = "Status"
	colDescription       = "Description"
	colExecutionFlow     = "Execution Flow"
	colRelatedPatterns   = "Related Attack Patterns"
	colRelatedWeaknesses = "Related Weaknesses"
	colMitigations       = "Mitigations"
)

// RelatedPatternsColumn is the export column holding relationship text.
const RelatedPatternsColumn = colRelatedPatterns

// header maps normalized column names to their index.
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		// MITRE's export writes the first column as "'ID", sometimes
		// behind a UTF-8 BOM.
		c = strings.TrimPrefix(c, "\ufeff")
		c = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c), "'"))
		if _, dup := h[strings.ToLower(c)]; !dup {
			h[strings.ToLower(c)] = i
		}
	}
	return h
}

func (h header) field(row []string, name string) string {
	i, ok := h[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h header) record(row []string) capec.Record {
	return capec.Record{
		ID:                capec.NormalizeID(h.field(row, colID)),
		Name:              h.field(row, colName),
		Abstraction:       capec.ParseAbstraction(h.field(row, colAbstraction)),
		Status:            h.field(row, colStatus),
		Description:       h.field(row, colDescription),
		ExecutionFlow:     h.field(row, colExecutionFlow),
		RelatedPatterns:   h.field(row, colRelatedPatterns),
		RelatedWeaknesses: h.field(row, colRelatedWeaknesses),
		Mitigations:       h.field(row, colMitigations),
	}
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// ReadCSV parses a CAPEC CSV export (or a per-pattern split file).
// Blank rows and rows without an ID are skipped.
func ReadCSV(r io.Reader) ([]capec.Record, error) {
	cr := newCSVReader(r)
	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	h := newHeader(cols)
	if _, ok := h[strings.ToLower(colID)]; !ok {
		return nil, fmt.Errorf("csv header has no %q column", colID)
	}

	var records []capec.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		rec := h.record(row)
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Upserter is the write side needed by Import.
type Upserter interface {
	UpsertRecords(ctx context.Context, records []capec.Record) (int, error)
}

// Import reads a CAPEC CSV export and upserts every record into dst.
func Import(ctx context.Context, dst Upserter, r io.Reader) (int, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	return dst.UpsertRecords(ctx, records)
}

// SplitCSV writes one capec_<id>.csv file per row of a master table,
// each carrying the original header. It returns the number of files written.
func SplitCSV(r io.Reader, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	cr := newCSVReader(r)
	cols, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	h := newHeader(cols)

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading csv: %w", err)
		}
		id := capec.NormalizeID(h.field(row, colID))
		if !validFileID(id) {
			continue
		}
		if err := writeSplitFile(filepath.Join(outDir, splitFileName(id)), cols, row); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeSplitFile(path string, cols, row []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(cols)
	_ = w.Write(row)
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func splitFileName(id string) string {
	return "capec_" + id + ".csv"
}

// validFileID rejects ids that would escape the split directory.
func validFileID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// RewriteColumn copies a CSV table from r to w, replacing column with
// fn(id, current) on every row that has an ID. The column is appended to
// the header when missing. Rows without an ID are copied unchanged. It
// returns the number of rows passed to fn.
func RewriteColumn(r io.Reader, w io.Writer, column string, fn func(id, current string) string) (int, error) {
	cr := newCSVReader(r)
	cols, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	h := newHeader(cols)
	idx, ok := h[strings.ToLower(column)]
	if !ok {
		cols = append(cols, column)
		idx = len(cols) - 1
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading csv: %w", err)
		}
		if id := capec.NormalizeID(h.field(row, colID)); id != "" {
			for len(row) <= idx {
				row = append(row, "")
			}
			row[idx] = fn(id, row[idx])
			n++
		}
		if err := cw.Write(row); err != nil {
			return n, fmt.Errorf("writing csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("writing csv: %w", err)
	}
	return n, nil
}
