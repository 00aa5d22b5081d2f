// Package dataset reads tabular input files (CSV/TSV, JSONL and XLSX) into a
// typed, column-oriented model.Dataset.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/util"
)

// Options controls reading and type inference.
type Options struct {
	// Sep is the CSV field separator; 0 means ',' (or '\t' for .tsv files).
	Sep rune
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
	// Strings names columns that must be kept as strings even when every
	// cell looks numeric, e.g. a categorical value coded as 1/2/3.
	Strings []string
}

// ForceString returns a copy of o that keeps column name as strings.
func (o Options) ForceString(name string) Options {
	o.Strings = append(append([]string(nil), o.Strings...), name)
	return o
}

// ReadFile reads path choosing the format from its extension:
// .xlsx, .jsonl/.ndjson, .tsv, anything else as CSV. A path of "-" reads
// CSV from stdin.
func ReadFile(path string, opts Options) (*model.Dataset, error) {
	if path == "-" {
		return ReadCSV(os.Stdin, opts)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return ReadXLSX(path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".jsonl", ".ndjson":
		return ReadJSONL(f, opts)
	case ".tsv":
		if opts.Sep == 0 {
			opts.Sep = '\t'
		}
	}
	return ReadCSV(f, opts)
}

// ReadCSV reads a delimited file with a header row.
func ReadCSV(r io.Reader, opts Options) (*model.Dataset, error) {
	cr := csv.NewReader(r)
	if opts.Sep != 0 {
		cr.Comma = opts.Sep
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reading csv: no header row")
	}
	return Build(rows[0], rows[1:], opts)
}

// ReadJSONL reads one JSON object per line. Columns appear in the order their
// keys are first seen; null and absent keys are missing cells.
func ReadJSONL(r io.Reader, opts Options) (*model.Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var header []string
	pos := make(map[string]int)
	var rows [][]string

	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		// Map iteration order is random; sort new keys so column order is stable.
		var fresh []string
		for k := range obj {
			if _, ok := pos[k]; !ok {
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		for _, k := range fresh {
			pos[k] = len(header)
			header = append(header, k)
		}

		row := make([]string, len(header))
		for k, v := range obj {
			cell, err := jsonCell(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: key %q: %w", lineNum, k, err)
			}
			row[pos[k]] = cell
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading jsonl: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("reading jsonl: no records")
	}
	return Build(header, rows, opts)
}

func jsonCell(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// ReadXLSX reads the first (or the named) sheet of an Excel workbook. The
// first row is the header.
func ReadXLSX(path string, opts Options) (*model.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: sheet %q: %w", path, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}
	slog.Debug("xlsx sheet loaded", "sheet", sheet, "rows", len(rows)-1)
	return Build(rows[0], rows[1:], opts)
}

// Build converts a header and string rows into a typed Dataset. Short rows
// are padded with missing cells. Each column is typed as date when every
// non-missing cell is a date, numeric when every non-missing cell is a
// number, and string otherwise.
func Build(header []string, rows [][]string, opts Options) (*model.Dataset, error) {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate header column %q", h)
		}
		seen[h] = true
		header[i] = h
	}
	forced := make(map[string]bool, len(opts.Strings))
	for _, s := range opts.Strings {
		if !seen[s] {
			return nil, fmt.Errorf("%w: %q is not a column", model.ErrInvalidColumnReference, s)
		}
		forced[s] = true
	}

	ds := &model.Dataset{Columns: make([]*model.Column, len(header))}
	cells := make([]string, len(rows))
	for c, name := range header {
		for r, row := range rows {
			cells[r] = ""
			if c < len(row) {
				cells[r] = strings.TrimSpace(row[c])
			}
		}
		ds.Columns[c] = column(name, cells, forced[name])
	}
	return ds, nil
}

func column(name string, cells []string, asString bool) *model.Column {
	if !asString {
		if dates, ok := parseDates(cells); ok {
			return &model.Column{Name: name, Type: model.ColumnDate, Dates: dates}
		}
		if nums, ok := parseNumbers(cells); ok {
			return &model.Column{Name: name, Type: model.ColumnNumeric, Num: nums}
		}
	}
	str := make([]string, len(cells))
	for i, s := range cells {
		if !util.IsNA(s) {
			str[i] = s
		}
	}
	return &model.Column{Name: name, Type: model.ColumnString, Str: str}
}

// parseDates succeeds when at least one cell is present and every present
// cell is a date.
func parseDates(cells []string) ([]time.Time, bool) {
	out := make([]time.Time, len(cells))
	found := false
	for i, s := range cells {
		if util.IsNA(s) {
			continue
		}
		t, err := util.ParseDate(s)
		if err != nil {
			return nil, false
		}
		out[i] = t
		found = true
	}
	return out, found
}

// parseNumbers succeeds when every present cell is a number. A column with
// no present cells is numeric and all NaN.
func parseNumbers(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, s := range cells {
		v, ok := util.ParseValue(s)
		if !ok || math.IsInf(v, 0) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// IsTTY returns true if stdin is a terminal (nothing piped in).
func IsTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
