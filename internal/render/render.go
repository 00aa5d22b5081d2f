// Package render converts Result values into human-readable or machine-parseable
// output. Every payload is first flattened into a typed table; each format is
// a separate function and the top-level Render dispatcher selects based on
// the format string.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/athmon/internal/model"
	"github.com/derickschaefer/athmon/internal/summary"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists the accepted --format values.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// ─── Tabulation ───────────────────────────────────────────────────────────────

// table is a header plus typed cells. Cells are string, bool, int, int64 or
// float64; NaN floats are missing.
type table struct {
	headers []string
	rows    [][]interface{}
	// right marks numeric columns for right alignment.
	right []bool
}

// tabulate flattens the result payload. ok is false for payloads that have
// no tabular form.
func tabulate(result *model.Result) (*table, bool) {
	switch result.Kind {
	case model.KindPrepared:
		if p, ok := result.Data.(*model.Prepared); ok {
			return frameTable(p), true
		}
	case model.KindGroups:
		if p, ok := result.Data.(*model.Prepared); ok && p.Groups != nil {
			return groupTable(p), true
		}
	case model.KindSummary:
		if s, ok := result.Data.([]summary.Summary); ok {
			return summaryTable(s), true
		}
	}
	if t, ok := result.Data.(*model.Table); ok {
		out := &table{headers: t.Headers, right: make([]bool, len(t.Headers))}
		for _, r := range t.Rows {
			row := make([]interface{}, len(r))
			for i, c := range r {
				row[i] = c
			}
			out.rows = append(out.rows, row)
		}
		return out, true
	}
	return nil, false
}

func frameTable(p *model.Prepared) *table {
	f := p.Frame
	t := &table{headers: []string{"athlete", "date", "variable"}}
	if f.Nominal() {
		t.headers = append(t.headers, "level")
	}
	t.headers = append(t.headers, "missing_entry", "missing_day", "value")
	t.headers = append(t.headers, f.Names...)
	t.right = make([]bool, len(t.headers))
	for i := len(t.headers) - len(f.Names) - 1; i < len(t.headers); i++ {
		t.right[i] = true
	}

	t.rows = make([][]interface{}, f.Len())
	for i := 0; i < f.Len(); i++ {
		row := make([]interface{}, 0, len(t.headers))
		row = append(row, f.AthleteAt(i), p.FormatDay(f.Day[i]), f.VariableAt(i))
		if f.Nominal() {
			row = append(row, f.LevelAt(i))
		}
		row = append(row, f.MissingEntry[i], f.MissingDay[i], f.Value[i])
		for _, c := range f.Cols {
			row = append(row, c[i])
		}
		t.rows[i] = row
	}
	return t
}

func groupTable(p *model.Prepared) *table {
	gs := p.Groups
	nominal := p.Frame.Nominal()
	t := &table{headers: []string{"date", "variable"}}
	if nominal {
		t.headers = append(t.headers, "level")
	}
	t.headers = append(t.headers, "column")
	t.headers = append(t.headers, gs.Names...)
	t.right = make([]bool, len(t.headers))
	for i := len(t.headers) - len(gs.Names); i < len(t.headers); i++ {
		t.right[i] = true
	}
	for _, r := range gs.Rows {
		row := []interface{}{p.FormatDay(r.Day), r.Variable}
		if nominal {
			row = append(row, r.Level)
		}
		row = append(row, r.Column)
		for _, v := range r.Values {
			row = append(row, v)
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func summaryTable(ss []summary.Summary) *table {
	var byAthlete, nominal bool
	for _, s := range ss {
		byAthlete = byAthlete || s.Athlete != ""
		nominal = nominal || s.HasProportion()
	}
	t := &table{}
	if byAthlete {
		t.headers = append(t.headers, "athlete")
	}
	t.headers = append(t.headers, "variable")
	if nominal {
		t.headers = append(t.headers, "level")
	}
	keys := len(t.headers)
	t.headers = append(t.headers, "days", "entries", "missing_entries", "missing_days", "missing_pct",
		"first", "last", "mean", "std", "min", "p25", "median", "p75", "max")
	if nominal {
		t.headers = append(t.headers, "proportion")
	}
	t.right = make([]bool, len(t.headers))
	for i := keys; i < len(t.headers); i++ {
		t.right[i] = true
	}

	for _, s := range ss {
		var row []interface{}
		if byAthlete {
			row = append(row, s.Athlete)
		}
		row = append(row, s.Variable)
		if nominal {
			row = append(row, s.Level)
		}
		row = append(row, s.Days, s.Entries, s.MissingEntry, s.MissingDay, s.MissingPct,
			s.First, s.Last, s.Mean, s.Std, s.Min, s.P25, s.Median, s.P75, s.Max)
		if nominal {
			row = append(row, s.Proportion)
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

// object is a JSON object that keeps its key order and writes NaN as null.
type object struct {
	keys []string
	vals []interface{}
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := o.vals[i]
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *table) objects() []object {
	out := make([]object, len(t.rows))
	for i, r := range t.rows {
		out[i] = object{keys: t.headers, vals: r}
	}
	return out
}

// preparedJSON is the JSON form of a Prepared payload.
type preparedJSON struct {
	ID          string         `json:"id"`
	Type        model.Type     `json:"type"`
	DateKind    model.DateKind `json:"date_kind"`
	Settings    model.Settings `json:"settings"`
	Levels      []string       `json:"levels,omitempty"`
	Proportions []object       `json:"proportions,omitempty"`
	Columns     []string       `json:"columns"`
	Rows        []object       `json:"rows"`
}

func proportionObjects(props []model.Proportion) []object {
	keys := []string{"athlete", "variable", "level", "level_sum", "total", "proportion"}
	out := make([]object, len(props))
	for i, p := range props {
		out[i] = object{keys: keys, vals: []interface{}{p.Athlete, p.Variable, p.Level, p.LevelSum, p.Total, p.Proportion}}
	}
	return out
}

// jsonPayload returns a NaN-safe replacement for result.Data.
func jsonPayload(result *model.Result) interface{} {
	if p, ok := result.Data.(*model.Prepared); ok && result.Kind == model.KindPrepared {
		t := frameTable(p)
		return preparedJSON{
			ID:          p.ID,
			Type:        p.Type,
			DateKind:    p.DateKind,
			Settings:    p.Settings,
			Levels:      p.Levels,
			Proportions: proportionObjects(p.Proportions),
			Columns:     t.headers,
			Rows:        t.objects(),
		}
	}
	if t, ok := tabulate(result); ok {
		return t.objects()
	}
	return result.Data
}

func renderJSON(w io.Writer, result *model.Result) error {
	out := *result
	out.Data = jsonPayload(result)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	t, ok := tabulate(result)
	if !ok {
		return enc.Encode(jsonPayload(result))
	}
	for _, o := range t.objects() {
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	return nil
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	t, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(upper(t.headers))
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	align := make([]int, len(t.headers))
	for i, r := range t.right {
		align[i] = tablewriter.ALIGN_LEFT
		if r {
			align[i] = tablewriter.ALIGN_RIGHT
		}
	}
	tw.SetColumnAlignment(align)
	tw.SetAutoWrapText(false)

	for _, r := range t.rows {
		tw.Append(cells(r, formatValue))
	}
	tw.Render()
	return nil
}

func upper(h []string) []string {
	out := make([]string, len(h))
	for i, s := range h {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	t, ok := tabulate(result)
	if !ok {
		// Fallback: serialize as JSON on a single line
		b, err := json.Marshal(jsonPayload(result))
		if err != nil {
			return err
		}
		_ = cw.Write([]string{string(b)})
	} else {
		_ = cw.Write(t.headers)
		for _, r := range t.rows {
			_ = cw.Write(cells(r, RawValue))
		}
	}
	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	t, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(upper(t.headers), " | "))
	seps := make([]string, len(t.headers))
	for i, r := range t.right {
		seps[i] = "---"
		if r {
			seps[i] = "--:"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
	for _, r := range t.rows {
		c := cells(r, formatValue)
		for i := range c {
			c[i] = mdEscape(c[i])
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(c, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func cells(row []interface{}, float func(float64) string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case string:
			out[i] = x
		case float64:
			out[i] = float(x)
		case bool:
			out[i] = strconv.FormatBool(x)
		case int:
			out[i] = strconv.Itoa(x)
		case int64:
			out[i] = strconv.FormatInt(x, 10)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

// formatValue formats a value for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// Missing values (NaN) render as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// RawValue formats v at full precision for machine-readable output;
// NaN becomes "NA".
func RawValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
