// Package grid turns sparse athlete/date/variable/value records into the
// dense daily Frame: column extraction, cross-product construction, same-day
// aggregation and missing-value imputation. All functions are pure; no I/O.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/athmon/internal/model"
)

// Columns names the dataset columns that play each role.
type Columns struct {
	Athlete  string `json:"athlete" koanf:"athlete"`
	Date     string `json:"date" koanf:"date"`
	Variable string `json:"variable" koanf:"variable"`
	Value    string `json:"value" koanf:"value"`
}

// Input is the validated record set extracted from a dataset.
type Input struct {
	Records  []model.Record
	DateKind model.DateKind
	// Nominal is true when the value column is categorical; each record's
	// category is then held in Record.Level and Record.Value is NaN.
	Nominal bool
	// Dropped counts rows skipped for lacking an athlete, date or variable.
	Dropped int
}

// Extract validates the column selectors against ds and converts every row
// into a Record. Rows without an athlete, date or variable are dropped.
func Extract(ds *model.Dataset, cols Columns) (*Input, error) {
	roles := []struct{ role, name string }{
		{"athlete", cols.Athlete},
		{"date", cols.Date},
		{"variable", cols.Variable},
		{"value", cols.Value},
	}
	found := make(map[string]*model.Column, len(roles))
	for _, r := range roles {
		c, ok := ds.Column(r.name)
		if !ok || r.name == "" {
			return nil, &model.ColumnError{Role: r.role, Column: r.name, Kind: model.ErrInvalidColumnReference,
				Detail: fmt.Sprintf("available columns: %v", ds.Names())}
		}
		found[r.role] = c
	}

	athlete, date, variable, value := found["athlete"], found["date"], found["variable"], found["value"]

	in := &Input{}
	switch date.Type {
	case model.ColumnDate:
		in.DateKind = model.DateCalendar
	case model.ColumnNumeric:
		in.DateKind = model.DateNumeric
	default:
		return nil, &model.ColumnError{Role: "date", Column: cols.Date, Kind: model.ErrInvalidDateType,
			Detail: fmt.Sprintf("column is %s, expected numeric or date", date.Type)}
	}
	switch value.Type {
	case model.ColumnNumeric:
	case model.ColumnString:
		in.Nominal = true
	default:
		return nil, &model.ColumnError{Role: "value", Column: cols.Value, Kind: model.ErrInvalidColumnReference,
			Detail: fmt.Sprintf("column is %s, expected numeric or categorical", value.Type)}
	}

	n := ds.Len()
	in.Records = make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		if athlete.IsMissing(i) || date.IsMissing(i) || variable.IsMissing(i) {
			in.Dropped++
			continue
		}
		var day int64
		if in.DateKind == model.DateCalendar {
			day = model.DayOrdinal(date.Dates[i])
		} else {
			d := date.Num[i]
			if d != math.Trunc(d) || math.IsInf(d, 0) {
				return nil, &model.ColumnError{Role: "date", Column: cols.Date, Kind: model.ErrInvalidDateType,
					Detail: fmt.Sprintf("row %d holds non-integer %g", i+1, d)}
			}
			day = int64(d)
		}
		rec := model.Record{
			Athlete:  athlete.Text(i),
			Day:      day,
			Variable: variable.Text(i),
			Value:    math.NaN(),
		}
		if in.Nominal {
			rec.Level = value.Str[i]
		} else {
			rec.Value = value.Num[i]
		}
		in.Records = append(in.Records, rec)
	}
	if len(in.Records) == 0 {
		return nil, fmt.Errorf("no usable records in %d input rows", n)
	}
	return in, nil
}

// ─── Grid ─────────────────────────────────────────────────────────────────────

// Grid is a Frame skeleton together with the lookups needed to address a row
// by its key in constant time.
type Grid struct {
	Frame  *model.Frame
	MinDay int64
	Days   int

	athletes  map[string]int32
	variables map[string]int32
	levels    map[string]int32
}

// Build constructs the dense cross product athletes × days × variables
// (× levels when levels is non-nil) spanning [min(day), max(day)] over all
// records. Values start as NaN with both missing flags set.
func Build(records []model.Record, levels []string) (*Grid, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("grid: no records")
	}

	minDay, maxDay := records[0].Day, records[0].Day
	athleteSet := make(map[string]bool)
	variableSet := make(map[string]bool)
	for _, r := range records {
		if r.Day < minDay {
			minDay = r.Day
		}
		if r.Day > maxDay {
			maxDay = r.Day
		}
		athleteSet[r.Athlete] = true
		variableSet[r.Variable] = true
	}

	nLevels := 1
	if levels != nil {
		nLevels = len(levels)
	}
	days, err := span(minDay, maxDay, len(athleteSet)*len(variableSet)*max(nLevels, 1))
	if err != nil {
		return nil, err
	}

	g := &Grid{
		MinDay: minDay,
		Days:   days,
		Frame: &model.Frame{
			Athletes:  sortedKeys(athleteSet),
			Variables: sortedKeys(variableSet),
		},
	}
	g.athletes = index(g.Frame.Athletes)
	g.variables = index(g.Frame.Variables)

	if levels != nil {
		g.Frame.Levels = append([]string(nil), levels...)
		g.levels = index(g.Frame.Levels)
	}

	f := g.Frame
	n := len(f.Athletes) * len(f.Variables) * nLevels * g.Days
	f.Athlete = make([]int32, n)
	f.Variable = make([]int32, n)
	f.Day = make([]int64, n)
	f.Value = make([]float64, n)
	f.MissingEntry = make([]bool, n)
	f.MissingDay = make([]bool, n)
	if levels != nil {
		f.Level = make([]int32, n)
	}

	row := 0
	for a := range f.Athletes {
		for v := range f.Variables {
			for l := 0; l < nLevels; l++ {
				for d := 0; d < g.Days; d++ {
					f.Athlete[row] = int32(a)
					f.Variable[row] = int32(v)
					if f.Level != nil {
						f.Level[row] = int32(l)
					}
					f.Day[row] = minDay + int64(d)
					f.Value[row] = math.NaN()
					f.MissingEntry[row] = true
					f.MissingDay[row] = true
					row++
				}
			}
		}
	}
	return g, nil
}

// MaxRows bounds the size of a dense grid. Numeric date columns holding
// timestamps or yyyymmdd integers produce spans far beyond any real season.
const MaxRows = 1 << 25

// span returns the number of days in [minDay, maxDay] after checking that
// cells streams of that length stay within MaxRows.
func span(minDay, maxDay int64, cells int) (int, error) {
	// maxDay >= minDay, so the unsigned difference is exact.
	width := uint64(maxDay - minDay)
	if width >= MaxRows || (width+1)*uint64(cells) > MaxRows {
		return 0, &model.ColumnError{Role: "date", Kind: model.ErrInvalidDateType,
			Detail: fmt.Sprintf("span %d to %d across %d streams exceeds the %d row limit",
				minDay, maxDay, cells, MaxRows)}
	}
	return int(width) + 1, nil
}

// Row returns the frame row index for a key.
func (g *Grid) Row(athlete, variable, level string, day int64) (int, bool) {
	a, ok := g.athletes[athlete]
	if !ok {
		return 0, false
	}
	v, ok := g.variables[variable]
	if !ok {
		return 0, false
	}
	var l int32
	nLevels := 1
	if g.Frame.Level != nil {
		if l, ok = g.levels[level]; !ok {
			return 0, false
		}
		nLevels = len(g.Frame.Levels)
	}
	off := day - g.MinDay
	if off < 0 || off >= int64(g.Days) {
		return 0, false
	}
	base := (int(a)*len(g.Frame.Variables)+int(v))*nLevels + int(l)
	return base*g.Days + int(off), true
}

// dayKey maps a row to its (athlete, variable, day) slot, ignoring level.
func (g *Grid) dayKey(row int) int {
	f := g.Frame
	off := int(f.Day[row] - g.MinDay)
	return (int(f.Athlete[row])*len(f.Variables)+int(f.Variable[row]))*g.Days + off
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func index(names []string) map[string]int32 {
	m := make(map[string]int32, len(names))
	for i, n := range names {
		m[n] = int32(i)
	}
	return m
}
