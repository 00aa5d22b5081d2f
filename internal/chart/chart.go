// Package chart provides ASCII terminal chart rendering for one athlete's
// daily stream of a prepared Frame. Two renderers are available:
//
//   - Bar: horizontal bar chart, one bar per day, best for short windows
//     (the last few weeks of load)
//   - Plot: multi-line ASCII chart with labeled axes and an optional
//     reference series such as the squad median
//
// Both renderers handle NaN values as gaps, not zeros.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/athmon/internal/group"
	"github.com/derickschaefer/athmon/internal/model"
)

// Point is one day of a Series.
type Point struct {
	Label string
	Value float64
}

// Series is a labelled sequence of daily points. Ref, when non-nil, holds a
// reference value per point (NaN where absent).
type Series struct {
	Title   string
	Points  []Point
	Ref     []float64
	RefName string
}

// ─── Slicing ─────────────────────────────────────────────────────────────────

// Selection picks one stream out of a prepared Frame.
type Selection struct {
	Athlete  string
	Variable string
	Level    string
	// Column is "value" or the name of an estimator or posthoc column.
	Column string
	// LastN keeps only the most recent n days; 0 keeps all.
	LastN int
	// Reference names a group-summary output (e.g. "median") to attach as
	// Series.Ref; empty attaches nothing.
	Reference string
}

// Slice extracts the selected stream from p.
func Slice(p *model.Prepared, sel Selection) (Series, error) {
	f := p.Frame
	column := sel.Column
	if column == "" {
		column = group.ValueColumn
	}
	vals := f.Value
	if column != group.ValueColumn {
		c, ok := f.Col(column)
		if !ok {
			return Series{}, fmt.Errorf("%w: column %q (available: value, %s)",
				model.ErrInvalidColumnReference, column, strings.Join(f.Names, ", "))
		}
		vals = c
	}
	if f.Nominal() && sel.Level == "" {
		return Series{}, fmt.Errorf("%w: nominal data needs a level (one of %s)",
			model.ErrInvalidColumnReference, strings.Join(f.Levels, ", "))
	}

	var part *model.Partition
	for _, pt := range f.Partitions() {
		if f.AthleteAt(pt.Start) == sel.Athlete && f.VariableAt(pt.Start) == sel.Variable &&
			f.LevelAt(pt.Start) == sel.Level {
			pt := pt
			part = &pt
			break
		}
	}
	if part == nil {
		return Series{}, fmt.Errorf("no data for athlete %q variable %q level %q",
			sel.Athlete, sel.Variable, sel.Level)
	}

	start := part.Start
	if sel.LastN > 0 && part.End-start > sel.LastN {
		start = part.End - sel.LastN
	}

	title := sel.Athlete + "  " + sel.Variable
	if sel.Level != "" {
		title += "=" + sel.Level
	}
	title += "  " + column
	s := Series{Title: title, Points: make([]Point, 0, part.End-start)}

	var ref map[int64]float64
	if sel.Reference != "" && p.Groups != nil {
		ref = group.Series(p.Groups, sel.Variable, sel.Level, column, sel.Reference)
		if ref != nil {
			s.RefName = "group " + sel.Reference
			s.Ref = make([]float64, 0, part.End-start)
		}
	}
	for i := start; i < part.End; i++ {
		s.Points = append(s.Points, Point{Label: p.FormatDay(f.Day[i]), Value: vals[i]})
		if s.Ref != nil {
			v, ok := ref[f.Day[i]]
			if !ok {
				v = math.NaN()
			}
			s.Ref = append(s.Ref, v)
		}
	}
	return s, nil
}

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the last MaxBars days. If 0, no limit is applied.
	MaxBars int
}

// Bar renders a horizontal bar chart of s to w, one bar per day with a value.
//
// Output example:
//
//	A  load  value  2024-01-01 – 2024-01-03
//	2024-01-01  10.0  ████
//	2024-01-02  20.0  ████████
//	2024-01-03  30.0  ████████████
func Bar(w io.Writer, s Series, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	var valid []Point
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			valid = append(valid, p)
		}
	}
	if len(valid) < 1 {
		return fmt.Errorf("chart bar: no non-NaN values to render")
	}
	if opts.MaxBars > 0 && len(valid) > opts.MaxBars {
		valid = valid[len(valid)-opts.MaxBars:]
	}
	if len(valid) > 60 {
		fmt.Fprintf(w, "⚠  %d days — consider --last-n or --kind line\n\n", len(valid))
	}

	minVal, maxVal := valid[0].Value, valid[0].Value
	labelWidth, valWidth := 0, 0
	for _, p := range valid {
		minVal = math.Min(minVal, p.Value)
		maxVal = math.Max(maxVal, p.Value)
		if l := len(p.Label); l > labelWidth {
			labelWidth = l
		}
		if l := len(formatFloat(p.Value)); l > valWidth {
			valWidth = l
		}
	}

	// Bars start from zero unless every value is negative.
	lo, hi := math.Min(minVal, 0), math.Max(maxVal, 0)
	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	zeroPos := -1
	if lo < 0 {
		zeroPos = int(math.Round(-lo / span * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  %s – %s\n", s.Title, valid[0].Label, valid[len(valid)-1].Label)
	for _, p := range valid {
		var bar string
		if zeroPos >= 0 {
			bar = biBar(p.Value, span, barAreaWidth, zeroPos)
		} else {
			n := int(math.Round(p.Value / span * float64(barAreaWidth)))
			if n < 1 {
				n = 1
			}
			if n > barAreaWidth {
				n = barAreaWidth
			}
			bar = strings.Repeat("█", n)
		}
		fmt.Fprintf(w, "%-*s  %*s  %s\n", labelWidth, p.Label, valWidth, formatFloat(p.Value), bar)
	}
	return nil
}

// biBar renders a bar extending left (negative) or right (positive) of a
// zero line at zeroPos.
func biBar(val, span float64, width, zeroPos int) string {
	buf := []rune(strings.Repeat(" ", width))
	if zeroPos < width {
		buf[zeroPos] = '│'
	}
	n := int(math.Round(math.Abs(val) / span * float64(width-1)))
	if val >= 0 {
		for i := zeroPos + 1; i <= zeroPos+n && i < width; i++ {
			buf[i] = '█'
		}
	} else {
		for i := max(zeroPos-n, 0); i < zeroPos; i++ {
			buf[i] = '█'
		}
	}
	return string(buf)
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body. If 0, defaults to 12.
	Height int
}

// Plot renders a line chart of s to w. The reference series, if any, is
// drawn with '·' wherever it does not overlap the main line.
func Plot(w io.Writer, s Series, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}

	var valid []float64
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			valid = append(valid, p.Value)
		}
	}
	if len(valid) < 2 {
		return fmt.Errorf("chart plot: need at least 2 non-NaN values (got %d)", len(valid))
	}
	for _, v := range s.Ref {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	minVal, maxVal := valid[0], valid[0]
	for _, v := range valid[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	plotWidth := width - yLabelWidth - 2
	if plotWidth < 10 {
		plotWidth = 10
	}

	line := make([]float64, len(s.Points))
	for i, p := range s.Points {
		line[i] = p.Value
	}
	canvas := drawLine(sample(line, plotWidth), minVal, maxVal, height)
	if s.Ref != nil {
		for col, v := range sample(s.Ref, plotWidth) {
			if math.IsNaN(v) {
				continue
			}
			r := clampRow(rowForValue(v, minVal, maxVal, height), height)
			if canvas[r][col] == ' ' {
				canvas[r][col] = '·'
			}
		}
	}

	fmt.Fprintf(w, "%s  (%s to %s)\n", s.Title, s.Points[0].Label, s.Points[len(s.Points)-1].Label)
	if s.RefName != "" {
		fmt.Fprintf(w, "%s── %s  ·· %s\n", strings.Repeat(" ", yLabelWidth+1), "athlete", s.RefName)
	}
	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axis := "┤"
		if label == "" {
			axis = " "
		}
		fmt.Fprintf(w, "%*s%s%s\n", yLabelWidth, label, axis, string(canvas[row]))
	}
	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(s.Points, plotWidth))
	return nil
}

// ─── Canvas ───────────────────────────────────────────────────────────────────

// sample reduces vals to exactly n columns. Each column holds the mean of its
// bucket, or NaN if the bucket has no value. With fewer values than columns,
// values repeat across columns.
func sample(vals []float64, n int) []float64 {
	total := len(vals)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi < lo {
			hi = lo
		}
		if hi >= total {
			hi = total - 1
		}
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			if !math.IsNaN(vals[i]) {
				sum += vals[i]
				count++
			}
		}
		cols[col] = math.NaN()
		if count > 0 {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

func clampRow(r float64, height int) int {
	i := int(math.Round(r))
	return min(max(i, 0), height-1)
}

// drawLine renders columns into a height×width rune canvas, joining adjacent
// points with box-drawing characters. NaN columns stay blank.
func drawLine(cols []float64, minVal, maxVal float64, height int) [][]rune {
	canvas := make([][]rune, height)
	for r := range canvas {
		canvas[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		rowOf[col] = -1
		if !math.IsNaN(v) {
			rowOf[col] = clampRow(rowForValue(v, minVal, maxVal, height), height)
		}
	}

	for col, r := range rowOf {
		if r < 0 {
			continue
		}
		prev, next := -1, -1
		if col > 0 {
			prev = rowOf[col-1]
		}
		if col < len(cols)-1 {
			next = rowOf[col+1]
		}

		switch {
		case prev < 0 && next < 0:
			canvas[r][col] = '·'
		case (prev < 0 || prev == r) && (next < 0 || next == r):
			canvas[r][col] = '─'
		case next > r && (prev < 0 || prev <= r):
			canvas[r][col] = '╭'
		case next >= 0 && next < r && (prev < 0 || prev >= r):
			canvas[r][col] = '╰'
		case prev >= 0 && prev < r:
			canvas[r][col] = '╮'
		case prev > r:
			canvas[r][col] = '╯'
		default:
			canvas[r][col] = '─'
		}

		if prev >= 0 && prev != r {
			lo, hi := min(r, prev), max(r, prev)
			for fill := lo + 1; fill < hi; fill++ {
				if canvas[fill][col] == ' ' {
					canvas[fill][col] = '│'
				}
			}
		}
	}
	return canvas
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	n := 4
	if height <= 6 {
		n = 3
	}
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(n-1)
	}
	return ticks
}

// xAxisLabels places the first, middle and last day labels under the plot.
func xAxisLabels(points []Point, plotWidth int) string {
	if len(points) == 0 {
		return ""
	}
	first := points[0].Label
	mid := points[len(points)/2].Label
	last := points[len(points)-1].Label

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range s {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, first)
	if len(points) > 2 {
		writeAt(plotWidth/2-len(mid)/2, mid)
	}
	writeAt(plotWidth-len(last), last)
	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a float for labels: compact notation for large values,
// at least one decimal place otherwise.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	var s string
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	case abs >= 100:
		s = strconv.FormatFloat(v, 'f', 1, 64)
	case abs >= 1:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
