package eda

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/edaloom/internal/analysis"
)

// VisualKind names the chart selected for a column.
type VisualKind string

const (
	VisualHistogram VisualKind = "histogram"
	VisualCountPlot VisualKind = "countplot"
	VisualBarChart  VisualKind = "barchart"
	VisualHeatmap   VisualKind = "heatmap"
	// VisualSkipped marks a numeric column with no values to plot.
	VisualSkipped VisualKind = "skipped"
	// VisualNone marks a column that gets no chart and no insight.
	VisualNone VisualKind = "none"
)

// CorrelationFile is the file name of the correlation heatmap.
const CorrelationFile = "correlation.png"

// Options tunes visualization selection.
type Options struct {
	// BinaryMaxDistinct is the largest distinct count for which a numeric
	// column is drawn as a count plot instead of a histogram.
	BinaryMaxDistinct int
	// CategoricalMaxDistinct is the largest distinct count for which a
	// categorical column gets a bar chart.
	CategoricalMaxDistinct int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{BinaryMaxDistinct: 2, CategoricalMaxDistinct: 10}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BinaryMaxDistinct <= 0 {
		o.BinaryMaxDistinct = d.BinaryMaxDistinct
	}
	if o.CategoricalMaxDistinct <= 0 {
		o.CategoricalMaxDistinct = d.CategoricalMaxDistinct
	}
	return o
}

// Visual is one planned chart.
type Visual struct {
	Kind     VisualKind `json:"kind"`
	Column   string     `json:"column,omitempty"`
	File     string     `json:"file,omitempty"`
	Distinct int        `json:"distinct,omitempty"`
}

// SelectVisual picks the chart for a single column.
func SelectVisual(c *analysis.Column, opt Options) (VisualKind, int) {
	opt = opt.withDefaults()
	switch c.Kind {
	case analysis.KindNumeric:
		d := c.Distinct()
		switch {
		case d == 0:
			return VisualSkipped, d
		case d <= opt.BinaryMaxDistinct:
			return VisualCountPlot, d
		default:
			return VisualHistogram, d
		}
	case analysis.KindCategorical:
		d := c.Distinct()
		if d <= opt.CategoricalMaxDistinct {
			return VisualBarChart, d
		}
		return VisualNone, d
	default:
		return VisualNone, 0
	}
}

// Plan lists the charts for a dataset: numeric columns first, then
// categorical columns, each in column order, then the correlation heatmap
// when there is more than one numeric column. Skipped numeric columns are
// included with an empty File; columns without a chart are omitted.
func Plan(ds *analysis.Dataset, opt Options) []Visual {
	var out []Visual
	used := map[string]int{CorrelationFile: 1}
	add := func(c *analysis.Column) {
		kind, distinct := SelectVisual(c, opt)
		if kind == VisualNone {
			return
		}
		v := Visual{Kind: kind, Column: c.Name, Distinct: distinct}
		if kind != VisualSkipped {
			v.File = uniqueFile(used, slug(c.Name)+suffix(kind))
		}
		out = append(out, v)
	}
	numeric := ds.ColumnsOfKind(analysis.KindNumeric)
	for _, c := range numeric {
		add(c)
	}
	for _, c := range ds.ColumnsOfKind(analysis.KindCategorical) {
		add(c)
	}
	if len(numeric) > 1 {
		out = append(out, Visual{Kind: VisualHeatmap, File: CorrelationFile})
	}
	return out
}

func suffix(k VisualKind) string {
	switch k {
	case VisualHistogram:
		return "_hist"
	case VisualCountPlot:
		return "_count"
	case VisualBarChart:
		return "_bar"
	}
	return ""
}

func uniqueFile(used map[string]int, base string) string {
	name := base + ".png"
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	for k := n + 1; ; k++ {
		cand := fmt.Sprintf("%s__%d.png", base, k)
		if used[cand] == 0 {
			used[cand] = 1
			return cand
		}
	}
}

// slug maps a column name to a safe file name stem.
func slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "column"
	}
	return s
}
