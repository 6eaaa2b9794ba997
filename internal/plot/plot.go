// Package plot renders the EDA charts as PNG images.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	barColor  = drawing.ColorFromHex("4c72b0")
	edgeColor = drawing.ColorFromHex("2a3f66")
	kdeColor  = drawing.ColorFromHex("dd8452")
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

// Renderer draws charts with go-chart. The zero value uses default sizes.
type Renderer struct {
	Width  int
	Height int
	// KDEPoints is the density grid size for histogram overlays.
	KDEPoints int
}

// New returns a Renderer with the default 640x400 canvas.
func New() *Renderer {
	return &Renderer{Width: 640, Height: 400, KDEPoints: 200}
}

func (r *Renderer) size() (int, int) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = 640
	}
	if h <= 0 {
		h = 400
	}
	return w, h
}

// Histogram draws binned counts with a Gaussian density overlay scaled to counts.
// NaN and ±Inf values are left out; ErrNoData is returned when nothing finite remains.
func (r *Renderer) Histogram(w io.Writer, title string, values []float64) error {
	values = analysis.Finite(values)
	if len(values) == 0 {
		return ErrNoData
	}
	bins := analysis.HistogramBins(values)
	counts := make([]float64, len(bins.Counts))
	maxY := 0.0
	for i, c := range bins.Counts {
		counts[i] = float64(c)
		maxY = math.Max(maxY, counts[i])
	}

	series := []chart.Series{
		chart.HistogramSeries{
			Name:  "count",
			Style: chart.Style{FillColor: barColor.WithAlpha(200), StrokeColor: edgeColor, StrokeWidth: 1},
			InnerSeries: chart.ContinuousSeries{
				XValues: bins.Centers(),
				YValues: counts,
			},
		},
	}
	lo, hi := bins.Edges[0], bins.Edges[len(bins.Edges)-1]
	points := r.KDEPoints
	if points < 2 {
		points = 200
	}
	if xs, ys := analysis.KDE(values, points, 0); xs != nil {
		scale := float64(len(values)) * bins.Width()
		for i := range ys {
			ys[i] *= scale
			maxY = math.Max(maxY, ys[i])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "density",
			Style:   chart.Style{StrokeColor: kdeColor, StrokeWidth: 2},
			XValues: xs,
			YValues: ys,
		})
	}

	width, height := r.size()
	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: compactFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Count",
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
			ValueFormatter: compactFormatter,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	return nil
}

// CountPlot draws one bar per distinct value, in the given order.
func (r *Renderer) CountPlot(w io.Writer, title string, counts []analysis.CategoryCount) error {
	return r.bars(w, title, counts)
}

// BarChart draws value frequencies of a categorical column.
func (r *Renderer) BarChart(w io.Writer, title string, counts []analysis.CategoryCount) error {
	return r.bars(w, title, counts)
}

func (r *Renderer) bars(w io.Writer, title string, counts []analysis.CategoryCount) error {
	if len(counts) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, len(counts))
	maxY := 0.0
	for i, c := range counts {
		bars[i] = chart.Value{
			Label: truncateLabel(c.Value, 14),
			Value: float64(c.Count),
			Style: chart.Style{FillColor: barColor, StrokeColor: edgeColor, StrokeWidth: 1},
		}
		maxY = math.Max(maxY, float64(c.Count))
	}
	width, height := r.size()
	barWidth := 48
	if need := len(bars)*(barWidth+16) + 120; need > width {
		width = need
	}
	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: 16,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
			ValueFormatter: compactFormatter,
		},
		Bars: bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

func compactFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e9 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.3g", f)
}

func truncateLabel(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
