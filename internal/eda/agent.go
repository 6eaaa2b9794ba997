package eda

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"go.uber.org/zap"
)

// Plotter renders charts as PNG images.
type Plotter interface {
	Histogram(w io.Writer, title string, values []float64) error
	CountPlot(w io.Writer, title string, counts []analysis.CategoryCount) error
	BarChart(w io.Writer, title string, counts []analysis.CategoryCount) error
	Heatmap(w io.Writer, title string, m *analysis.CorrMatrix) error
}

// Sink stores rendered charts. Put must leave no file behind when render fails.
type Sink interface {
	Put(name string, render func(w io.Writer) error) error
}

// ColumnProfile summarizes one column of the report.
type ColumnProfile struct {
	Name     string        `json:"name"`
	Kind     analysis.Kind `json:"kind"`
	Missing  int           `json:"missing"`
	Distinct int           `json:"distinct"`
	Visual   VisualKind    `json:"visual"`
}

// Result is an automated EDA report.
type Result struct {
	Dataset      string          `json:"dataset"`
	Rows         int             `json:"rows"`
	Cols         int             `json:"cols"`
	Missing      int             `json:"missing"`
	MissingRatio float64         `json:"missing_ratio"`
	Duplicates   int             `json:"duplicates"`
	Score        int             `json:"score"`
	Insights     []string        `json:"insights"`
	ActivityLog  []string        `json:"activity_log"`
	Columns      []ColumnProfile `json:"columns"`
	Visuals      []Visual        `json:"visuals"`
	Warnings     []string        `json:"warnings,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
	// Correlation is nil unless there is more than one numeric column.
	// Entries may be NaN, so it is not serialized.
	Correlation *analysis.CorrMatrix `json:"-"`
}

// Agent runs the fixed sequence of EDA steps over a dataset.
type Agent struct {
	plotter Plotter
	opt     Options
	logger  *zap.Logger
}

// NewAgent creates an agent. A nil logger disables logging.
func NewAgent(p Plotter, opt Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{plotter: p, opt: opt.withDefaults(), logger: logger}
}

type run struct {
	ctx  context.Context
	sink Sink
	res  *Result
	a    *Agent
}

func (r *run) step(msg string) {
	r.res.ActivityLog = append(r.res.ActivityLog, msg)
	r.a.logger.Debug("eda step", zap.String("dataset", r.res.Dataset), zap.String("step", msg))
}

func (r *run) insight(format string, args ...any) {
	r.res.Insights = append(r.res.Insights, fmt.Sprintf(format, args...))
}

// Analyze runs every step in order. With a nil sink no charts are rendered
// but the plan, insights and log are the same. The context is checked before
// each chart.
func (a *Agent) Analyze(ctx context.Context, ds *analysis.Dataset, sink Sink) (*Result, error) {
	start := time.Now()
	res := &Result{Dataset: ds.Name, Rows: ds.Rows, Cols: ds.Cols(), Warnings: ds.Warnings}
	r := &run{ctx: ctx, sink: sink, res: res, a: a}

	r.step("🔍 Reading and understanding dataset structure")
	r.insight("The dataset contains %d rows and %d columns.", res.Rows, res.Cols)

	r.step("🧪 Checking for missing values")
	res.Missing = ds.MissingCount()
	if res.Missing > 0 {
		r.insight("Some columns contain missing values.")
	} else {
		r.insight("No missing values were found in the dataset.")
	}

	r.step("📊 Evaluating dataset quality")
	res.Duplicates = ds.DuplicateRows()
	if cells := res.Rows * res.Cols; cells > 0 {
		res.MissingRatio = float64(res.Missing) / float64(cells)
	}
	res.Score = QualityScore(res.Missing, res.Rows, res.Cols, res.Duplicates)
	res.Insights = append([]string{fmt.Sprintf("📊 Dataset Quality Score: %d / 100", res.Score)}, res.Insights...)

	r.step("📊 Identifying numerical features")
	numeric := ds.ColumnsOfKind(analysis.KindNumeric)
	categorical := ds.ColumnsOfKind(analysis.KindCategorical)
	datetimes := ds.ColumnsOfKind(analysis.KindDatetime)
	r.step(fmt.Sprintf("🧭 Classified columns: %d numeric, %d categorical, %d datetime", len(numeric), len(categorical), len(datetimes)))

	plan := Plan(ds, a.opt)
	byColumn := map[string]Visual{}
	for _, v := range plan {
		if v.Column != "" {
			byColumn[v.Column] = v
		}
	}
	for _, c := range ds.Columns {
		p := ColumnProfile{Name: c.Name, Kind: c.Kind, Missing: c.MissingCount(), Visual: VisualNone}
		if v, ok := byColumn[c.Name]; ok {
			p.Visual, p.Distinct = v.Kind, v.Distinct
		} else if c.Kind != analysis.KindDatetime {
			p.Distinct = c.Distinct()
		}
		res.Columns = append(res.Columns, p)
	}

	r.step("📈 Generating distribution plots")
	for _, c := range numeric {
		v, ok := byColumn[c.Name]
		if !ok {
			continue
		}
		switch v.Kind {
		case VisualSkipped:
			r.insight("Column '%s' contains only missing values and was not visualized.", c.Name)
			continue
		case VisualCountPlot:
			counts := c.SortedByValue()
			if err := r.render(v, func(w io.Writer) error {
				return a.plotter.CountPlot(w, "Counts of "+c.Name, counts)
			}); err != nil {
				return nil, err
			}
			r.insight("Column '%s' has %d distinct values and was visualized with a count plot.", c.Name, v.Distinct)
		case VisualHistogram:
			values := c.Present()
			if err := r.render(v, func(w io.Writer) error {
				return a.plotter.Histogram(w, "Distribution of "+c.Name, values)
			}); err != nil {
				return nil, err
			}
			r.insight("Column '%s' shows its distribution as plotted.", c.Name)
		}
	}

	if len(categorical) > 0 {
		r.step("🏷️ Generating categorical frequency plots")
	}
	for _, c := range categorical {
		v, ok := byColumn[c.Name]
		if !ok {
			// too many distinct values for a readable chart
			continue
		}
		counts := c.ValueCounts()
		if err := r.render(v, func(w io.Writer) error {
			return a.plotter.BarChart(w, "Value frequencies of "+c.Name, counts)
		}); err != nil {
			return nil, err
		}
		r.insight("Column '%s' is categorical; its value frequencies were plotted as a bar chart.", c.Name)
	}

	if len(numeric) > 1 {
		r.step("🔗 Performing correlation analysis")
		res.Correlation = analysis.Correlate(numeric)
		v := plan[len(plan)-1]
		if err := r.render(v, func(w io.Writer) error {
			return a.plotter.Heatmap(w, "Correlation heatmap", res.Correlation)
		}); err != nil {
			return nil, err
		}
		r.insight("Correlation analysis was performed on numerical features.")
	}

	r.step("✅ Automated EDA completed")
	res.Duration = time.Since(start)
	a.logger.Info("eda report ready",
		zap.String("dataset", res.Dataset),
		zap.Int("rows", res.Rows),
		zap.Int("cols", res.Cols),
		zap.Int("score", res.Score),
		zap.Int("visuals", len(res.Visuals)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (r *run) render(v Visual, fn func(w io.Writer) error) error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	if r.sink != nil {
		if err := r.sink.Put(v.File, fn); err != nil {
			return &PlotError{Visual: v, Err: err}
		}
	}
	r.res.Visuals = append(r.res.Visuals, v)
	return nil
}
