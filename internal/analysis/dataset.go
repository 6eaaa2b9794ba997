package analysis

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindDatetime    Kind = "datetime"
)

// ErrEmptyInput is returned when the input has no header line.
var ErrEmptyInput = errors.New("empty input: no header row")

// ParseError reports a malformed CSV record.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse csv line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options controls how a CSV file is loaded.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed from the header line.
	Delimiter rune
	// DecimalSeparator used when parsing numbers. Defaults to '.'.
	DecimalSeparator rune
	// ThousandsSeparator is stripped from numbers when set; 0 disables.
	ThousandsSeparator rune
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{DecimalSeparator: '.'}
}

// naValues are the cell spellings treated as missing.
var naValues = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {}, "<NA>": {}, "#N/A N/A": {},
	"-1.#IND": {}, "1.#QNAN": {}, "-1.#QNAN": {}, "1.#IND": {},
}

// IsMissing reports whether a trimmed cell is a missing value.
func IsMissing(cell string) bool {
	_, ok := naValues[cell]
	return ok
}

// Column holds one column of a loaded dataset.
type Column struct {
	Name    string
	Kind    Kind
	Cells   []string
	Missing []bool
	// Values is populated for numeric columns; NaN marks missing cells.
	Values []float64
}

// Dataset is an in-memory table loaded from a single CSV file.
type Dataset struct {
	Name     string
	Rows     int
	Columns  []*Column
	Warnings []string
}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	return LoadCSV(f, filepath.Base(path), opt)
}

// LoadCSV reads a CSV stream into a Dataset and infers each column's kind.
func LoadCSV(r io.Reader, name string, opt Options) (*Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(64 << 10)
		delim = sniffDelimiter(head)
	}
	if opt.DecimalSeparator == 0 {
		opt.DecimalSeparator = '.'
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, &ParseError{Line: pe.Line, Err: pe.Err}
		}
		return nil, &ParseError{Line: 1, Err: err}
	}
	ncol := len(header)
	if ncol == 1 && strings.TrimSpace(header[0]) == "" {
		return nil, ErrEmptyInput
	}

	ds := &Dataset{Name: name, Columns: make([]*Column, ncol)}
	for i, h := range header {
		// strip a UTF-8 BOM on the first header cell
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		ds.Columns[i] = &Column{Name: uniqueName(ds.Columns[:i], strings.TrimSpace(h), i)}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	total := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &ParseError{Err: err}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && ncol > 1 {
			// blank line
			continue
		}
		total++
		if len(rec) > ncol {
			line, _ := cr.FieldPos(0)
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected %d fields, saw %d", ncol, len(rec))}
		}
		if ds.Rows >= maxRows {
			continue
		}
		ds.Rows++
		for j, c := range ds.Columns {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			c.Cells = append(c.Cells, v)
			c.Missing = append(c.Missing, IsMissing(v))
		}
	}
	if ds.Rows < total {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", ds.Rows, total))
	}
	for _, c := range ds.Columns {
		c.infer(opt)
	}
	return ds, nil
}

// infer decides the column kind. A column is numeric or datetime only when
// every present cell parses as such.
func (c *Column) infer(opt Options) {
	var present, numCnt, dtCnt int
	vals := make([]float64, len(c.Cells))
	for i, v := range c.Cells {
		if c.Missing[i] {
			vals[i] = math.NaN()
			continue
		}
		present++
		if x, ok := parseNumeric(v, opt); ok {
			numCnt++
			vals[i] = x
			continue
		}
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
		}
	}
	switch {
	case numCnt == present:
		// includes all-missing columns, which load as float columns
		c.Kind = KindNumeric
		c.Values = vals
	case dtCnt == present:
		c.Kind = KindDatetime
	default:
		c.Kind = KindCategorical
	}
}

// Cols returns the number of columns.
func (d *Dataset) Cols() int { return len(d.Columns) }

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnsOfKind returns the columns of the given kind in column order.
func (d *Dataset) ColumnsOfKind(k Kind) []*Column {
	var out []*Column
	for _, c := range d.Columns {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// MissingCount returns the total number of missing cells.
func (d *Dataset) MissingCount() int {
	n := 0
	for _, c := range d.Columns {
		n += c.MissingCount()
	}
	return n
}

// DuplicateRows counts rows identical to an earlier row. Missing cells
// compare equal regardless of their spelling.
func (d *Dataset) DuplicateRows() int {
	if d.Rows == 0 || len(d.Columns) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, d.Rows)
	dups := 0
	var b strings.Builder
	for i := 0; i < d.Rows; i++ {
		b.Reset()
		for j, c := range d.Columns {
			if j > 0 {
				b.WriteByte(0x1f)
			}
			switch {
			case c.Missing[i]:
				b.WriteByte(0x00)
			case c.Kind == KindNumeric:
				b.WriteString(numericKey(c.Values[i]))
			default:
				b.WriteString(c.Cells[i])
			}
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Present returns the numeric values with missing entries dropped.
func (c *Column) Present() []float64 {
	out := make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Distinct returns the number of distinct present values.
func (c *Column) Distinct() int {
	return len(c.ValueCounts())
}

// CategoryCount is one entry of a frequency table.
type CategoryCount struct {
	Value string
	Count int
}

// ValueCounts returns the frequency table of present values ordered by
// count desc, then value asc. Numeric values are keyed by parsed value.
func (c *Column) ValueCounts() []CategoryCount {
	counts := map[string]int{}
	order := map[string]float64{}
	for i, v := range c.Cells {
		if c.Missing[i] {
			continue
		}
		key := v
		if c.Kind == KindNumeric {
			key = numericKey(c.Values[i])
			order[key] = c.Values[i]
		}
		counts[key]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CategoryCount{Value: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if c.Kind == KindNumeric {
			return order[out[i].Value] < order[out[j].Value]
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// numericKey formats v so that equal values share a key; -0 folds into 0.
func numericKey(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SortedByValue returns counts ordered by value, numerically for numeric columns.
func (c *Column) SortedByValue() []CategoryCount {
	vc := c.ValueCounts()
	sort.SliceStable(vc, func(i, j int) bool {
		if c.Kind == KindNumeric {
			a, _ := strconv.ParseFloat(vc[i].Value, 64)
			b, _ := strconv.ParseFloat(vc[j].Value, 64)
			return a < b
		}
		return vc[i].Value < vc[j].Value
	})
	return vc
}

func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		n := strings.Count(string(line), string(d))
		if n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// uniqueName renames blank and repeated header names ("Unnamed: i", "x.1").
func uniqueName(prev []*Column, name string, idx int) string {
	if name == "" {
		name = fmt.Sprintf("Unnamed: %d", idx)
	}
	taken := func(n string) bool {
		for _, c := range prev {
			if c.Name == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for k := 1; ; k++ {
		cand := fmt.Sprintf("%s.%d", name, k)
		if !taken(cand) {
			return cand
		}
	}
}
