package analysis

import (
	"math"
	"sort"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
// Entries that are undefined (fewer than two paired observations or zero
// variance) are NaN.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// At returns the correlation between columns a and b by name.
func (m *CorrMatrix) At(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, c := range m.Columns {
		if c == a {
			ia = i
		}
		if c == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return math.NaN(), false
	}
	return m.Values[ia][ib], true
}

// Correlate computes pairwise Pearson correlations using, for each pair, only
// the rows where both values are present.
func Correlate(cols []*Column) *CorrMatrix {
	n := len(cols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			r := pearson(cols[a], cols[b])
			if a == b && !math.IsNaN(r) {
				r = 1
			}
			m.Values[a][b] = r
			m.Values[b][a] = r
		}
	}
	return m
}

func pearson(x, y *Column) float64 {
	var cnt int
	var sumX, sumY float64
	rows := min(len(x.Values), len(y.Values))
	for i := 0; i < rows; i++ {
		if x.Missing[i] || y.Missing[i] {
			continue
		}
		cnt++
		sumX += x.Values[i]
		sumY += y.Values[i]
	}
	if cnt < 2 {
		return math.NaN()
	}
	mx, my := sumX/float64(cnt), sumY/float64(cnt)
	var sxy, sxx, syy float64
	for i := 0; i < rows; i++ {
		if x.Missing[i] || y.Missing[i] {
			continue
		}
		dx, dy := x.Values[i]-mx, y.Values[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	denom := math.Sqrt(sxx * syy)
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return math.NaN()
	}
	r := sxy / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// Summary holds descriptive statistics for a numeric series.
type Summary struct {
	Count                    int
	Mean, Std                float64
	Min, Q1, Median, Q3, Max float64
}

// Summarize computes descriptive statistics over values. Std is the sample
// standard deviation (0 for fewer than 2 values).
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	// Welford update
	var mean, m2 float64
	for i, x := range values {
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
	}
	s.Mean = mean
	if len(values) > 1 {
		s.Std = math.Sqrt(m2 / float64(len(values)-1))
	}
	cp := sortedCopy(values)
	s.Min, s.Max = cp[0], cp[len(cp)-1]
	s.Q1 = quantile(cp, 0.25)
	s.Median = quantile(cp, 0.5)
	s.Q3 = quantile(cp, 0.75)
	return s
}

// Bins is a histogram: len(Edges) == len(Counts)+1.
type Bins struct {
	Edges  []float64
	Counts []int
}

// Width returns the width of a single bin.
func (b Bins) Width() float64 {
	if len(b.Edges) < 2 {
		return 0
	}
	return b.Edges[1] - b.Edges[0]
}

// Centers returns the midpoint of each bin.
func (b Bins) Centers() []float64 {
	out := make([]float64, len(b.Counts))
	for i := range out {
		out[i] = (b.Edges[i] + b.Edges[i+1]) / 2
	}
	return out
}

const maxBins = 100

// Finite returns values without NaN and ±Inf entries.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// HistogramBins picks the smaller of the Sturges and Freedman-Diaconis bin
// widths, Sturges alone when the IQR is zero. Non-finite values are not binned.
func HistogramBins(values []float64) Bins {
	cp := sortedCopy(Finite(values))
	if len(cp) == 0 {
		return Bins{}
	}
	lo, hi := cp[0], cp[len(cp)-1]
	if lo == hi {
		return Bins{Edges: []float64{lo - 0.5, lo + 0.5}, Counts: []int{len(cp)}}
	}
	span := hi - lo
	n := float64(len(cp))
	width := span / (math.Log2(n) + 1)
	if iqr := quantile(cp, 0.75) - quantile(cp, 0.25); iqr > 0 {
		if fd := 2 * iqr * math.Pow(n, -1.0/3.0); fd < width {
			width = fd
		}
	}
	nb := int(math.Ceil(span / width))
	if nb < 1 {
		nb = 1
	}
	if nb > maxBins {
		nb = maxBins
	}
	width = span / float64(nb)
	b := Bins{Edges: make([]float64, nb+1), Counts: make([]int, nb)}
	for i := range b.Edges {
		b.Edges[i] = lo + float64(i)*width
	}
	b.Edges[nb] = hi
	for _, v := range cp {
		idx := int((v - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= nb {
			idx = nb - 1
		}
		b.Counts[idx]++
	}
	return b
}

// KDE evaluates a Gaussian kernel density estimate with Scott's bandwidth on
// gridsize evenly spaced points spanning the data range extended by cut
// bandwidths on each side. Non-finite values are ignored. It returns nil when
// the density is undefined.
func KDE(values []float64, gridsize int, cut float64) (xs, ys []float64) {
	values = Finite(values)
	s := Summarize(values)
	if s.Count < 2 || s.Std == 0 || gridsize < 2 {
		return nil, nil
	}
	bw := s.Std * math.Pow(float64(s.Count), -0.2)
	lo, hi := s.Min-cut*bw, s.Max+cut*bw
	step := (hi - lo) / float64(gridsize-1)
	norm := 1 / (float64(s.Count) * bw * math.Sqrt(2*math.Pi))
	xs = make([]float64, gridsize)
	ys = make([]float64, gridsize)
	for i := range xs {
		x := lo + float64(i)*step
		var acc float64
		for _, v := range values {
			z := (x - v) / bw
			acc += math.Exp(-0.5 * z * z)
		}
		xs[i] = x
		ys[i] = acc * norm
	}
	return xs, ys
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
