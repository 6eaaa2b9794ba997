package plot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestHistogramRendersPNG(t *testing.T) {
	var buf bytes.Buffer
	vals := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5, 9}
	require.NoError(t, New().Histogram(&buf, "Distribution of x", vals))
	img := decodePNG(t, buf.Bytes())
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestHistogramWithoutDataFails(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, New().Histogram(&buf, "empty", nil), ErrNoData)
}

func TestHistogramIgnoresInfinity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Histogram(&buf, "Distribution of x", []float64{1, 2, 3, math.Inf(1)}))
	decodePNG(t, buf.Bytes())

	buf.Reset()
	assert.ErrorIs(t, New().Histogram(&buf, "only inf", []float64{math.Inf(1), math.Inf(-1)}), ErrNoData)
}

func TestBarPlotsRenderPNG(t *testing.T) {
	counts := []analysis.CategoryCount{{Value: "a", Count: 3}, {Value: "b", Count: 3}, {Value: "a very long category label", Count: 1}}
	var bar, count bytes.Buffer
	r := &Renderer{Width: 480, Height: 320}
	require.NoError(t, r.BarChart(&bar, "Value frequencies of c", counts))
	require.NoError(t, r.CountPlot(&count, "Counts of c", counts[:1]))
	assert.Equal(t, 480, decodePNG(t, bar.Bytes()).Bounds().Dx())
	assert.Equal(t, 320, decodePNG(t, count.Bytes()).Bounds().Dy())

	assert.ErrorIs(t, r.BarChart(&bar, "none", nil), ErrNoData)
}

func TestBarChartGrowsForManyBars(t *testing.T) {
	counts := make([]analysis.CategoryCount, 10)
	for i := range counts {
		counts[i] = analysis.CategoryCount{Value: string(rune('a' + i)), Count: i + 1}
	}
	var buf bytes.Buffer
	require.NoError(t, (&Renderer{Width: 300, Height: 300}).BarChart(&buf, "wide", counts))
	assert.Equal(t, 10*(48+16)+120, decodePNG(t, buf.Bytes()).Bounds().Dx())
}

func TestHeatmapRendersCells(t *testing.T) {
	m := &analysis.CorrMatrix{
		Columns: []string{"a", "b"},
		Values:  [][]float64{{1, -1}, {-1, math.NaN()}},
	}
	var buf bytes.Buffer
	require.NoError(t, New().Heatmap(&buf, "Correlation heatmap", m))
	img := decodePNG(t, buf.Bytes())

	// sample a pixel near the top-left corner of each cell, away from the annotation
	labelW := measure(basicfont.Face7x13, "a")
	left := heatPad + labelW + 8
	top := heatPad + titleSpace
	at := func(i, j int) color.RGBA {
		r, g, b, a := img.At(left+j*cellSize+3, top+i*cellSize+3).RGBA()
		return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
	}
	assert.Equal(t, Coolwarm(1), at(0, 0))
	assert.Equal(t, Coolwarm(-1), at(0, 1))
	assert.Equal(t, nanColor, at(1, 1))

	assert.ErrorIs(t, New().Heatmap(&buf, "x", nil), ErrNoData)
}

func TestCoolwarm(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 59, G: 76, B: 192, A: 255}, Coolwarm(-1))
	assert.Equal(t, color.RGBA{R: 221, G: 220, B: 220, A: 255}, Coolwarm(0))
	assert.Equal(t, color.RGBA{R: 180, G: 4, B: 38, A: 255}, Coolwarm(1))
	assert.Equal(t, Coolwarm(1), Coolwarm(3))
	assert.Equal(t, nanColor, Coolwarm(math.NaN()))
}

func TestASCIILabel(t *testing.T) {
	assert.Equal(t, "Gr??e", asciiLabel("Größe", 18))
	assert.Equal(t, "short", asciiLabel("short", 18))
	assert.Equal(t, "abcd..", asciiLabel("abcdefgh", 6))
	assert.Equal(t, "?bcd..", asciiLabel("ébcdefgh", 6))
}

func TestCompactFormatter(t *testing.T) {
	assert.Equal(t, "12", compactFormatter(12.0))
	assert.Equal(t, "0.125", compactFormatter(0.125))
	assert.Equal(t, "x", compactFormatter("x"))
}
