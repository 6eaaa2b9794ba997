package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cellSize   = 64
	heatPad    = 16
	titleSpace = 32
	cbarWidth  = 16
	cbarSpace  = 48
)

// coolwarm anchors, sampled from the diverging palette.
var coolwarm = []struct {
	at  float64
	rgb [3]float64
}{
	{-1, [3]float64{59, 76, 192}},
	{-0.5, [3]float64{141, 176, 254}},
	{0, [3]float64{221, 220, 220}},
	{0.5, [3]float64{244, 154, 123}},
	{1, [3]float64{180, 4, 38}},
}

var nanColor = color.RGBA{R: 235, G: 235, B: 235, A: 255}

// Coolwarm maps a correlation in [-1, 1] to a colour. NaN maps to light grey.
func Coolwarm(v float64) color.RGBA {
	if math.IsNaN(v) {
		return nanColor
	}
	v = math.Max(-1, math.Min(1, v))
	for i := 1; i < len(coolwarm); i++ {
		a, b := coolwarm[i-1], coolwarm[i]
		if v <= b.at {
			t := (v - a.at) / (b.at - a.at)
			return color.RGBA{
				R: uint8(math.Round(a.rgb[0] + t*(b.rgb[0]-a.rgb[0]))),
				G: uint8(math.Round(a.rgb[1] + t*(b.rgb[1]-a.rgb[1]))),
				B: uint8(math.Round(a.rgb[2] + t*(b.rgb[2]-a.rgb[2]))),
				A: 255,
			}
		}
	}
	last := coolwarm[len(coolwarm)-1].rgb
	return color.RGBA{R: uint8(last[0]), G: uint8(last[1]), B: uint8(last[2]), A: 255}
}

// Heatmap draws an annotated correlation matrix with a colour bar.
func (r *Renderer) Heatmap(w io.Writer, title string, m *analysis.CorrMatrix) error {
	if m == nil || len(m.Columns) == 0 {
		return ErrNoData
	}
	img := drawHeatmap(title, m)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode heatmap: %w", err)
	}
	return nil
}

func drawHeatmap(title string, m *analysis.CorrMatrix) *image.RGBA {
	face := basicfont.Face7x13
	n := len(m.Columns)
	labelW := 0
	for _, c := range m.Columns {
		labelW = max(labelW, measure(face, asciiLabel(c, 18)))
	}
	left := heatPad + labelW + 8
	top := heatPad + titleSpace
	gridW := n * cellSize
	width := left + gridW + cbarSpace + cbarWidth + 40
	height := top + gridW + 8 + 2*face.Metrics().Height.Ceil() + heatPad
	width = max(width, measure(face, title)+2*heatPad)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	black := image.NewUniform(color.Black)
	drawText(img, face, black, title, (width-measure(face, title))/2, heatPad+face.Metrics().Ascent.Ceil())

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.Values[i][j]
			cell := image.Rect(left+j*cellSize, top+i*cellSize, left+(j+1)*cellSize, top+(i+1)*cellSize)
			draw.Draw(img, cell, image.NewUniform(Coolwarm(v)), image.Point{}, draw.Src)
			label := "nan"
			if !math.IsNaN(v) {
				label = fmt.Sprintf("%.2f", v)
			}
			ink := black
			if !math.IsNaN(v) && math.Abs(v) > 0.6 {
				ink = image.NewUniform(color.White)
			}
			tx := cell.Min.X + (cellSize-measure(face, label))/2
			ty := cell.Min.Y + cellSize/2 + face.Metrics().Ascent.Ceil()/2
			drawText(img, face, ink, label, tx, ty)
		}
		// row label, right aligned against the grid
		rl := asciiLabel(m.Columns[i], 18)
		drawText(img, face, black, rl, left-8-measure(face, rl), top+i*cellSize+cellSize/2+face.Metrics().Ascent.Ceil()/2)
		// column label, alternating two lines so neighbours do not collide
		cl := asciiLabel(m.Columns[i], 9)
		line := i % 2
		cy := top + gridW + 8 + face.Metrics().Ascent.Ceil() + line*face.Metrics().Height.Ceil()
		drawText(img, face, black, cl, left+i*cellSize+(cellSize-measure(face, cl))/2, cy)
	}

	// colour bar from +1 (top) to -1 (bottom)
	bx := left + gridW + cbarSpace
	for y := 0; y < gridW; y++ {
		v := 1 - 2*float64(y)/float64(max(gridW-1, 1))
		draw.Draw(img, image.Rect(bx, top+y, bx+cbarWidth, top+y+1), image.NewUniform(Coolwarm(v)), image.Point{}, draw.Src)
	}
	for _, tick := range []struct {
		label string
		y     int
	}{{"1", top}, {"0", top + gridW/2}, {"-1", top + gridW - 1}} {
		drawText(img, face, black, tick.label, bx+cbarWidth+6, tick.y+face.Metrics().Ascent.Ceil()/2)
	}
	return img
}

// asciiLabel prepares s for the 7x13 bitmap face, which only has printable
// ASCII glyphs: other runes become '?' and labels longer than n runes end in "..".
func asciiLabel(s string, n int) string {
	rs := []rune(s)
	for i, r := range rs {
		if r < 0x20 || r > 0x7e {
			rs[i] = '?'
		}
	}
	if len(rs) > n {
		rs = append(rs[:n-2], '.', '.')
	}
	return string(rs)
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func drawText(dst draw.Image, face font.Face, src image.Image, s string, x, y int) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}}
	d.DrawString(s)
}
