// Package viz renders batches for manual inspection.
package viz

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/maastricht-university/emonet-train/collate"
)

const (
	width     = 9 * vg.Inch
	rowHeight = 2.5 * vg.Inch
)

// melGrid exposes a features x frames matrix as frames along x and bands along y.
type melGrid struct {
	m      *mat.Dense
	frames int
}

func (g melGrid) Dims() (c, r int) {
	f, _ := g.m.Dims()
	return g.frames, f
}
func (g melGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g melGrid) X(c int) float64 { return float64(c) }
func (g melGrid) Y(r int) float64 { return float64(r) }

// RenderBatch writes a PNG with one spectrogram heat map per sample, stacked
// vertically and titled with titles[i] when present.
func RenderBatch(w io.Writer, b *collate.Batch, titles []string) error {
	n := b.Size()
	if n == 0 {
		return errors.New("viz: empty batch")
	}
	pal := palette.Heat(64, 1)

	plots := make([]*plot.Plot, n)
	for i, m := range b.Mels {
		p, err := plot.New()
		if err != nil {
			return fmt.Errorf("viz: %w", err)
		}
		if i < len(titles) {
			p.Title.Text = titles[i]
		}
		p.X.Label.Text = "frame"
		p.Y.Label.Text = "mel band"

		h := plotter.NewHeatMap(melGrid{m: m, frames: b.Lengths(i)}, pal)
		if h.Max == h.Min {
			h.Max = h.Min + 1
		}
		p.Add(h)
		plots[i] = p
	}

	img := vgimg.New(width, rowHeight*vg.Length(n))
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: n, Cols: 1, PadX: vg.Millimeter, PadY: 2 * vg.Millimeter}
	for i, p := range plots {
		p.Draw(tiles.At(dc, 0, i))
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("viz: %w", err)
	}
	return nil
}
