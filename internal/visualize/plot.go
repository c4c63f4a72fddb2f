package visualize

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

var errNoEgo = fmt.Errorf("%w: no frame has an ego state", trajectory.ErrMalformedInput)

const plotSize = 10 * vg.Inch

// TrackPlot draws the ego track and every object track in plan view,
// relative to the first ego position. Synthesized records are drawn
// as hollow markers.
func TrackPlot(frames []trajectory.FrameRecord, title string) (*plot.Plot, error) {
	t, err := collect(frames)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "East (m)"
	p.Y.Label.Text = "North (m)"
	p.Add(plotter.NewGrid())

	ego, err := plotter.NewLine(xys(t.Ego))
	if err != nil {
		return nil, err
	}
	ego.Color = color.Black
	ego.Width = vg.Points(2)
	p.Add(ego)
	p.Legend.Add("ego", ego)

	colors := generateColors(len(t.IDs))
	for i, id := range t.IDs {
		track := t.Objects[id]
		line, err := plotter.NewLine(xys(track))
		if err != nil {
			return nil, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("obj %d", id), line)

		var native, synth []sample
		for _, s := range track {
			if s.Kind == trajectory.Native {
				native = append(native, s)
			} else {
				synth = append(synth, s)
			}
		}
		for _, group := range []struct {
			samples []sample
			shape   draw.GlyphDrawer
		}{
			{native, draw.CircleGlyph{}},
			{synth, draw.RingGlyph{}},
		} {
			if len(group.samples) == 0 {
				continue
			}
			sc, err := plotter.NewScatter(xys(group.samples))
			if err != nil {
				return nil, err
			}
			sc.GlyphStyle.Color = colors[i]
			sc.GlyphStyle.Shape = group.shape
			sc.GlyphStyle.Radius = vg.Points(2)
			p.Add(sc)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTrackPNG renders TrackPlot to path.
func WriteTrackPNG(fsys fsutil.FileSystem, path string, frames []trajectory.FrameRecord, title string) error {
	p, err := TrackPlot(frames, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotSize, plotSize, "png")
	if err != nil {
		return fmt.Errorf("render track plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render track plot: %w", err)
	}
	if err := fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save track plot: %w", err)
	}
	return nil
}

func xys(samples []sample) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: s.X, Y: s.Y}
	}
	return pts
}

// generateColors creates a palette of distinct colors for object tracks
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
