package visualize

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// SpeedChart builds a line chart of speed per frame for the ego and every
// object, in unit. Records without a velocity are left out.
func SpeedChart(frames []trajectory.FrameRecord, unit, title string) (*charts.Line, error) {
	if !units.IsValid(unit) {
		return nil, fmt.Errorf("%w: unit %q, want one of %s", trajectory.ErrConfiguration, unit, units.GetValidUnitsString())
	}
	t, err := collect(frames)
	if err != nil {
		return nil, err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("objects=%d", len(t.IDs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: units.Label(unit), NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.AddSeries("ego", speedData(t.Ego, unit))
	for _, id := range t.IDs {
		line.AddSeries(fmt.Sprintf("obj %d", id), speedData(t.Objects[id], unit))
	}
	return line, nil
}

// RenderSpeedHTML renders SpeedChart as a standalone page.
func RenderSpeedHTML(frames []trajectory.FrameRecord, unit, title string) ([]byte, error) {
	line, err := SpeedChart(frames, unit, title)
	if err != nil {
		return nil, err
	}
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render speed chart: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSpeedHTML writes RenderSpeedHTML to path.
func WriteSpeedHTML(fsys fsutil.FileSystem, path string, frames []trajectory.FrameRecord, unit, title string) error {
	page, err := RenderSpeedHTML(frames, unit, title)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(fsys, path, page, 0o644); err != nil {
		return fmt.Errorf("save speed chart: %w", err)
	}
	return nil
}

func speedData(samples []sample, unit string) []opts.LineData {
	data := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		if s.Speed == nil {
			continue
		}
		data = append(data, opts.LineData{
			Name:  s.Kind.String(),
			Value: []interface{}{s.Frame, units.FromKMPH(*s.Speed, unit)},
		})
	}
	return data
}
