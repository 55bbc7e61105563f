package api

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/store"
)

// renderSpeedChart draws the smoothed speed of every punch in a session
// against its time offset, one series per side.
func renderSpeedChart(s *store.Session, punches []*store.Punch) ([]byte, error) {
	series := map[string][]opts.LineData{
		punch.Left.String():  {},
		punch.Right.String(): {},
	}

	var origin float64
	if len(punches) > 0 {
		origin = punches[0].Timestamp
	}
	for _, p := range punches {
		series[p.Side] = append(series[p.Side], opts.LineData{
			Value: []any{p.Timestamp - origin, p.SpeedAvg},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "jabcam session", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Punch speed",
			Subtitle: fmt.Sprintf("session=%s mode=%s punches=%d", s.ID, s.Mode, len(punches)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "speed (px/s)", NameLocation: "middle", NameGap: 45}),
	)

	for _, side := range punch.Sides {
		name := side.String()
		line.AddSeries(name, series[name], charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
