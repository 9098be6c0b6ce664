package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sweepcast/internal/httputil"
)

// handleScatter renders the last emitted batch in normalised ROI space.
// ?format=json returns the raw points instead of a chart.
func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	b, ok := s.pipeline.LastBatch()
	if !ok {
		httputil.WriteJSONError(w, http.StatusNotFound, "no batch emitted yet")
		return
	}
	if !wantsHTML(r) {
		httputil.WriteJSONOK(w, b.Points)
		return
	}

	data := make([]opts.ScatterData, 0, len(b.Points))
	for _, p := range b.Points {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "sweepcast: last batch", Theme: "dark", Width: "800px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Last emitted batch",
			Subtitle: fmt.Sprintf("sweep=%d points=%d detect=%t roi=%.0fx%.0fmm", b.Sweep, b.Count(), b.Detect, b.ROIWidth, b.ROIDepth),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "y", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
