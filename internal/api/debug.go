package api

import (
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/thermal.view/internal/monitoring"
)

// AttachDebugRoutes attaches debugging endpoints under /debug/. Like the
// database admin routes, these are intended for localhost/tailnet access.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// Quick visual check of the latest frame's temperature distribution
	// without the frontend.
	debug.HandleFunc("histogram-chart", "render the latest frame histogram", s.handleHistogramChart)
}

// handleHistogramChart renders the latest histogram as an echarts bar page.
func (s *Server) handleHistogramChart(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil || latest.Histogram == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}

	unit := s.opts.Unit
	hist := latest.Histogram
	labels := make([]string, len(hist.Buckets))
	data := make([]opts.BarData, len(hist.Buckets))
	for i, b := range hist.Buckets {
		labels[i] = fmt.Sprintf("%.1f", b.Range.Low.In(unit))
		data[i] = opts.BarData{Value: b.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Temperature distribution",
			Subtitle: fmt.Sprintf("latest frame, bucket lower bounds in %s", unit.Suffix()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	bar.SetXAxis(labels).AddSeries("pixels", data)

	if err := bar.Render(w); err != nil {
		monitoring.Logf("failed to render histogram chart: %v", err)
	}
}
