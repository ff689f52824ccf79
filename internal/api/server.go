// Package api serves the capture pipeline's HTTP surface: latest rendered
// frame, histogram and status JSON, settings updates, and a server-sent
// event stream of per-frame metadata for the rendering layer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/thermal.view/internal/db"
	"github.com/banshee-data/thermal.view/internal/monitoring"
	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

// ANSI escape codes for request logging.
const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Capture is the slice of the capturer the server needs. *thermal.Capturer
// satisfies it; tests substitute fakes.
type Capture interface {
	Results() <-chan *thermal.Result
	SetSettings(thermal.Settings)
}

// Options configures a Server.
type Options struct {
	// Unit is the display unit used for all values the API emits.
	Unit temperature.Unit

	// SessionID tags persisted frame stats. Empty disables persistence.
	SessionID string

	// RecordEvery persists every Nth result; 0 disables persistence.
	RecordEvery int

	// InitialSettings seeds the settings reported by GET /api/settings
	// until the first POST.
	InitialSettings thermal.Settings
}

// Server consumes the capture result stream and serves it over HTTP.
type Server struct {
	capture Capture
	db      *db.DB
	opts    Options

	mu       sync.RWMutex
	latest   *thermal.Result
	settings thermal.Settings
	frames   int64
	termErr  error
	stopped  bool

	subMu       sync.Mutex
	subscribers map[int]chan []byte
	nextSubID   int
}

// NewServer builds a server over the given capture stream. database may be
// nil to disable persistence.
func NewServer(capture Capture, database *db.DB, opts Options) *Server {
	if opts.InitialSettings.Gradient == nil {
		opts.InitialSettings = thermal.DefaultSettings()
	}
	return &Server{
		capture:     capture,
		db:          database,
		opts:        opts,
		settings:    opts.InitialSettings,
		subscribers: make(map[int]chan []byte),
	}
}

// Run consumes the capture result stream until it closes or the context is
// cancelled. It must be running for the HTTP surface to serve fresh data.
func (s *Server) Run(ctx context.Context) {
	defer s.closeSubscribers()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-s.capture.Results():
			if !ok {
				s.mu.Lock()
				s.stopped = true
				s.mu.Unlock()
				return
			}
			s.consume(r)
		}
	}
}

func (s *Server) consume(r *thermal.Result) {
	if r.Err != nil {
		// Terminal result: the worker aborted and will close the channel.
		monitoring.Logf("capture terminated: %v", r.Err)
		s.mu.Lock()
		s.termErr = r.Err
		s.mu.Unlock()
		s.publish(s.eventPayload(r))
		return
	}

	s.mu.Lock()
	s.latest = r
	s.frames++
	frames := s.frames
	s.mu.Unlock()

	s.publish(s.eventPayload(r))

	if s.db != nil && s.opts.RecordEvery > 0 && s.opts.SessionID != "" && frames%int64(s.opts.RecordEvery) == 0 {
		stat := db.FrameStat{
			SessionID:         s.opts.SessionID,
			FrameID:           r.FrameID,
			MinKelvin:         r.CapturedRange.Low.Kelvin(),
			MaxKelvin:         r.CapturedRange.High.Kelvin(),
			DisplayLowKelvin:  r.DisplayRange.Low.Kelvin(),
			DisplayHighKelvin: r.DisplayRange.High.Kelvin(),
			RealFPS:           r.RealFPS,
			ReportedFPS:       r.ReportedFPS,
		}
		if err := s.db.RecordFrameStat(stat); err != nil {
			monitoring.Logf("failed to record frame stats: %v", err)
		}
	}
}

// frameEvent is the SSE payload emitted once per result.
type frameEvent struct {
	FrameID     string   `json:"frame_id,omitempty"`
	Unit        string   `json:"unit"`
	CapturedMin *float64 `json:"captured_min,omitempty"`
	CapturedMax *float64 `json:"captured_max,omitempty"`
	DisplayLow  *float64 `json:"display_low,omitempty"`
	DisplayHigh *float64 `json:"display_high,omitempty"`
	RealFPS     *float64 `json:"real_fps,omitempty"`
	ReportedFPS *float64 `json:"reported_fps,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (s *Server) eventPayload(r *thermal.Result) []byte {
	unit := s.opts.Unit
	ev := frameEvent{Unit: unit.Suffix()}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	} else {
		ev.FrameID = r.FrameID
		ev.CapturedMin = ptrFloat(r.CapturedRange.Low.In(unit))
		ev.CapturedMax = ptrFloat(r.CapturedRange.High.In(unit))
		ev.DisplayLow = ptrFloat(r.DisplayRange.Low.In(unit))
		ev.DisplayHigh = ptrFloat(r.DisplayRange.High.In(unit))
		ev.RealFPS = ptrFloat(r.RealFPS)
		ev.ReportedFPS = ptrFloat(r.ReportedFPS)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		monitoring.Logf("failed to marshal frame event: %v", err)
		return nil
	}
	return payload
}

func ptrFloat(v float64) *float64 { return &v }

// RegisterRoutes attaches the public API routes to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.logRequest(s.handleStatus))
	mux.HandleFunc("/api/settings", s.logRequest(s.handleSettings))
	mux.HandleFunc("/api/frame.png", s.logRequest(s.handleFramePNG))
	mux.HandleFunc("/api/histogram", s.logRequest(s.handleHistogram))
	mux.HandleFunc("/api/gradients", s.logRequest(s.handleGradients))
	mux.HandleFunc("/events", s.handleEvents)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"running":    !s.stopped && s.termErr == nil,
		"frames":     s.frames,
		"unit":       s.opts.Unit.String(),
		"suffix":     s.opts.Unit.Suffix(),
		"session_id": s.opts.SessionID,
		"auto_range": s.settings.AutoRange,
		"gradient":   s.settings.Gradient.Name,
	}
	if s.latest != nil {
		status["real_fps"] = s.latest.RealFPS
		status["reported_fps"] = s.latest.ReportedFPS
	}
	if s.termErr != nil {
		status["error"] = s.termErr.Error()
	}
	writeJSON(w, status)
}

// settingsPayload is the wire form of capture settings, with temperatures in
// the server's display unit.
type settingsPayload struct {
	AutoRange bool    `json:"auto_range"`
	ManualMin float64 `json:"manual_min"`
	ManualMax float64 `json:"manual_max"`
	Gradient  string  `json:"gradient"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		cur := s.settings
		s.mu.RUnlock()
		writeJSON(w, settingsPayload{
			AutoRange: cur.AutoRange,
			ManualMin: cur.ManualRange.Low.In(s.opts.Unit),
			ManualMax: cur.ManualRange.High.In(s.opts.Unit),
			Gradient:  cur.Gradient.Name,
		})

	case http.MethodPost:
		var payload settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("invalid settings JSON: %v", err), http.StatusBadRequest)
			return
		}
		gradient, ok := thermal.GradientByName(payload.Gradient)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown gradient %q", payload.Gradient), http.StatusBadRequest)
			return
		}
		if payload.ManualMax < payload.ManualMin {
			http.Error(w, "manual_max must not be below manual_min", http.StatusBadRequest)
			return
		}
		settings := thermal.Settings{
			AutoRange: payload.AutoRange,
			ManualRange: temperature.NewRange(
				temperature.FromUnit(s.opts.Unit, payload.ManualMin),
				temperature.FromUnit(s.opts.Unit, payload.ManualMax),
			),
			Gradient: gradient,
		}

		// Replacement is wholesale and asynchronous; the next produced
		// result reflects it, not the current one.
		s.capture.SetSettings(settings)

		s.mu.Lock()
		s.settings = settings
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil || latest.Image == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, latest.Image); err != nil {
		monitoring.Logf("failed to encode frame PNG: %v", err)
	}
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil || latest.Histogram == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}

	unit := s.opts.Unit
	type bucket struct {
		Low   float64 `json:"low"`
		High  float64 `json:"high"`
		Count int     `json:"count"`
	}
	buckets := make([]bucket, len(latest.Histogram.Buckets))
	for i, b := range latest.Histogram.Buckets {
		buckets[i] = bucket{
			Low:   b.Range.Low.In(unit),
			High:  b.Range.High.In(unit),
			Count: b.Count,
		}
	}
	writeJSON(w, map[string]interface{}{
		"unit":    unit.String(),
		"suffix":  unit.Suffix(),
		"low":     latest.Histogram.Range.Low.In(unit),
		"high":    latest.Histogram.Range.High.In(unit),
		"buckets": buckets,
	})
}

func (s *Server) handleGradients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"gradients": thermal.GradientNames(),
		"default":   thermal.DefaultGradient().Name,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("failed to encode JSON response: %v", err)
	}
}

// loggingResponseWriter captures the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

func (s *Server) logRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next(lrw, r)
		monitoring.Logf("%s%s%s %s %s (%s)",
			colorCyan, r.Method, colorReset, r.URL.Path,
			statusCodeColor(lrw.statusCode), time.Since(start))
	}
}
