package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

// fakeCapture implements Capture with a pre-seeded results channel and a
// record of the last settings update.
type fakeCapture struct {
	results  chan *thermal.Result
	settings []thermal.Settings
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{results: make(chan *thermal.Result, 16)}
}

func (f *fakeCapture) Results() <-chan *thermal.Result { return f.results }
func (f *fakeCapture) SetSettings(s thermal.Settings)  { f.settings = append(f.settings, s) }

func testResult(t *testing.T) *thermal.Result {
	t.Helper()
	frame := thermal.NewFrame(4, 4)
	for i := range frame.Pixels {
		frame.Pixels[i] = temperature.FromKelvin(290 + float64(i))
	}
	captured := frame.CapturedRange()
	g := thermal.DefaultGradient()
	return &thermal.Result{
		FrameID:       "test-frame-1",
		Image:         frame.Render(g, captured),
		DisplayRange:  captured,
		CapturedRange: captured,
		RealFPS:       7.5,
		ReportedFPS:   8,
		Histogram:     thermal.BuildHistogram(frame, captured, thermal.HistogramBuckets),
	}
}

func newTestServer(t *testing.T) (*Server, *fakeCapture, *http.ServeMux) {
	t.Helper()
	fake := newFakeCapture()
	s := NewServer(fake, nil, Options{Unit: temperature.Celsius})
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s, fake, mux
}

func getJSON(t *testing.T, mux *http.ServeMux, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s, _, mux := newTestServer(t)

	var status map[string]interface{}
	rec := getJSON(t, mux, "/api/status", &status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, status["running"])
	assert.Equal(t, float64(0), status["frames"])
	assert.Equal(t, "celsius", status["unit"])
	assert.Equal(t, "°C", status["suffix"])
	assert.Equal(t, true, status["auto_range"])

	s.consume(testResult(t))

	rec = getJSON(t, mux, "/api/status", &status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), status["frames"])
	assert.Equal(t, 7.5, status["real_fps"])
	assert.Equal(t, float64(8), status["reported_fps"])
}

func TestStatusReportsTerminalError(t *testing.T) {
	s, _, mux := newTestServer(t)
	s.consume(&thermal.Result{Err: errors.New("sensor unplugged")})

	var status map[string]interface{}
	rec := getJSON(t, mux, "/api/status", &status)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, status["running"])
	assert.Contains(t, status["error"], "sensor unplugged")
}

func TestSettingsGetDefaults(t *testing.T) {
	_, _, mux := newTestServer(t)

	var payload settingsPayload
	rec := getJSON(t, mux, "/api/settings", &payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, payload.AutoRange)
	assert.InDelta(t, 0, payload.ManualMin, 1e-9)
	assert.InDelta(t, 100, payload.ManualMax, 1e-9)
	assert.Equal(t, thermal.DefaultGradient().Name, payload.Gradient)
}

func TestSettingsPostRoundTrip(t *testing.T) {
	_, fake, mux := newTestServer(t)

	body := `{"auto_range": false, "manual_min": 20, "manual_max": 40, "gradient": "white-hot"}`
	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The update was forwarded to the capturer with unit conversion applied.
	require.Len(t, fake.settings, 1)
	got := fake.settings[0]
	assert.False(t, got.AutoRange)
	assert.Equal(t, "white-hot", got.Gradient.Name)
	assert.InDelta(t, 293.15, got.ManualRange.Low.Kelvin(), 1e-9)
	assert.InDelta(t, 313.15, got.ManualRange.High.Kelvin(), 1e-9)

	// A subsequent GET reflects the accepted settings.
	var payload settingsPayload
	getJSON(t, mux, "/api/settings", &payload)
	assert.False(t, payload.AutoRange)
	assert.InDelta(t, 20, payload.ManualMin, 1e-9)
	assert.InDelta(t, 40, payload.ManualMax, 1e-9)
	assert.Equal(t, "white-hot", payload.Gradient)
}

func TestSettingsPostValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"auto_range": `},
		{"unknown gradient", `{"gradient": "nope", "manual_min": 0, "manual_max": 100}`},
		{"inverted range", `{"gradient": "iron", "manual_min": 50, "manual_max": 10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fake, mux := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, fake.settings, "rejected settings must not reach the capturer")
		})
	}
}

func TestSettingsMethodNotAllowed(t *testing.T) {
	_, _, mux := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/settings", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFramePNG(t *testing.T) {
	s, _, mux := newTestServer(t)

	rec := getJSON(t, mux, "/api/frame.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no frame before the first result")

	s.consume(testResult(t))

	rec = getJSON(t, mux, "/api/frame.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestHistogramEndpoint(t *testing.T) {
	s, _, mux := newTestServer(t)

	rec := getJSON(t, mux, "/api/histogram", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.consume(testResult(t))

	var payload struct {
		Unit    string  `json:"unit"`
		Low     float64 `json:"low"`
		High    float64 `json:"high"`
		Buckets []struct {
			Low   float64 `json:"low"`
			High  float64 `json:"high"`
			Count int     `json:"count"`
		} `json:"buckets"`
	}
	rec = getJSON(t, mux, "/api/histogram", &payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "celsius", payload.Unit)
	require.Len(t, payload.Buckets, thermal.HistogramBuckets)

	// Bounds are expressed in Celsius: the frame spans 290K..305K.
	assert.InDelta(t, 290-273.15, payload.Low, 1e-6)
	assert.InDelta(t, 305-273.15, payload.High, 1e-6)

	total := 0
	for _, b := range payload.Buckets {
		total += b.Count
	}
	assert.Equal(t, 16, total)
}

func TestGradientsEndpoint(t *testing.T) {
	_, _, mux := newTestServer(t)

	var payload struct {
		Gradients []string `json:"gradients"`
		Default   string   `json:"default"`
	}
	rec := getJSON(t, mux, "/api/gradients", &payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, thermal.DefaultGradient().Name, payload.Default)
	assert.Contains(t, payload.Gradients, "white-hot")
	assert.Contains(t, payload.Gradients, "black-hot")
}

func TestRunConsumesUntilChannelCloses(t *testing.T) {
	s, fake, mux := newTestServer(t)

	fake.results <- testResult(t)
	fake.results <- testResult(t)
	close(fake.results)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after results channel closed")
	}

	var status map[string]interface{}
	getJSON(t, mux, "/api/status", &status)
	assert.Equal(t, float64(2), status["frames"])
	assert.Equal(t, false, status["running"])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestPublishFanOut(t *testing.T) {
	s, _, _ := newTestServer(t)

	id1, ch1 := s.subscribe()
	id2, ch2 := s.subscribe()
	defer s.unsubscribe(id1)
	defer s.unsubscribe(id2)

	s.consume(testResult(t))

	for _, ch := range []chan []byte{ch1, ch2} {
		select {
		case payload := <-ch:
			var ev frameEvent
			require.NoError(t, json.Unmarshal(payload, &ev))
			assert.Equal(t, "test-frame-1", ev.FrameID)
			assert.Equal(t, "°C", ev.Unit)
			require.NotNil(t, ev.CapturedMin)
			assert.InDelta(t, 290-273.15, *ev.CapturedMin, 1e-6)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the frame event")
		}
	}
}

func TestPublishSkipsSlowSubscriber(t *testing.T) {
	s, _, _ := newTestServer(t)

	id, ch := s.subscribe()
	defer s.unsubscribe(id)

	// Fill the subscriber buffer; further publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.consume(testResult(t))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.NotEmpty(t, ch)
}

func TestEventsStream(t *testing.T) {
	s, _, mux := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		mux.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the handler to register its subscription, then feed a result.
	require.Eventually(t, func() bool {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		return len(s.subscribers) == 1
	}, 5*time.Second, 5*time.Millisecond)

	s.consume(testResult(t))

	// Give the handler a moment to flush, then disconnect the client.
	require.Eventually(t, func() bool {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for _, ch := range s.subscribers {
			if len(ch) > 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events handler did not return after disconnect")
	}

	body := rec.Body.String()
	assert.Contains(t, body, ": ping")
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, "test-frame-1")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestEventsMethodNotAllowed(t *testing.T) {
	_, _, mux := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
