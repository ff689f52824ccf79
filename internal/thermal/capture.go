package thermal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/thermal.view/internal/monitoring"
	"github.com/banshee-data/thermal.view/internal/temperature"
)

// Channel bounds. A burst of settings updates collapses to the latest at the
// drain site; the results channel drops its oldest entry when the consumer
// falls behind, trading staleness for bounded memory.
const (
	commandQueueSize = 16
	resultQueueSize  = 64
)

// ErrAlreadyStarted is returned by Start when the camera has already been
// handed to a worker.
var ErrAlreadyStarted = errors.New("capturer already started")

// Camera is the blocking capture handle. After Capturer.Start it is owned
// exclusively by the worker goroutine; no other code may touch it.
type Camera interface {
	// OpenStream puts the camera into streaming mode.
	OpenStream() error
	// ReadFrame blocks until one raw frame is available.
	ReadFrame() ([]byte, error)
	// StopStream takes the camera out of streaming mode.
	StopStream() error
	// FrameRate returns the camera's self-reported frame rate.
	FrameRate() float64
	// Close releases the underlying device.
	Close() error
}

// Adapter decodes one raw camera frame into a calibrated temperature grid.
type Adapter interface {
	Name() string
	Resolution() (width, height int)
	DecodeFrame(raw []byte) (*Frame, error)
}

// Settings controls how captured frames are mapped to colours. Settings are
// replaced wholesale on update, never merged.
type Settings struct {
	// AutoRange selects the smoothed display range; when false ManualRange
	// is used verbatim.
	AutoRange bool
	// ManualRange must always be well formed, even while unused.
	ManualRange temperature.Range
	// Gradient maps normalised positions to colours.
	Gradient *Gradient
}

// DefaultSettings returns the settings a new capturer starts with.
func DefaultSettings() Settings {
	return Settings{
		AutoRange: true,
		ManualRange: temperature.NewRange(
			temperature.FromUnit(temperature.Celsius, 0),
			temperature.FromUnit(temperature.Celsius, 100),
		),
		Gradient: DefaultGradient(),
	}
}

// Result is one packaged capture iteration. Exactly one result is produced
// per captured frame; ownership passes to whoever reads it off the results
// channel.
//
// A result with Err set is terminal: the worker emits it once and then
// closes the channel.
type Result struct {
	FrameID string

	// Image is the rendered false-colour frame.
	Image *image.RGBA

	// DisplayRange is the mapping range actually used for rendering.
	DisplayRange temperature.Range

	// CapturedRange is the [min, max] observed in the frame.
	CapturedRange temperature.Range

	// MinPos and MaxPos are the pixel positions of the frame extremes.
	MinPos image.Point
	MaxPos image.Point

	// RealFPS is 1 / wall-clock duration of the capture iteration.
	RealFPS float64

	// ReportedFPS is the camera's self-reported rate.
	ReportedFPS float64

	Histogram *Histogram

	// Err is set on the final result when the worker aborts on a capture
	// failure.
	Err error
}

// Capturer owns a camera handle and a worker goroutine that continuously
// captures frames, converts them to calibrated temperatures, renders a
// false-colour image and emits packaged results.
//
// Exactly two actors exist per capturer: the owner and the worker. They
// communicate only over channels; the camera transfers wholly to the worker
// on Start.
type Capturer struct {
	adapter Adapter
	notify  func()

	settingsCh chan Settings
	results    chan *Result
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}

	mu      sync.Mutex
	camera  Camera // nil once transferred to the worker
	started bool
}

// New builds a capturer bound to a camera handle, an adapter and an optional
// notification callback invoked after each emitted result. The callback must
// not block. Capturing does not begin until Start.
func New(cam Camera, adapter Adapter, notify func()) *Capturer {
	return &Capturer{
		adapter:    adapter,
		notify:     notify,
		camera:     cam,
		settingsCh: make(chan Settings, commandQueueSize),
		results:    make(chan *Result, resultQueueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Results returns the FIFO stream of capture results. The channel is closed
// when the worker exits, after a terminal error result if the worker aborted.
func (c *Capturer) Results() <-chan *Result {
	return c.results
}

// Start transfers the camera handle into a new worker goroutine and begins
// the capture loop. Calling Start twice is a programming error and returns
// ErrAlreadyStarted.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	cam := c.camera
	c.camera = nil // ownership moves to the worker

	go c.run(cam)
	return nil
}

// SetSettings enqueues a wholesale settings replacement. It never blocks and
// gives no acknowledgment; if multiple updates queue before the worker
// drains, only the most recent survives.
func (c *Capturer) SetSettings(s Settings) {
	for {
		select {
		case c.settingsCh <- s:
			return
		default:
		}
		// Queue full: displace the oldest pending update. Only the latest
		// matters anyway.
		select {
		case <-c.settingsCh:
		default:
		}
	}
}

// Stop asynchronously requests the worker to stop. It does not wait for the
// camera to be released; use StopAndWait for that guarantee.
func (c *Capturer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// StopAndWait requests a stop and blocks until the worker has exited and the
// camera stream is closed, or the context expires.
func (c *Capturer) StopAndWait(ctx context.Context) error {
	c.Stop()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the worker. It owns the camera for its entire lifetime.
func (c *Capturer) run(cam Camera) {
	defer close(c.done)
	defer close(c.results)

	settings := DefaultSettings()
	controller := NewAutoRangeController()

	if err := cam.OpenStream(); err != nil {
		c.emit(&Result{Err: fmt.Errorf("failed to open camera stream: %w", err)})
		return
	}

	for {
		start := time.Now()

		raw, err := cam.ReadFrame()
		if err != nil {
			c.emit(&Result{Err: fmt.Errorf("failed to read frame: %w", err)})
			c.closeStream(cam)
			return
		}
		frame, err := c.adapter.DecodeFrame(raw)
		if err != nil {
			c.emit(&Result{Err: fmt.Errorf("failed to decode frame: %w", err)})
			c.closeStream(cam)
			return
		}

		minPos, maxPos := frame.MinMax()
		captured := temperature.NewRange(frame.At(minPos.X, minPos.Y), frame.At(maxPos.X, maxPos.Y))

		// The controller is stepped every frame, even in manual mode, so
		// switching back to auto resumes from a warm state instead of
		// replaying a cold-start ramp.
		mapping := controller.Compute(captured)
		if !settings.AutoRange {
			mapping = settings.ManualRange
		}

		img := frame.Render(settings.Gradient, mapping)

		// The histogram spans captured ∪ display so the distribution view
		// never silently excludes out-of-display-range data.
		hist := BuildHistogram(frame, captured.Join(mapping), HistogramBuckets)

		c.emit(&Result{
			FrameID:       uuid.NewString(),
			Image:         img,
			DisplayRange:  mapping,
			CapturedRange: captured,
			MinPos:        minPos,
			MaxPos:        maxPos,
			RealFPS:       1.0 / time.Since(start).Seconds(),
			ReportedFPS:   cam.FrameRate(),
			Histogram:     hist,
		})
		c.notifyConsumer()

		// Drain pending settings without blocking, compacting a burst of
		// updates down to the most recent.
		c.drainSettings(&settings)

		select {
		case <-c.stop:
			c.closeStream(cam)
			return
		default:
		}
	}
}

func (c *Capturer) drainSettings(settings *Settings) {
	for {
		select {
		case s := <-c.settingsCh:
			*settings = s
		default:
			return
		}
	}
}

// emit delivers a result without ever blocking the worker. When the consumer
// has fallen resultQueueSize behind, the oldest undelivered result is
// dropped.
func (c *Capturer) emit(r *Result) {
	for {
		select {
		case c.results <- r:
			return
		default:
		}
		select {
		case <-c.results:
			monitoring.Logf("capture: consumer behind, dropped oldest result")
		default:
		}
	}
}

// notifyConsumer invokes the notification callback. A panicking callback is
// logged and must not kill the loop.
func (c *Capturer) notifyConsumer() {
	if c.notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("capture: notify callback panicked: %v", r)
		}
	}()
	c.notify()
}

func (c *Capturer) closeStream(cam Camera) {
	if err := cam.StopStream(); err != nil {
		monitoring.Logf("capture: failed to stop camera stream: %v", err)
	}
	if err := cam.Close(); err != nil {
		monitoring.Logf("capture: failed to close camera: %v", err)
	}
}
