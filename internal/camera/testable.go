package camera

import (
	"errors"
	"sync"
)

// ErrNoMoreFrames is returned by TestableCamera.ReadFrame when the scripted
// frame queue is exhausted and blocking is disabled.
var ErrNoMoreFrames = errors.New("no more scripted frames")

// TestableCamera implements thermal.Camera with scriptable behaviour for
// unit tests: queued frames, injectable errors, call counts, and optional
// blocking when the queue runs dry.
type TestableCamera struct {
	mu   sync.Mutex
	cond *sync.Cond

	frames [][]byte

	// OpenErr is returned by OpenStream if set.
	OpenErr error

	// ReadErr is returned by the next ReadFrame call if set, then cleared.
	ReadErr error

	// StopErr is returned by StopStream if set.
	StopErr error

	// Rate is returned by FrameRate.
	Rate float64

	// BlockWhenEmpty makes ReadFrame wait for QueueFrame or Close instead
	// of returning ErrNoMoreFrames.
	BlockWhenEmpty bool

	// Call counters.
	OpenCalls  int
	ReadCalls  int
	StopCalls  int
	CloseCalls int

	closed bool
}

// NewTestableCamera creates an empty scriptable camera.
func NewTestableCamera() *TestableCamera {
	tc := &TestableCamera{Rate: 25}
	tc.cond = sync.NewCond(&tc.mu)
	return tc
}

// QueueFrame appends a raw frame to the script.
func (t *TestableCamera) QueueFrame(raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, raw)
	t.cond.Broadcast()
}

// FailNextRead makes the next ReadFrame return err.
func (t *TestableCamera) FailNextRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadErr = err
	t.cond.Broadcast()
}

func (t *TestableCamera) OpenStream() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.OpenCalls++
	return t.OpenErr
}

func (t *TestableCamera) ReadFrame() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadCalls++

	for {
		if t.ReadErr != nil {
			err := t.ReadErr
			t.ReadErr = nil
			return nil, err
		}
		if len(t.frames) > 0 {
			raw := t.frames[0]
			t.frames = t.frames[1:]
			return raw, nil
		}
		if t.closed {
			return nil, errors.New("camera closed")
		}
		if !t.BlockWhenEmpty {
			return nil, ErrNoMoreFrames
		}
		t.cond.Wait()
	}
}

func (t *TestableCamera) StopStream() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StopCalls++
	return t.StopErr
}

func (t *TestableCamera) FrameRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Rate
}

func (t *TestableCamera) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCalls++
	t.closed = true
	t.cond.Broadcast()
	return nil
}
