package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCapture struct {
	startErr error
	rate     int

	mu      sync.Mutex
	frames  chan []float32
	stopped bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{rate: InputSampleRate}
}

func (c *fakeCapture) Start(ctx context.Context) (<-chan []float32, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = make(chan []float32, 16)
	c.stopped = false
	return c.frames, nil
}

func (c *fakeCapture) SampleRate() int { return c.rate }

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames != nil && !c.stopped {
		c.stopped = true
		close(c.frames)
	}
	return nil
}

func (c *fakeCapture) push(frame []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frames == nil || c.stopped {
		return
	}
	c.frames <- frame
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan Event
	closed sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 16)}
}

func (t *fakeTransport) Send(_ context.Context, pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, pcm)
	return nil
}

func (t *fakeTransport) Events() <-chan Event { return t.events }

func (t *fakeTransport) Close() error {
	t.closed.Do(func() { close(t.events) })
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func newTestSession(t *testing.T, capture *fakeCapture, transport *fakeTransport) (*Session, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	sess, err := NewSession(Config{
		Dial:     func(context.Context) (Transport, error) { return transport, nil },
		Capture:  capture,
		Timeline: NewTimeline(&fakeClock{}, sink, OutputSampleRate),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess, sink
}

func TestSessionLifecycle(t *testing.T) {
	capture := newFakeCapture()
	transport := newFakeTransport()
	sess, _ := newTestSession(t, capture, transport)

	if sess.State() != StateIdle {
		t.Fatalf("expected idle before start")
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.State() != StateStreaming {
		t.Fatalf("expected streaming after start, got %v", sess.State())
	}
	if err := sess.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("expected ErrNotIdle, got %v", err)
	}

	capture.push(make([]float32, 160))
	waitFor(t, func() bool { return transport.sentCount() > 0 }, "frame forwarded")

	wav, err := sess.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(wav) != 44+320 {
		t.Fatalf("expected recording of one frame, got %d bytes", len(wav))
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %v", sess.State())
	}
	if _, err := sess.Stop(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestSessionCapturePermissionDenied(t *testing.T) {
	capture := newFakeCapture()
	capture.startErr = errors.New("permission denied")
	sess, _ := newTestSession(t, capture, newFakeTransport())

	if err := sess.Start(context.Background()); err == nil {
		t.Fatalf("expected capture error")
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle after capture failure, got %v", sess.State())
	}
}

func TestSessionDialFailure(t *testing.T) {
	capture := newFakeCapture()
	sink := &fakeSink{}
	sess, err := NewSession(Config{
		Dial:     func(context.Context) (Transport, error) { return nil, errors.New("dial failed") },
		Capture:  capture,
		Timeline: NewTimeline(&fakeClock{}, sink, OutputSampleRate),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sess.Start(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle after dial failure, got %v", sess.State())
	}
	capture.mu.Lock()
	stopped := capture.stopped
	capture.mu.Unlock()
	if !stopped {
		t.Fatalf("capture should be released after dial failure")
	}
}

func TestSessionSchedulesInboundAudio(t *testing.T) {
	capture := newFakeCapture()
	transport := newFakeTransport()
	sess, sink := newTestSession(t, capture, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	transport.events <- Event{Kind: EventAudio, PCM: secondOfPCM()}
	waitFor(t, func() bool { return sink.count() == 1 }, "audio scheduled")

	if _, err := sess.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !sink.chunk(0).isStopped() {
		t.Fatalf("pending playback should be halted on stop")
	}
}

func TestSessionInterruptionHaltsPlayback(t *testing.T) {
	capture := newFakeCapture()
	transport := newFakeTransport()
	sess, sink := newTestSession(t, capture, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	transport.events <- Event{Kind: EventAudio, PCM: secondOfPCM()}
	transport.events <- Event{Kind: EventAudio, PCM: secondOfPCM()}
	waitFor(t, func() bool { return sink.count() == 2 }, "audio scheduled")

	transport.events <- Event{Kind: EventInterrupted}
	waitFor(t, func() bool {
		return sink.chunk(0).isStopped() && sink.chunk(1).isStopped()
	}, "interruption halts playback")

	// the stream continues after barge-in, restarting from position zero
	transport.events <- Event{Kind: EventAudio, PCM: secondOfPCM()}
	waitFor(t, func() bool { return sink.count() == 3 }, "audio after interruption")
	if sink.chunk(2).at != 0 {
		t.Fatalf("expected playback restart at 0, got %v", sink.chunk(2).at)
	}

	if _, err := sess.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

// blockingTransport holds every Send until the gate opens.
type blockingTransport struct {
	fakeTransport
	gate chan struct{}
}

func (t *blockingTransport) Send(ctx context.Context, pcm []byte) error {
	select {
	case <-t.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return t.fakeTransport.Send(ctx, pcm)
}

func TestSessionDropsOldestUnderBackpressure(t *testing.T) {
	capture := newFakeCapture()
	transport := &blockingTransport{
		fakeTransport: fakeTransport{events: make(chan Event, 16)},
		gate:          make(chan struct{}),
	}
	sink := &fakeSink{}
	sess, err := NewSession(Config{
		Dial:       func(context.Context) (Transport, error) { return transport, nil },
		Capture:    capture,
		Timeline:   NewTimeline(&fakeClock{}, sink, OutputSampleRate),
		SendBuffer: 2,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	const total = 10
	for i := 1; i <= total; i++ {
		frame := make([]float32, 160)
		for j := range frame {
			frame[j] = float32(i) / 20
		}
		capture.push(frame)
	}
	// every frame reaches the recorder even while the network is stalled
	waitFor(t, func() bool { return sess.Recording().Len() == total*320 }, "all frames captured")

	close(transport.gate)
	_ = capture.Stop()

	lastFrame := EncodePCM([]float32{float32(total) / 20})
	waitFor(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		n := len(transport.sent)
		if n == 0 {
			return false
		}
		last := transport.sent[n-1]
		return last[0] == lastFrame[0] && last[1] == lastFrame[1]
	}, "newest frame delivered")

	if got := transport.sentCount(); got >= total {
		t.Fatalf("expected older frames dropped under backpressure, sent %d of %d", got, total)
	}

	if _, err := sess.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSessionRemoteCloseReturnsToIdle(t *testing.T) {
	capture := newFakeCapture()
	transport := newFakeTransport()
	sess, _ := newTestSession(t, capture, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	transport.events <- Event{Kind: EventClosed, Err: errors.New("gone")}
	waitFor(t, func() bool { return sess.State() == StateIdle }, "session idle after remote close")

	if _, err := sess.Stop(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after remote close, got %v", err)
	}
}

func TestSessionIsReusable(t *testing.T) {
	capture := newFakeCapture()
	first := newFakeTransport()
	second := newFakeTransport()
	transports := []*fakeTransport{first, second}
	idx := 0
	sink := &fakeSink{}
	sess, err := NewSession(Config{
		Dial: func(context.Context) (Transport, error) {
			tr := transports[idx]
			idx++
			return tr, nil
		},
		Capture:  capture,
		Timeline: NewTimeline(&fakeClock{}, sink, OutputSampleRate),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	capture.push(make([]float32, 160))
	waitFor(t, func() bool { return first.sentCount() > 0 }, "first session frame")
	if _, err := sess.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	// the recorder starts fresh for each run
	if sess.Recording().Len() != 0 {
		t.Fatalf("expected recorder reset on restart, got %d bytes", sess.Recording().Len())
	}
	if _, err := sess.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
