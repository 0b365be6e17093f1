package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// State of the live session. Closed/cleanup always returns to Idle; the
// session is reusable.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

// EventKind discriminates inbound transport events.
type EventKind int

const (
	// EventAudio carries one inbound PCM chunk at the output rate.
	EventAudio EventKind = iota
	// EventInterrupted signals the remote model was interrupted by new user
	// input; all pending playback must be discarded.
	EventInterrupted
	// EventClosed signals the transport ended, normally or with an error.
	EventClosed
)

// Event is one inbound message from the live transport.
type Event struct {
	Kind EventKind
	PCM  []byte
	Err  error
}

// Transport is a connected bidirectional audio stream to the remote endpoint.
type Transport interface {
	// Send pushes one outbound PCM chunk at the input rate.
	Send(ctx context.Context, pcm []byte) error
	// Events delivers inbound events until EventClosed.
	Events() <-chan Event
	Close() error
}

// DialFunc opens a transport; called once per Start.
type DialFunc func(ctx context.Context) (Transport, error)

// Capture produces microphone samples as float32 frames at its own rate.
// Start fails when permission is denied.
type Capture interface {
	Start(ctx context.Context) (<-chan []float32, error)
	SampleRate() int
	Stop() error
}

var (
	ErrNotIdle   = errors.New("live session already running")
	ErrNotActive = errors.New("live session not active")
)

const defaultSendBuffer = 32

// Config wires a Session's collaborators.
type Config struct {
	Dial     DialFunc
	Capture  Capture
	Timeline *Timeline
	// SendBuffer bounds the capture -> network channel; when full the oldest
	// frame is dropped rather than blocking the capture callback.
	SendBuffer int
	Logger     *slog.Logger
}

// Session drives one live coaching conversation: capture frames go out over
// the transport while inbound frames are scheduled on the playback timeline,
// and a parallel recorder keeps the local audio for optional persistence.
type Session struct {
	dial       DialFunc
	capture    Capture
	timeline   *Timeline
	sendBuffer int
	logger     *slog.Logger
	recorder   *Recorder

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	group     *errgroup.Group
	transport Transport
}

// NewSession builds a session from its collaborators.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Dial == nil {
		return nil, errors.New("live: dial func required")
	}
	if cfg.Capture == nil {
		return nil, errors.New("live: capture required")
	}
	if cfg.Timeline == nil {
		return nil, errors.New("live: timeline required")
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		dial:       cfg.Dial,
		capture:    cfg.Capture,
		timeline:   cfg.Timeline,
		sendBuffer: cfg.SendBuffer,
		logger:     cfg.Logger,
		recorder:   NewRecorder(InputSampleRate),
	}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle -> Connecting -> Streaming. Capture permission
// failure or a dial error returns the session to Idle without ever entering
// Streaming.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = StateConnecting
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())

	frames, err := s.capture.Start(runCtx)
	if err != nil {
		cancel()
		s.setIdle()
		return err
	}
	s.recorder.Reset()

	transport, err := s.dial(ctx)
	if err != nil {
		_ = s.capture.Stop()
		cancel()
		s.setIdle()
		return err
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	out := make(chan []byte, s.sendBuffer)

	group.Go(func() error { return s.captureLoop(groupCtx, frames, out) })
	group.Go(func() error { return s.sendLoop(groupCtx, transport, out) })
	group.Go(func() error { return s.recvLoop(groupCtx, transport) })

	s.mu.Lock()
	s.state = StateStreaming
	s.cancel = cancel
	s.group = group
	s.transport = transport
	s.mu.Unlock()
	return nil
}

// Stop tears the session down and returns the locally captured recording as
// a WAV blob. Pending playback is halted; no outbound frame is retried after
// teardown.
func (s *Session) Stop() ([]byte, error) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	cancel := s.cancel
	group := s.group
	transport := s.transport
	s.cancel = nil
	s.group = nil
	s.transport = nil
	s.mu.Unlock()

	cancel()
	_ = transport.Close()
	_ = s.capture.Stop()
	_ = group.Wait()
	s.timeline.Interrupt()
	s.setIdle()
	return s.recorder.WAV(), nil
}

// captureLoop encodes microphone frames and pushes them onto the bounded
// outbound channel, dropping the oldest frame under backpressure.
func (s *Session) captureLoop(ctx context.Context, frames <-chan []float32, out chan []byte) error {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			resampled := Resample(frame, s.capture.SampleRate(), InputSampleRate)
			pcm := EncodePCM(resampled)
			s.recorder.Write(pcm)
			select {
			case out <- pcm:
			default:
				// Bounded send path: drop the oldest queued frame.
				select {
				case <-out:
				default:
				}
				select {
				case out <- pcm:
				default:
				}
			}
		}
	}
}

func (s *Session) sendLoop(ctx context.Context, transport Transport, out <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pcm, ok := <-out:
			if !ok {
				return nil
			}
			if err := transport.Send(ctx, pcm); err != nil {
				// In-flight audio is discarded, not requeued.
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) recvLoop(ctx context.Context, transport Transport) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-transport.Events():
			if !ok {
				s.closeFromRemote(nil)
				return nil
			}
			switch ev.Kind {
			case EventAudio:
				if err := s.timeline.Schedule(ev.PCM); err != nil {
					s.logger.Warn("live playback schedule failed", "err", err)
				}
			case EventInterrupted:
				s.timeline.Interrupt()
			case EventClosed:
				s.closeFromRemote(ev.Err)
				return nil
			}
		}
	}
}

// closeFromRemote forces the session back to Idle after an endpoint close or
// error; no reconnection is attempted.
func (s *Session) closeFromRemote(err error) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	transport := s.transport
	s.cancel = nil
	s.group = nil
	s.transport = nil
	s.state = StateIdle
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("live session closed by endpoint", "err", err)
	}
	if cancel != nil {
		cancel()
	}
	if transport != nil {
		_ = transport.Close()
	}
	_ = s.capture.Stop()
	s.timeline.Interrupt()
}

// Recording returns the recorder owning the locally captured audio.
func (s *Session) Recording() *Recorder {
	return s.recorder
}

func (s *Session) setIdle() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}
