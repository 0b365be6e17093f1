package live

import (
	"sync"
	"time"
)

// Clock reports the playback context's current position.
type Clock interface {
	Now() time.Duration
}

// Sink starts playback of one PCM chunk at a position on the clock and
// returns a handle that can stop it early.
type Sink interface {
	Start(pcm []byte, at time.Duration) (Playing, error)
}

// Playing is an in-flight scheduled chunk.
type Playing interface {
	Stop()
}

// Timeline schedules inbound audio chunks for gapless sequential playback:
// each chunk starts at max(now, previous chunk's end). An interruption stops
// everything scheduled and resets the clock position to zero.
type Timeline struct {
	clock Clock
	sink  Sink
	rate  int

	mu        sync.Mutex
	nextStart time.Duration
	active    []Playing
	stopped   bool
}

// NewTimeline builds a playback timeline for PCM at sampleRate.
func NewTimeline(clock Clock, sink Sink, sampleRate int) *Timeline {
	return &Timeline{clock: clock, sink: sink, rate: sampleRate}
}

// Schedule queues one chunk after the previously scheduled chunk's end.
// Chunks scheduled after Close are discarded.
func (t *Timeline) Schedule(pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	at := t.nextStart
	if now := t.clock.Now(); now > at {
		at = now
	}
	playing, err := t.sink.Start(pcm, at)
	if err != nil {
		return err
	}
	t.active = append(t.active, playing)
	t.nextStart = at + PCMDuration(pcm, t.rate)
	return nil
}

// Interrupt stops and discards all scheduled chunks and resets the playback
// clock position; the timeline stays usable (barge-in).
func (t *Timeline) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopAllLocked()
	t.nextStart = 0
}

// Close stops all playback permanently; further Schedule calls are dropped.
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopAllLocked()
	t.nextStart = 0
	t.stopped = true
}

// Pending reports how many scheduled chunks have not been stopped.
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

func (t *Timeline) stopAllLocked() {
	for _, p := range t.active {
		p.Stop()
	}
	t.active = nil
}
