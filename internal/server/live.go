package server

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"permajournal/internal/app"
	"permajournal/pkg/domain"
	"permajournal/pkg/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 14,
	WriteBufferSize: 1 << 14,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleLive relays a browser websocket to the live audio endpoint. The
// browser streams raw float32 microphone frames; scheduled playback chunks
// and interruption signals flow back as JSON.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if s.live == nil {
		aiUnavailable(w)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("live upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var start liveStartMessage
	if err := conn.ReadJSON(&start); err != nil || start.Type != "start" || start.SampleRate <= 0 {
		_ = conn.WriteJSON(liveServerMsg{Type: "error", Error: "expected start message with sampleRate"})
		return
	}

	relay := newLiveRelay(conn, start.SampleRate)
	instruction := liveInstruction(sess.User())
	session, err := live.NewSession(live.Config{
		Dial: func(ctx context.Context) (live.Transport, error) {
			return s.live.Connect(ctx, instruction)
		},
		Capture:  relay,
		Timeline: live.NewTimeline(relay, relaySink{relay}, live.OutputSampleRate),
	})
	if err != nil {
		_ = conn.WriteJSON(liveServerMsg{Type: "error", Error: "session setup failed"})
		return
	}
	if err := session.Start(r.Context()); err != nil {
		slog.Warn("live session start failed", "err", err)
		_ = conn.WriteJSON(liveServerMsg{Type: "error", Error: "could not connect live session"})
		return
	}
	_ = relay.writeJSON(liveServerMsg{Type: "started"})

	// Read pump: binary frames feed capture, a stop message ends the session.
	stopped := false
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			relay.push(decodeFloat32(data))
		case websocket.TextMessage:
			var msg liveClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type == "stop" {
				stopped = true
			}
		}
		if stopped {
			break
		}
	}

	wav, err := session.Stop()
	if err != nil {
		// Already torn down by the remote endpoint.
		return
	}
	if !stopped {
		return
	}
	resp := liveServerMsg{Type: "recording"}
	if key, err := s.app.StoreRecording(context.Background(), sess, wav); err != nil {
		slog.Error("store recording failed", "err", err)
	} else if key != "" {
		resp.Key = key
	} else {
		resp.Data = base64.StdEncoding.EncodeToString(wav)
	}
	_ = relay.writeJSON(resp)
}

func liveInstruction(user domain.Profile) string {
	return fmt.Sprintf(`You are a warm, empathetic voice coach and an expert in the PERMA well-being model.
Speak naturally and briefly. The user's life purpose: %q.
Answer in the user's language.`, user.PurposeStatement)
}

// liveRelay adapts one websocket connection to the live session's capture and
// playback interfaces. The relay clock starts when the session does.
type liveRelay struct {
	conn       *websocket.Conn
	sampleRate int
	start      time.Time

	writeMu sync.Mutex
	nextID  int

	mu     sync.Mutex
	frames chan []float32
	closed bool
}

func newLiveRelay(conn *websocket.Conn, sampleRate int) *liveRelay {
	return &liveRelay{
		conn:       conn,
		sampleRate: sampleRate,
		frames:     make(chan []float32, 32),
	}
}

// Start implements live.Capture.
func (rl *liveRelay) Start(ctx context.Context) (<-chan []float32, error) {
	rl.start = time.Now()
	return rl.frames, nil
}

// SampleRate implements live.Capture.
func (rl *liveRelay) SampleRate() int {
	return rl.sampleRate
}

// Stop implements live.Capture.
func (rl *liveRelay) Stop() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.closed {
		rl.closed = true
		close(rl.frames)
	}
	return nil
}

// push feeds one microphone frame, dropping it when the buffer is full.
func (rl *liveRelay) push(frame []float32) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.closed {
		return
	}
	select {
	case rl.frames <- frame:
	default:
	}
}

// Now implements live.Clock.
func (rl *liveRelay) Now() time.Duration {
	return time.Since(rl.start)
}

// relaySink forwards scheduled playback chunks to the browser; playback
// itself happens client-side.
type relaySink struct {
	*liveRelay
}

func (s relaySink) Start(pcm []byte, at time.Duration) (live.Playing, error) {
	rl := s.liveRelay
	rl.writeMu.Lock()
	rl.nextID++
	id := rl.nextID
	rl.writeMu.Unlock()
	err := rl.writeJSON(liveServerMsg{
		Type: "audio",
		ID:   id,
		AtMs: at.Milliseconds(),
		Data: base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return nil, err
	}
	return &relayPlaying{relay: rl, id: id}, nil
}

func (rl *liveRelay) writeJSON(msg liveServerMsg) error {
	rl.writeMu.Lock()
	defer rl.writeMu.Unlock()
	return rl.conn.WriteJSON(msg)
}

type relayPlaying struct {
	relay *liveRelay
	id    int
	once  sync.Once
}

// Stop tells the browser to drop the chunk if it has not finished playing.
func (p *relayPlaying) Stop() {
	p.once.Do(func() {
		_ = p.relay.writeJSON(liveServerMsg{Type: "stop", ID: p.id})
	})
}

type liveStartMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sampleRate"`
}

type liveClientMsg struct {
	Type string `json:"type"`
}

type liveServerMsg struct {
	Type  string `json:"type"`
	ID    int    `json:"id,omitempty"`
	AtMs  int64  `json:"atMs,omitempty"`
	Data  string `json:"data,omitempty"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error,omitempty"`
}

// decodeFloat32 reads little-endian float32 samples.
func decodeFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
