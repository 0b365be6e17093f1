package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"permajournal/pkg/live"
)

const (
	defaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	defaultLiveVoice = "Zephyr"

	liveWSBaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// LiveClient dials the Gemini bidirectional audio endpoint. Outbound frames
// are 16 kHz PCM, inbound frames 24 kHz PCM, both base64-framed on the wire.
type LiveClient struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	dialer  *websocket.Dialer
}

// NewLiveClient constructs a live-audio client. Empty model/voice fall back
// to the defaults.
func NewLiveClient(apiKey, model, voice string) (*LiveClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultLiveModel
	}
	if strings.TrimSpace(voice) == "" {
		voice = defaultLiveVoice
	}
	return &LiveClient{
		apiKey:  apiKey,
		baseURL: liveWSBaseURL,
		model:   model,
		voice:   voice,
		dialer:  &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}, nil
}

// WithBaseURL overrides the websocket endpoint, used by tests.
func (c *LiveClient) WithBaseURL(baseURL string) *LiveClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Connect opens the stream, sends the session setup and returns a transport.
func (c *LiveClient) Connect(ctx context.Context, systemInstruction string) (live.Transport, error) {
	url := fmt.Sprintf("%s?key=%s", c.baseURL, c.apiKey)
	conn, resp, err := c.dialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial live endpoint: %w", err)
	}

	setup := liveClientMessage{
		Setup: &liveSetup{
			Model: "models/" + normalizeModel(c.model),
			GenerationConfig: &liveGenerationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.voice},
					},
				},
			},
		},
	}
	if strings.TrimSpace(systemInstruction) != "" {
		setup.Setup.SystemInstruction = &contentTurn{Parts: []part{{Text: systemInstruction}}}
	}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send live setup: %w", err)
	}

	t := &liveTransport{
		conn:     conn,
		events:   make(chan live.Event, 16),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

type liveTransport struct {
	conn     *websocket.Conn
	events   chan live.Event
	done     chan struct{}
	readDone chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Send pushes one outbound PCM frame as base64 realtime input.
func (t *liveTransport) Send(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := liveClientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []mediaChunk{{
				MimeType: fmt.Sprintf("audio/pcm;rate=%d", live.InputSampleRate),
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

func (t *liveTransport) Events() <-chan live.Event {
	return t.events
}

func (t *liveTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *liveTransport) readLoop() {
	defer close(t.readDone)
	defer close(t.events)
	for {
		var msg liveServerMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.deliver(live.Event{Kind: live.EventClosed})
			} else {
				t.deliver(live.Event{Kind: live.EventClosed, Err: err})
			}
			return
		}
		if msg.SetupComplete != nil {
			continue
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					continue
				}
				if !t.deliver(live.Event{Kind: live.EventAudio, PCM: pcm}) {
					return
				}
			}
		}
		if sc.Interrupted {
			if !t.deliver(live.Event{Kind: live.EventInterrupted}) {
				return
			}
		}
	}
}

// deliver hands one event to the consumer. After Close the consumer may be
// gone; the read loop must not stay pinned on a full channel.
func (t *liveTransport) deliver(ev live.Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// wire types for the bidirectional stream

type liveClientMessage struct {
	Setup         *liveSetup     `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
}

type liveSetup struct {
	Model             string                `json:"model"`
	GenerationConfig  *liveGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *contentTurn          `json:"systemInstruction,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type liveServerMessage struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *liveServerContent `json:"serverContent,omitempty"`
}

type liveServerContent struct {
	ModelTurn    *inlineTurn `json:"modelTurn,omitempty"`
	Interrupted  bool        `json:"interrupted,omitempty"`
	TurnComplete bool        `json:"turnComplete,omitempty"`
}

type inlineTurn struct {
	Parts []inlinePart `json:"parts"`
}

type inlinePart struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}
