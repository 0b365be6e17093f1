package live

import (
	"encoding/base64"
	"encoding/binary"
	"sync"
)

// Recorder accumulates captured PCM chunks in parallel with the live session
// and assembles them into a single WAV blob on stop.
type Recorder struct {
	mu     sync.Mutex
	rate   int
	chunks [][]byte
	size   int
}

// NewRecorder builds a recorder for mono 16-bit PCM at sampleRate.
func NewRecorder(sampleRate int) *Recorder {
	return &Recorder{rate: sampleRate}
}

// Write appends one captured PCM chunk.
func (r *Recorder) Write(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
	r.mu.Unlock()
}

// Reset discards all accumulated audio.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.chunks = nil
	r.size = 0
	r.mu.Unlock()
}

// Len returns the accumulated PCM payload size in bytes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// WAV assembles the accumulated chunks into one mono 16-bit WAV blob.
func (r *Recorder) WAV() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]byte, 0, r.size)
	for _, chunk := range r.chunks {
		data = append(data, chunk...)
	}
	return wavHeader(len(data), r.rate, data)
}

// Base64WAV returns the WAV blob as a base64 payload for inline persistence.
func (r *Recorder) Base64WAV() string {
	return base64.StdEncoding.EncodeToString(r.WAV())
}

func wavHeader(dataLen, sampleRate int, data []byte) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf := make([]byte, 0, 44+dataLen)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, numChannels)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, data...)
	return buf
}
