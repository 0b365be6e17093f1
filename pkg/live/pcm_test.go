package live

import (
	"testing"
	"time"
)

func TestEncodePCMClampsAndRoundTrips(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 2, -2}
	encoded := EncodePCM(in)
	if len(encoded) != len(in)*2 {
		t.Fatalf("expected %d bytes, got %d", len(in)*2, len(encoded))
	}
	decoded := DecodePCM(encoded)
	if len(decoded) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(decoded))
	}
	// out-of-range input clamps to full scale
	if decoded[3] < 0.99 || decoded[4] > -0.99 {
		t.Fatalf("expected clamped samples, got %v %v", decoded[3], decoded[4])
	}
	for i := 0; i < 3; i++ {
		diff := decoded[i] - in[i]
		if diff < -0.001 || diff > 0.001 {
			t.Fatalf("sample %d drifted: in=%v out=%v", i, in[i], decoded[i])
		}
	}
}

func TestDecodePCMIgnoresTrailingByte(t *testing.T) {
	if got := DecodePCM([]byte{0x00, 0x40, 0xff}); len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
}

func TestResampleRates(t *testing.T) {
	samples := make([]float32, 480)
	for i := range samples {
		samples[i] = float32(i) / 480
	}

	down := Resample(samples, 48000, 16000)
	if len(down) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(down))
	}
	// monotone input stays monotone after interpolation
	for i := 1; i < len(down); i++ {
		if down[i] < down[i-1] {
			t.Fatalf("interpolation not monotone at %d", i)
		}
	}

	same := Resample(samples, 16000, 16000)
	if len(same) != len(samples) {
		t.Fatalf("expected passthrough at equal rates")
	}

	if got := Resample(nil, 48000, 16000); got != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestPCMDuration(t *testing.T) {
	// 16000 samples at 16 kHz is one second
	data := make([]byte, 16000*2)
	if got := PCMDuration(data, InputSampleRate); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	half := make([]byte, 24000)
	if got := PCMDuration(half, OutputSampleRate); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", got)
	}
}

func TestRecorderAssemblesWAV(t *testing.T) {
	r := NewRecorder(InputSampleRate)
	r.Write([]byte{1, 2, 3, 4})
	r.Write([]byte{5, 6})
	if r.Len() != 6 {
		t.Fatalf("expected 6 bytes, got %d", r.Len())
	}

	wav := r.WAV()
	if len(wav) != 44+6 {
		t.Fatalf("expected 50 byte WAV, got %d", len(wav))
	}
	if string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("malformed WAV header: %q", wav[:12])
	}
	if string(wav[36:40]) != "data" {
		t.Fatalf("missing data chunk: %q", wav[36:40])
	}

	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("expected empty recorder after reset")
	}
}

func TestRecorderCopiesChunks(t *testing.T) {
	r := NewRecorder(InputSampleRate)
	chunk := []byte{1, 2, 3, 4}
	r.Write(chunk)
	chunk[0] = 99
	wav := r.WAV()
	if wav[44] != 1 {
		t.Fatalf("recorder aliased caller's buffer")
	}
}
