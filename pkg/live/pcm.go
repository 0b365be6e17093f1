package live

import (
	"encoding/binary"
	"time"
)

// Fixed constants of the live endpoint's protocol: outbound microphone audio
// is 16 kHz mono 16-bit PCM, inbound model audio is 24 kHz mono 16-bit PCM.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
)

const bytesPerSample = 2

// EncodePCM converts float32 samples in [-1, 1] to little-endian 16-bit PCM.
func EncodePCM(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(v))
	}
	return out
}

// DecodePCM converts little-endian 16-bit PCM to float32 samples. A trailing
// odd byte is ignored.
func DecodePCM(data []byte) []float32 {
	n := len(data) / bytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// Resample converts samples between rates by linear interpolation. It returns
// the input unchanged when the rates match.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// PCMDuration returns the playback duration of raw PCM at the given rate.
func PCMDuration(data []byte, sampleRate int) time.Duration {
	samples := len(data) / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
