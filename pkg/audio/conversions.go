// Package audio prepares capture-side PCM for the wire: the vendor only
// accepts 16 kHz mono little-endian PCM16.
package audio

import "math"

// WireRate is the sample rate the vendor contract fixes for input audio.
const WireRate = 16000

// BytesToInt16 converts little-endian PCM bytes to samples. A trailing odd
// byte is dropped.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		offset := i * 2
		samples[i] = int16(uint16(data[offset]) | uint16(data[offset+1])<<8)
	}
	return samples
}

// Int16ToBytes converts samples to little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		offset := i * 2
		out[offset] = byte(sample)
		out[offset+1] = byte(sample >> 8)
	}
	return out
}

// DownmixToMono averages interleaved channels into one.
func DownmixToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

func int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = float32(sample) / float32(math.MaxInt16)
	}
	return out
}

func float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		switch {
		case sample > 1.0:
			out[i] = math.MaxInt16
		case sample < -1.0:
			out[i] = math.MinInt16
		default:
			out[i] = int16(sample * math.MaxInt16)
		}
	}
	return out
}
