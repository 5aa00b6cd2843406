package audio

import (
	"errors"

	resampler "github.com/godeps/go-audio-soxr"
)

// Resampler converts a continuous mono PCM16 stream from the capture rate to
// the wire rate. It keeps resampling state across chunks, so feed it audio in
// arrival order.
type Resampler struct {
	engine *resampler.SimpleResamplerFloat32
}

// NewResampler creates a streaming resampler. inRate equal to outRate is an
// error; skip resampling in that case.
func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, errors.New("sample rates must be positive")
	}
	if inRate == outRate {
		return nil, errors.New("input already at target rate")
	}
	engine, err := resampler.NewEngineFloat32(float64(inRate), float64(outRate), resampler.QualityHigh)
	if err != nil {
		return nil, err
	}
	return &Resampler{engine: engine}, nil
}

// Process resamples one chunk and returns whatever output is ready.
func (r *Resampler) Process(pcm []int16) ([]int16, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("resampler is closed")
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	out, err := r.engine.Process(int16ToFloat32(pcm))
	if err != nil {
		return nil, err
	}
	return float32ToInt16(out), nil
}

// Flush drains the samples still buffered inside the engine.
func (r *Resampler) Flush() ([]int16, error) {
	if r == nil || r.engine == nil {
		return nil, errors.New("resampler is closed")
	}
	out, err := r.engine.Flush()
	if err != nil {
		return nil, err
	}
	return float32ToInt16(out), nil
}

// Close resets and releases the engine.
func (r *Resampler) Close() {
	if r == nil || r.engine == nil {
		return
	}
	r.engine.Reset()
	r.engine = nil
}
