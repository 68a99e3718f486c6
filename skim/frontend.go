package skim

import (
	"io"

	"github.com/ftl/cwskim/audio"
	"github.com/ftl/cwskim/dsp"
)

// FrameResult is the outcome of one SpectralFrontEnd.ReadFrame call.
type FrameResult int

const (
	// Ready means the frame buffer was fully populated and a magnitude
	// spectrum was produced.
	Ready FrameResult = iota
	// Eof means the input stream is exhausted; no frame was produced.
	Eof
	// ShortRead means fewer than step new samples were available; the
	// partial frame is discarded and the stream is treated as ended.
	ShortRead
)

// SpectralFrontEnd turns a raw audio stream into a sequence of magnitude
// spectra: it maintains a sliding window of fft_size samples advancing by
// step samples per frame, windows it, transforms it, and optionally
// suppresses spectral spurs by neighbor subtraction.
type SpectralFrontEnd struct {
	source *audio.Reader

	fftSize int
	step    int

	suppressSpurs  bool
	neighborWeight float64

	samples []float64
	scratch []float64

	fft  *dsp.SpectralFFT
	mags []float64
}

// NewSpectralFrontEnd returns a front end reading from source, framing with
// the given fft_size/step (spec.md §3), and applying the canonical
// neighbor-subtraction spur filter when suppressSpurs is true.
func NewSpectralFrontEnd(source *audio.Reader, fftSize, step int, suppressSpurs bool) *SpectralFrontEnd {
	return &SpectralFrontEnd{
		source:         source,
		fftSize:        fftSize,
		step:           step,
		suppressSpurs:  suppressSpurs,
		neighborWeight: dsp.NeighborWeight,
		samples:        make([]float64, fftSize),
		scratch:        make([]float64, step),
		fft:            dsp.NewSpectralFFT(fftSize),
		mags:           make([]float64, fftSize/2),
	}
}

// BinCount is the number of magnitude bins each frame produces.
func (f *SpectralFrontEnd) BinCount() int {
	return f.fft.BinCount()
}

// ReadFrame attempts to advance the sliding window by step samples and
// produce the next magnitude spectrum. The returned slice is only valid
// when result is Ready, and is reused on the next call.
func (f *SpectralFrontEnd) ReadFrame() (result FrameResult, magnitudes []float64) {
	shift := f.fftSize - f.step
	if shift > 0 {
		copy(f.samples, f.samples[f.step:])
	}

	_, err := f.source.ReadSamples(f.scratch)
	switch err {
	case nil:
		copy(f.samples[shift:], f.scratch)
	case io.ErrUnexpectedEOF:
		return ShortRead, nil
	case io.EOF:
		return Eof, nil
	default:
		return Eof, nil
	}

	f.fft.Magnitudes(f.samples, f.mags)
	if f.suppressSpurs {
		dsp.SubtractNeighbors(f.mags, f.neighborWeight)
	}
	return Ready, f.mags
}
