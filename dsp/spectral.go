package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// HammingWindow returns the Hamming window coefficients for a window of the
// given size: w[n] = 0.54 - 0.46*cos(2*pi*n/(size-1)).
func HammingWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for n := range window {
		window[n] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/float64(size-1))
	}
	return window
}

// SpectralFFT turns a real-valued sample frame into a magnitude spectrum.
// It reuses the teacher's complex-DFT wrapper around mjibson/go-dsp/fft
// (dsp/fft.go in the original), generalized from IQ input (real+imaginary
// sample pairs) to plain real audio (imaginary part fixed at zero).
type SpectralFFT struct {
	fftSize  int
	binCount int
	window   []float64
	windowed []float64
	complex  []complex128
}

// NewSpectralFFT returns a SpectralFFT for frames of fftSize real samples,
// producing fftSize/2 magnitude bins per call to Magnitudes.
func NewSpectralFFT(fftSize int) *SpectralFFT {
	return &SpectralFFT{
		fftSize:  fftSize,
		binCount: fftSize / 2,
		window:   HammingWindow(fftSize),
		windowed: make([]float64, fftSize),
		complex:  make([]complex128, fftSize),
	}
}

// BinCount is the number of positive-frequency magnitude bins this
// transform produces.
func (f *SpectralFFT) BinCount() int {
	return f.binCount
}

// Magnitudes windows frame (Hamming, in-place on a scratch copy), computes
// the real-to-complex DFT, and writes the magnitude of each of the first
// BinCount() bins into dst, which must have length BinCount(). frame must
// have length fftSize.
func (f *SpectralFFT) Magnitudes(frame []float64, dst []float64) {
	if len(frame) != f.fftSize {
		panic("dsp: frame length does not match fft size")
	}
	if len(dst) != f.binCount {
		panic("dsp: destination length does not match bin count")
	}

	for i, sample := range frame {
		f.windowed[i] = sample * f.window[i]
		f.complex[i] = complex(f.windowed[i], 0)
	}

	result := fft.FFT(f.complex)
	for k := 0; k < f.binCount; k++ {
		re := real(result[k])
		im := imag(result[k])
		dst[k] = math.Sqrt(re*re + im*im)
	}
}

// NeighborWeight is the default spur-suppression weight used by
// SubtractNeighbors (spec.md §4.1 NEIGH_WEIGHT).
const NeighborWeight = 0.5

// SubtractNeighbors attenuates spectral spurs in place: each bin has half
// of NeighborWeight times the sum of its immediate neighbors subtracted,
// clamped at zero. Edge bins use only the single neighbor they have. This
// is the canonical (clamping) form from spec.md §4.1; AddNeighborsUnclamped
// below restores the original C++ program's unclamped edge handling for
// parity testing (see DESIGN.md Open Questions).
func SubtractNeighbors(mags []float64, weight float64) {
	if len(mags) == 0 {
		return
	}
	last := len(mags) - 1

	prev := mags[0]
	for k := range mags {
		var subtrahend float64
		switch {
		case k == 0:
			subtrahend = weight * mags[1]
		case k == last:
			subtrahend = weight * prev
		default:
			subtrahend = 0.5 * weight * (prev + mags[k+1])
		}
		prev = mags[k]

		subtracted := mags[k] - subtrahend
		if subtracted < 0 {
			subtracted = 0
		}
		mags[k] = subtracted
	}
}

// AddNeighborsUnclamped reproduces the original skimmer.cpp spur filter,
// which adds rather than subtracts a fraction of the neighbors' power and
// never clamps to zero. Kept for parity testing against original_source
// only; SubtractNeighbors is the default used by SpectralFrontEnd.
func AddNeighborsUnclamped(mags []float64, weight float64) []float64 {
	result := make([]float64, len(mags))
	last := len(mags) - 1
	for k := range mags {
		switch {
		case k == 0:
			result[k] = mags[k] + weight*mags[k+1]
		case k == last:
			result[k] = weight*mags[k-1] + mags[k]
		default:
			result[k] = mags[k] + weight*(mags[k-1]+mags[k+1])
		}
	}
	return result
}
