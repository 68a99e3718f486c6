package skim

import (
	"math"

	"github.com/ftl/cwskim/dsp"
)

// ThresholdMode selects how ChannelSplitter reduces a channel's peak
// magnitude into an envelope sample. It replaces the teacher's compile-time
// #if USE_* variants with a runtime-selected tagged variant (spec.md §9).
type ThresholdMode int

const (
	ModeThreshold ThresholdMode = iota
	ModeRatio
	ModeBottom
	ModePassthrough
)

// ThresWeight is the default THRES_WEIGHT used by ModeThreshold. spec.md §4.3
// lists 6.0 and 8.0 as the two calibrations seen in the source variants;
// 8.0 is the more recent one and is the default here.
const ThresWeight = 8.0

const thresholdEpsilon = 1e-9

// ChannelSplitter reduces a bin_count magnitude spectrum into one envelope
// sample per channel and applies the adaptive threshold.
type ChannelSplitter struct {
	channelCount int
	binCount     int
	mode         ThresholdMode
	thresWeight  float64

	debounceThreshold int
	debouncers        []*dsp.BoolDebouncer

	peaks []float64
	envs  []float64
}

// NewChannelSplitter returns a splitter for the given channel/bin counts
// and threshold mode, using the default THRES_WEIGHT.
func NewChannelSplitter(channelCount, binCount int, mode ThresholdMode) *ChannelSplitter {
	return &ChannelSplitter{
		channelCount:      channelCount,
		binCount:          binCount,
		mode:              mode,
		thresWeight:       ThresWeight,
		debounceThreshold: 1,
		peaks:             make([]float64, channelCount),
		envs:              make([]float64, channelCount),
	}
}

// SetThresWeight overrides THRES_WEIGHT for ModeThreshold.
func (s *ChannelSplitter) SetThresWeight(weight float64) {
	s.thresWeight = weight
}

// SetDebounceThreshold debounces the ModeThreshold binary envelope per
// channel before it is handed to the pipeline, mirroring the teacher's
// dsp.BoolDebouncer being applied to the signal state ahead of the decoder
// (cw/spectral.go's SpectralDemodulator.Tick). A threshold below 2 disables
// debouncing, which is the default and preserves spec.md's literal
// 0/1-per-frame threshold semantics (invariant 4).
func (s *ChannelSplitter) SetDebounceThreshold(threshold int) {
	s.debounceThreshold = threshold
	s.debouncers = nil
}

// Split reduces mags (length binCount) into one envelope sample per
// channel, returning the envelopes, the raw per-channel peaks, and the
// overall maximum peak across all channels (used for the -d diagnostic).
func (s *ChannelSplitter) Split(mags []float64, avgPower float64) (envs []float64, peaks []float64, maxPower float64) {
	if len(mags) != s.binCount {
		panic("skim: magnitude spectrum length does not match bin count")
	}

	for i := range s.peaks {
		s.peaks[i] = 0
	}
	for b, m := range mags {
		c := b * s.channelCount / s.binCount
		if m > s.peaks[c] {
			s.peaks[c] = m
		}
	}

	if s.debouncers == nil && s.debounceThreshold >= 2 {
		s.debouncers = make([]*dsp.BoolDebouncer, s.channelCount)
		for i := range s.debouncers {
			s.debouncers[i] = dsp.NewBoolDebouncer(s.debounceThreshold)
		}
	}

	for c, peak := range s.peaks {
		if peak > maxPower {
			maxPower = peak
		}
		s.envs[c] = s.envelope(c, peak, avgPower)
	}

	return s.envs, s.peaks, maxPower
}

func (s *ChannelSplitter) envelope(channel int, peak, avgPower float64) float64 {
	switch s.mode {
	case ModeRatio:
		ratio := peak / math.Max(avgPower, thresholdEpsilon)
		return math.Max(1, ratio)
	case ModeBottom:
		return math.Max(0, peak-avgPower)
	case ModePassthrough:
		return peak
	default:
		state := peak >= avgPower*s.thresWeight
		if s.debouncers != nil {
			state = s.debouncers[channel].Debounce(state)
		}
		if state {
			return 1
		}
		return 0
	}
}

// FrequencyHz returns the printed frequency for a channel: c * sampleRate /
// (2 * channelCount), bin-center-aligned integer division (spec.md §4.5).
func FrequencyHz(channel, sampleRate, channelCount int) int {
	return channel * sampleRate / (2 * channelCount)
}
