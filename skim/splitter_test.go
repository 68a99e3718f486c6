package skim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelSplitter_BinMapping(t *testing.T) {
	const channelCount = 4
	const binCount = 8
	s := NewChannelSplitter(channelCount, binCount, ModePassthrough)

	mags := make([]float64, binCount)
	mags[2] = 5.0
	mags[3] = 1.0 // same channel as bin 2 (channelCount=4, binCount=8 -> 2 bins per channel)

	envs, peaks, maxPower := s.Split(mags, 0)

	assert.Equal(t, 5.0, peaks[1])
	assert.Equal(t, 5.0, envs[1])
	assert.Equal(t, 5.0, maxPower)
}

func TestChannelSplitter_Modes(t *testing.T) {
	tt := []struct {
		mode     ThresholdMode
		peak     float64
		avgPower float64
		expected float64
	}{
		{ModeThreshold, 100, 1, 1},
		{ModeThreshold, 1, 100, 0},
		{ModeRatio, 10, 5, 2},
		{ModeRatio, 1, 100, 1},
		{ModeBottom, 10, 3, 7},
		{ModeBottom, 1, 100, 0},
		{ModePassthrough, 42, 1000, 42},
	}

	for _, tc := range tt {
		s := NewChannelSplitter(1, 2, tc.mode)
		envs, _, _ := s.Split([]float64{tc.peak, 0}, tc.avgPower)
		assert.InDelta(t, tc.expected, envs[0], 1e-9)
	}
}

func TestChannelSplitter_Invariant4(t *testing.T) {
	tt := []struct {
		mode ThresholdMode
		ok   func(v float64) bool
	}{
		{ModeThreshold, func(v float64) bool { return v == 0 || v == 1 }},
		{ModeRatio, func(v float64) bool { return v >= 1 }},
		{ModeBottom, func(v float64) bool { return v >= 0 }},
	}

	for _, tc := range tt {
		s := NewChannelSplitter(1, 2, tc.mode)
		for _, peak := range []float64{0, 0.5, 1, 100, 1e6} {
			envs, _, _ := s.Split([]float64{peak, 0}, 10)
			assert.True(t, tc.ok(envs[0]), "mode %v peak %v got %v", tc.mode, peak, envs[0])
		}
	}
}

func TestChannelSplitter_Debounce(t *testing.T) {
	s := NewChannelSplitter(1, 2, ModeThreshold)
	s.SetDebounceThreshold(3)

	// A single above-threshold frame should not yet flip the debounced state.
	envs, _, _ := s.Split([]float64{100, 0}, 1)
	assert.Equal(t, 0.0, envs[0])

	s.Split([]float64{100, 0}, 1)
	envs, _, _ = s.Split([]float64{100, 0}, 1)
	assert.Equal(t, 1.0, envs[0])
}

func TestFrequencyHz(t *testing.T) {
	tt := []struct {
		channel      int
		sampleRate   int
		channelCount int
		expected     int
	}{
		{6, 48000, 240, 600},
		{0, 48000, 240, 0},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.expected, FrequencyHz(tc.channel, tc.sampleRate, tc.channelCount))
	}
}
