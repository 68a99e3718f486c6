// Package dsp provides generic, reusable building blocks for the signal
// processing chain: the numeric constraint all magnitude/frequency types
// share, a boolean-state debouncer, and a rolling mean.
package dsp

import (
	"golang.org/x/exp/constraints"
)

// Number is the set of types usable for magnitude and frequency values
// throughout the DSP and channel-splitting code.
type Number interface {
	constraints.Integer | constraints.Float
}

// BoolDebouncer is a debouncer for boolean signals: the raw state must be
// stable for Threshold consecutive calls to Debounce before the debounced
// state follows it. A threshold below 2 disables debouncing (the debounced
// state always equals the raw state).
type BoolDebouncer struct {
	threshold int

	effectiveState bool
	lastRawState   bool
	stateCount     int
}

// NewBoolDebouncer returns a new debouncer with the given threshold.
func NewBoolDebouncer(threshold int) *BoolDebouncer {
	return &BoolDebouncer{threshold: threshold}
}

func (d *BoolDebouncer) SetThreshold(threshold int) {
	d.threshold = threshold
}

func (d *BoolDebouncer) Threshold() int {
	return d.threshold
}

// Debounce is called once per raw sample and returns the debounced state.
func (d *BoolDebouncer) Debounce(rawState bool) bool {
	if d.threshold < 2 {
		return rawState
	}

	if rawState != d.lastRawState {
		d.stateCount = 1
	} else {
		d.stateCount++
	}
	d.lastRawState = rawState

	if d.stateCount >= d.threshold {
		d.effectiveState = rawState
	}
	return d.effectiveState
}

// RollingMean calculates the mean over the last n values put into it.
type RollingMean[T Number] struct {
	values []T
	n      T
	next   int

	sumForMean T
	mean       T
}

// NewRollingMean returns a RollingMean over a window of size n.
func NewRollingMean[T Number](n int) *RollingMean[T] {
	return &RollingMean[T]{
		values: make([]T, n),
		n:      T(n),
	}
}

// Put a new value into the rolling window and get the new mean back.
func (v *RollingMean[T]) Put(value T) T {
	v.sumForMean -= v.values[v.next]
	v.values[v.next] = value
	v.sumForMean += value
	v.mean = v.sumForMean / v.n

	v.next = (v.next + 1) % len(v.values)

	return v.mean
}

// Get returns the current mean value.
func (v *RollingMean[T]) Get() T {
	return v.mean
}

// Reset clears the rolling window.
func (v *RollingMean[T]) Reset() {
	clear(v.values)
	v.next = 0
	v.sumForMean = 0
	v.mean = 0
}
