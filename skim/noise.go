package skim

import (
	"math"
	"sort"

	"github.com/ftl/cwskim/dsp"
)

// MaxScales is the number of logarithmic magnitude buckets the
// populated-scale estimator partitions the spectrum into (spec.md §4.2).
const MaxScales = 16

// AvgSeconds is the time constant, in seconds, of the avg_power low-pass
// filter (spec.md §4.2).
const AvgSeconds = 3

// EstimatorVariant selects which ground-noise algorithm NoiseEstimator
// runs. EstimatorPopulated is the spec.md canonical default; EstimatorMaxHold
// restores the simpler max-hold-then-decay form the original C++ program
// used, kept for parity testing (see SPEC_FULL.md §4 and DESIGN.md).
type EstimatorVariant int

const (
	EstimatorPopulated EstimatorVariant = iota
	EstimatorMaxHold
)

// NoiseEstimator maintains avg_power, a scalar estimate of the ambient
// noise floor in magnitude units, robust to sporadic strong signals.
type NoiseEstimator struct {
	variant  EstimatorVariant
	avgPower float64

	scaleSum   [MaxScales]float64
	scaleCount [MaxScales]int
	order      [MaxScales]int

	smoothed *dsp.RollingMean[float64]
}

// NewNoiseEstimator returns a NoiseEstimator seeded with avg_power = 4.0,
// so the first frames under-trigger rather than over-trigger (spec.md §9).
func NewNoiseEstimator(variant EstimatorVariant) *NoiseEstimator {
	return &NoiseEstimator{
		variant:  variant,
		avgPower: 4.0,
		smoothed: dsp.NewRollingMean[float64](8),
	}
}

// AvgPower returns the current noise floor estimate.
func (e *NoiseEstimator) AvgPower() float64 {
	return e.avgPower
}

// Update folds one frame's magnitude spectrum into avg_power and returns
// the updated value. step and sampleRate determine the low-pass
// coefficient exactly as spec.md §4.2 invariant 3 requires.
func (e *NoiseEstimator) Update(mags []float64, step, sampleRate int) float64 {
	if e.variant == EstimatorMaxHold {
		// Applies skimmer.cpp's avgPower = fmax(avgPower, accPower) * 0.9999
		// update: a max-hold followed by a fixed decay, not the EMA below. The
		// ground fed into it is smoothed first (see maxHoldGround).
		ground := e.maxHoldGround(mags)
		e.avgPower = math.Max(e.avgPower, ground) * 0.9999
		return e.avgPower
	}

	ground := e.populatedScaleGround(mags)
	coefficient := float64(step) / float64(sampleRate) / float64(AvgSeconds)
	e.avgPower += (ground - e.avgPower) * coefficient
	return e.avgPower
}

// populatedScaleGround implements the populated-scale estimator: bins are
// bucketed into logarithmic scales, scales are walked in descending
// population order, and the walk accumulates until it covers at least half
// of the bins. The mean of that accumulation is the ground estimate.
func (e *NoiseEstimator) populatedScaleGround(mags []float64) float64 {
	for i := range e.scaleSum {
		e.scaleSum[i] = 0
		e.scaleCount[i] = 0
	}

	for _, m := range mags {
		scale := scaleOf(m)
		e.scaleSum[scale] += m
		e.scaleCount[scale]++
	}

	for i := range e.order {
		e.order[i] = i
	}
	sort.SliceStable(e.order[:], func(i, j int) bool {
		return e.scaleCount[e.order[i]] > e.scaleCount[e.order[j]]
	})

	half := len(mags) / 2
	var sum float64
	var count int
	for _, scale := range e.order {
		if count >= half {
			break
		}
		sum += e.scaleSum[scale]
		count += e.scaleCount[scale]
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// scaleOf buckets a magnitude into one of MaxScales natural-log scales
// (spec.md §9: natural log, canonical over log10).
func scaleOf(m float64) int {
	if m <= 0 {
		return 0
	}
	scale := int(math.Floor(math.Log(m))) + 1
	if scale < 0 {
		scale = 0
	}
	if scale > MaxScales-1 {
		scale = MaxScales - 1
	}
	return scale
}

// maxHoldGround reproduces the original skimmer.cpp's accPower/avgPower
// relationship: a plain mean of all bins, smoothed over a short rolling
// window before the caller's decay step is applied.
func (e *NoiseEstimator) maxHoldGround(mags []float64) float64 {
	var sum float64
	for _, m := range mags {
		sum += m
	}
	mean := sum / float64(len(mags))
	return e.smoothed.Put(mean)
}
