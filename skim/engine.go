package skim

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ftl/cwskim/audio"
	"github.com/ftl/cwskim/trace"
)

// Config carries the frame parameters derived from the CLI surface
// (spec.md §3/§6). Normalize clamps sample_rate and print_chars and derives
// every other frame parameter from them.
type Config struct {
	SampleRate  int
	PrintChars  int
	Encoding    audio.Encoding
	ShowSymbols bool
	Diagnostic  bool

	Estimator     EstimatorVariant
	ThresholdMode ThresholdMode
	SuppressSpurs bool
}

// DefaultConfig returns a Config with spec.md's defaults: 32-bit float
// input, THRESHOLD mode, the populated-scale estimator, and spur
// suppression enabled.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		PrintChars:    8,
		Encoding:      audio.Float32LE,
		Estimator:     EstimatorPopulated,
		ThresholdMode: ModeThreshold,
		SuppressSpurs: true,
	}
}

// Normalize clamps SampleRate to [8000, 48000] and PrintChars to [1, 32].
func (c *Config) Normalize() {
	c.SampleRate = clamp(c.SampleRate, 8000, 48000)
	c.PrintChars = clamp(c.PrintChars, 1, 32)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChannelCount is sample_rate / 200, per spec.md §3.
func (c Config) ChannelCount() int {
	return c.SampleRate / 200
}

// FFTSize is 2 * ChannelCount, per spec.md §3.
func (c Config) FFTSize() int {
	return 2 * c.ChannelCount()
}

// Step is the number of new samples consumed per frame. The design permits
// step <= fft_size with overlap; the engine uses the non-overlapping
// default, step == fft_size.
func (c Config) Step() int {
	return c.FFTSize()
}

// Engine ties the SpectralFrontEnd, NoiseEstimator, ChannelSplitter, the
// ChannelPipeline vector, and the OutputFormatter together into the
// single-threaded cooperative main loop spec.md §5 describes: read a
// frame, transform it, update the estimator, fan out to all channels,
// drive decoders, flush output.
type Engine struct {
	cfg Config

	front     *SpectralFrontEnd
	noise     *NoiseEstimator
	splitter  *ChannelSplitter
	pipelines []*ChannelPipeline
	output    *OutputFormatter

	diagWriter io.Writer
	tracer     trace.Tracer
}

// NewEngine wires up a complete pipeline reading from in and writing
// decoded text to out. When cfg.Diagnostic is set, per-frame diagnostic
// lines are written to diagOut.
func NewEngine(cfg Config, in io.Reader, out io.Writer, diagOut io.Writer, symbolTrace io.Writer) *Engine {
	cfg.Normalize()
	channelCount := cfg.ChannelCount()

	reader := audio.NewReader(in, cfg.Encoding)
	front := NewSpectralFrontEnd(reader, cfg.FFTSize(), cfg.Step(), cfg.SuppressSpurs)
	splitter := NewChannelSplitter(channelCount, front.BinCount(), cfg.ThresholdMode)

	pipelines := make([]*ChannelPipeline, channelCount)
	for i := range pipelines {
		pipelines[i] = NewChannelPipeline(cfg.SampleRate, cfg.PrintChars, cfg.ShowSymbols, symbolTrace)
	}

	return &Engine{
		cfg:        cfg,
		front:      front,
		noise:      NewNoiseEstimator(cfg.Estimator),
		splitter:   splitter,
		pipelines:  pipelines,
		output:     NewOutputFormatter(out, cfg.SampleRate, channelCount, cfg.PrintChars),
		diagWriter: diagOut,
		tracer:     &trace.NoTracer{},
	}
}

// SetTracer wires a tracer for deep spectrum dumps (spec.md §3), independent
// of the required -d diagnostic line. Every Ready frame's magnitude
// spectrum is offered to it under trace.SpectrumContext; a tracer whose
// Context() does not match that string (including the default NoTracer)
// discards it.
func (e *Engine) SetTracer(tracer trace.Tracer) {
	e.tracer = tracer
}

// Run executes the cooperative main loop until end-of-input, then performs
// one final draining pass over every channel (spec.md §5/§8 S5).
func (e *Engine) Run() error {
	for {
		result, mags := e.front.ReadFrame()
		if result != Ready {
			break
		}

		if e.tracer.Context() == trace.SpectrumContext {
			e.tracer.Trace(trace.SpectrumContext, "%s\n", traceSpectrumLine(mags))
		}

		avgPower := e.noise.Update(mags, e.cfg.Step(), e.cfg.SampleRate)
		envs, peaks, maxPower := e.splitter.Split(mags, avgPower)

		for c, env := range envs {
			e.pipelines[c].PushEnvelope(env, e.cfg.Step())
		}
		for _, p := range e.pipelines {
			p.Drive()
		}

		if err := e.output.Drain(e.pipelines, false); err != nil {
			return err
		}

		if e.cfg.Diagnostic && e.diagWriter != nil {
			fmt.Fprintln(e.diagWriter, diagnosticLine(peaks, avgPower, maxPower))
		}
	}

	for _, p := range e.pipelines {
		p.Flush()
	}
	return e.output.Drain(e.pipelines, true)
}

// traceSpectrumLine renders one frame's raw magnitude spectrum as a
// semicolon-separated line, in the teacher's trace-line format (cw/decode.go's
// "%f;%f;%f;%f;%f;%d\n" tracing of per-tick timing state, generalized here to
// one field per bin instead of one field per named quantity).
func traceSpectrumLine(mags []float64) string {
	var b strings.Builder
	for i, m := range mags {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.6f", m)
	}
	return b.String()
}

// diagnosticLine renders the -d diagnostic line: one glyph per channel
// ('.' for sub-threshold, '0'..'9' scaled by peak/max_power*10 otherwise),
// followed by " (avg_power, max_power)" (spec.md §6/§8 S6).
func diagnosticLine(peaks []float64, avgPower, maxPower float64) string {
	var b strings.Builder
	for _, peak := range peaks {
		if peak < avgPower {
			b.WriteByte('.')
			continue
		}
		scaled := peak / math.Max(maxPower, 1e-9) * 10
		digit := int(math.Floor(scaled))
		digit = clamp(digit, 0, 9)
		b.WriteByte(byte('0' + digit))
	}
	fmt.Fprintf(&b, " (%g, %g)", avgPower, maxPower)
	return b.String()
}
