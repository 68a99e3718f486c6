package skim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ftl/cwskim/trace"
)

// stubTracer records every Trace call under its context, like FileTracer
// would write them to a file.
type stubTracer struct {
	context string
	lines   []string
}

func (s *stubTracer) Context() string { return s.context }
func (s *stubTracer) Start()          {}
func (s *stubTracer) Stop()           {}
func (s *stubTracer) Trace(context string, format string, args ...any) {
	if context != s.context {
		return
	}
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

// morseElement is one on or off interval of a keyed CW waveform, measured in
// dit units.
type morseElement struct {
	on    bool
	units int
}

// parisElements spells "PARIS" in standard 1:3:1:3:7 timing (dit:dah:intra-
// char gap:inter-char gap:word gap), omitting the trailing word gap since
// the test relies on end-of-input to flush the final character instead.
var parisElements = []morseElement{
	// P: .--.
	{true, 1}, {false, 1}, {true, 3}, {false, 1}, {true, 3}, {false, 1}, {true, 1}, {false, 3},
	// A: .-
	{true, 1}, {false, 1}, {true, 3}, {false, 3},
	// R: .-.
	{true, 1}, {false, 1}, {true, 3}, {false, 1}, {true, 1}, {false, 3},
	// I: ..
	{true, 1}, {false, 1}, {true, 1}, {false, 3},
	// S: ...
	{true, 1}, {false, 1}, {true, 1}, {false, 1}, {true, 1}, {false, 3},
}

// synthesizeMorse renders elements as a keyed sine tone at toneHz, sampled at
// sampleRate, with one dit lasting ditTicks samples.
func synthesizeMorse(elements []morseElement, ditTicks, sampleRate int, toneHz, amplitude float64) []float32 {
	var samples []float32
	n := 0
	for _, el := range elements {
		count := el.units * ditTicks
		for i := 0; i < count; i++ {
			var v float32
			if el.on {
				t := float64(n) / float64(sampleRate)
				v = float32(amplitude * math.Sin(2*math.Pi*toneHz*t))
			}
			samples = append(samples, v)
			n++
		}
	}
	return samples
}

func TestEngine_TracesSpectrumWhenWired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	samples := make([]float32, cfg.FFTSize()*3)
	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, nil, nil)

	tracer := &stubTracer{context: trace.SpectrumContext}
	e.SetTracer(tracer)

	err := e.Run()
	assert.NoError(t, err)

	assert.Len(t, tracer.lines, 3)
	for _, line := range tracer.lines {
		assert.Equal(t, cfg.ChannelCount()-1, strings.Count(line, ";"))
	}
}

func TestEngine_DoesNotTraceWhenContextMismatched(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	samples := make([]float32, cfg.FFTSize()*2)
	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, nil, nil)

	tracer := &stubTracer{context: "other"}
	e.SetTracer(tracer)

	err := e.Run()
	assert.NoError(t, err)
	assert.Empty(t, tracer.lines)
}

func TestEngine_DecodesKeyedTone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	const toneHz = 600
	const channel = 6
	assert.Equal(t, toneHz, FrequencyHz(channel, cfg.SampleRate, cfg.ChannelCount()))

	const ditTicks = 480 // 20 WPM at 8000 Hz, the decoder's own default preset
	samples := synthesizeMorse(parisElements, ditTicks, cfg.SampleRate, toneHz, 10.0)

	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, nil, nil)

	err := e.Run()
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "600:PARIS")
}

func TestEngine_EmptyInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	out := &bytes.Buffer{}
	e := NewEngine(cfg, &bytes.Buffer{}, out, nil, nil)

	err := e.Run()
	assert.NoError(t, err)
	assert.Equal(t, "", out.String())
}

func TestEngine_SubThresholdNoiseProducesNoOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	rng := rand.New(rand.NewSource(1))
	samples := make([]float32, cfg.FFTSize()*40)
	for i := range samples {
		samples[i] = float32(rng.Float64()*0.02 - 0.01)
	}

	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, nil, nil)

	err := e.Run()
	assert.NoError(t, err)
	assert.Equal(t, "", out.String())
}

func TestEngine_ShortReadAtEofTerminatesCleanly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000

	samples := make([]float32, cfg.FFTSize()*2+3)
	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, nil, nil)

	err := e.Run()
	assert.NoError(t, err)
}

func TestEngine_DiagnosticLineShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 8000
	cfg.Diagnostic = true

	samples := make([]float32, cfg.FFTSize()*3)
	in := &bytes.Buffer{}
	for _, s := range samples {
		binary.Write(in, binary.LittleEndian, s)
	}

	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	e := NewEngine(cfg, in, out, diag, nil)

	err := e.Run()
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimRight(diag.String(), "\n"), "\n")
	assert.NotEmpty(t, lines)
	for _, line := range lines {
		idx := strings.Index(line, " (")
		assert.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, cfg.ChannelCount(), idx)
	}
}
