package skim

import (
	"io"

	"github.com/ftl/cwskim/cw"
	"github.com/ftl/cwskim/ring"
)

// ChannelPipeline owns one channel's full signal path: its input ring
// buffer of envelope samples, its decoder, the decoder's output ring
// buffer, and the channel's own character-repair state (spec.md §3).
type ChannelPipeline struct {
	In      *ring.Buffer[float32]
	Out     *ring.Buffer[byte]
	Decoder *cw.Decoder
	Repair  *Repair
}

// NewChannelPipeline allocates a pipeline sized per spec.md §4.4: an input
// ring of capacity sampleRate, an output ring of capacity 4*printChars.
func NewChannelPipeline(sampleRate, printChars int, showSymbols bool, symbolTrace io.Writer) *ChannelPipeline {
	in := ring.New[float32](sampleRate)
	out := ring.New[byte](4 * printChars)
	return &ChannelPipeline{
		In:      in,
		Out:     out,
		Decoder: cw.NewDecoder(in, out, sampleRate, showSymbols, symbolTrace),
		Repair:  NewRepair(),
	}
}

// PushEnvelope replicates one envelope sample step times into the input
// ring buffer, preserving the decoder's time-base relationship to audio
// samples. If there is not enough writeable space for all step replicas,
// the sample is dropped for this frame (spec.md §4.3/§7 backpressure).
func (p *ChannelPipeline) PushEnvelope(sample float64, step int) bool {
	if p.In.Writeable() < step {
		return false
	}
	s := float32(sample)
	for i := 0; i < step; i++ {
		p.In.Write([]float32{s})
	}
	return true
}

// Drive runs the decoder's cooperative dispatch loop once: while the
// decoder has samples to consume, it consumes them (spec.md §4.4).
func (p *ChannelPipeline) Drive() {
	for p.Decoder.CanProcess() {
		p.Decoder.Process()
	}
}

// Flush finalizes the decoder's in-progress character at end-of-input.
func (p *ChannelPipeline) Flush() {
	p.Decoder.Flush()
}

// repairPhase is the character-repair finite-state machine's state
// (spec.md §4.5).
type repairPhase int

const (
	repairNormal repairPhase = iota
	repairAfterSpace
	repairHolding
)

const maxHeldBytes = 3

// Repair suppresses isolated short-symbol "noise" letters (T, E, I) that
// appear as stray decodes around genuine word boundaries.
//
// The HOLDING state's transition on a non-noise byte has two documented
// interpretations in the source this design consolidates (emit the held
// bytes, or drop them); S4 in spec.md §8 pins the drop interpretation as
// canonical, so that is what Apply implements.
type Repair struct {
	state   repairPhase
	holding []byte
}

// NewRepair returns a Repair starting in the NORMAL state.
func NewRepair() *Repair {
	return &Repair{}
}

func isNoiseByte(b byte) bool {
	return b == 'T' || b == 'E' || b == 'I' || b == ' '
}

// Apply feeds in through the repair state machine and returns the bytes it
// emits, in order.
func (r *Repair) Apply(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		switch r.state {
		case repairNormal:
			out = append(out, b)
			if b == ' ' {
				r.state = repairAfterSpace
			}

		case repairAfterSpace:
			if isNoiseByte(b) {
				r.holding = append(r.holding[:0], b)
				r.state = repairHolding
			} else {
				out = append(out, b)
				r.state = repairNormal
			}

		case repairHolding:
			if isNoiseByte(b) {
				r.holding = append(r.holding, b)
				if len(r.holding) > maxHeldBytes {
					r.holding = r.holding[len(r.holding)-maxHeldBytes:]
				}
			} else {
				r.holding = r.holding[:0]
				out = append(out, b)
				r.state = repairNormal
			}
		}
	}
	return out
}

// Flush drops any bytes still held at end-of-input and resets to NORMAL.
func (r *Repair) Flush() {
	r.holding = r.holding[:0]
	r.state = repairNormal
}
