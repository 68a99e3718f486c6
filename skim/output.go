package skim

import (
	"bufio"
	"fmt"
	"io"
)

// OutputFormatter drains each channel pipeline's output ring, applies its
// repair state, and prints the decoded text (spec.md §4.5). It wraps the
// underlying writer in a bufio.Writer, flushed at line boundaries, in place
// of unbuffered printf calls inside the per-frame loop.
type OutputFormatter struct {
	w            *bufio.Writer
	sampleRate   int
	channelCount int
	printChars   int
	scratch      []byte
}

// NewOutputFormatter returns an OutputFormatter writing to w.
func NewOutputFormatter(w io.Writer, sampleRate, channelCount, printChars int) *OutputFormatter {
	return &OutputFormatter{
		w:            bufio.NewWriter(w),
		sampleRate:   sampleRate,
		channelCount: channelCount,
		printChars:   printChars,
		scratch:      make([]byte, 4*printChars),
	}
}

// Drain checks every pipeline's output ring and prints a line for any
// channel that has at least the drain threshold available. When final is
// true the threshold drops to 1 so channel tails are flushed at
// end-of-input (spec.md §4.5), and each channel's held repair bytes are
// dropped rather than carried forward.
func (f *OutputFormatter) Drain(pipelines []*ChannelPipeline, final bool) error {
	threshold := f.printChars
	if final {
		threshold = 1
	}

	for c, p := range pipelines {
		available := p.Out.Available()
		if available < threshold {
			continue
		}

		if cap(f.scratch) < available {
			f.scratch = make([]byte, available)
		}
		buf := f.scratch[:available]
		p.Out.Read(buf)

		repaired := p.Repair.Apply(buf)
		if final {
			p.Repair.Flush()
		}
		if len(repaired) == 0 {
			continue
		}

		freq := FrequencyHz(c, f.sampleRate, f.channelCount)
		if _, err := fmt.Fprintf(f.w, "%d:%s\n", freq, repaired); err != nil {
			return err
		}
	}

	return f.w.Flush()
}
