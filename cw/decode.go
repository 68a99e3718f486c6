// Package cw implements the CwDecoder collaborator: given a normalized
// envelope stream (spec.md §2 item 2), it pulls one sample at a time
// through CanProcess()/Process() and writes decoded characters into an
// output ring buffer. The edge-timing state machine, the adaptive
// dit/dah thresholds, and the Morse code table are carried over from the
// Goertzel-tick-driven decoder this package started as (Tick(state bool)
// called once per filter block), generalized to the pull interface the
// ring-buffered channel pipeline requires.
//
// The edge-timing logic is based on OZ1JHM's Goertzel CW decoder for the
// Arduino. The Goertzel tone detection itself is not part of this package:
// the decoder receives an already detected envelope.
//
// See also:
// * https://www.embedded.com/the-goertzel-algorithm/
// * https://www.embedded.com/single-tone-detection-with-the-goertzel-algorithm/
// * http://www.oz1jhm.dk/sites/default/files/decoder11.ino
// * https://github.com/G6EJD/ESP32-Morse-Decoder/blob/master/ESP32_Morse_Code_Decoder_02.ino
package cw

import (
	"fmt"
	"io"
	"math"

	"github.com/ftl/digimodes/cw"

	"github.com/ftl/cwskim/ring"
)

const (
	unknownCharacter byte = '?'

	defaultWPM     = 20
	maxSymbolCount = 8

	minDitTime ticks = 2.0

	envelopeThreshold = 0.5
)

var noSymbol = cw.Symbol{}

type cwChar [maxSymbolCount]cw.Symbol

func (c *cwChar) String() string {
	result := ""
loop:
	for _, s := range c {
		switch s {
		case noSymbol:
			break loop
		case cw.Dit:
			result += "."
		case cw.Da:
			result += "-"
		}
	}
	return result
}

func (c *cwChar) clear() {
	for i := range c {
		c[i] = noSymbol
	}
}

func (c *cwChar) append(symbol cw.Symbol) bool {
	for i, s := range c {
		if s == noSymbol {
			c[i] = symbol
			return true
		}
	}
	return false
}

func (c *cwChar) set(symbols []cw.Symbol) {
	for i := range c {
		if i < len(symbols) {
			c[i] = symbols[i]
		} else {
			c[i] = noSymbol
		}
	}
}

func (c *cwChar) empty() bool {
	return c[0] == noSymbol
}

func toCWChar(symbols ...cw.Symbol) cwChar {
	var result cwChar
	result.set(symbols)
	return result
}

// ticks counts envelope samples; one tick is one sample at sampleRate Hz.
type ticks float64

// Decoder is the CwDecoder collaborator. The owning ChannelPipeline calls
// CanProcess()/Process() once the input ring buffer has envelope samples
// available, and reads decoded bytes back out of the output ring buffer.
type Decoder struct {
	in  *ring.Buffer[float32]
	out *ring.Buffer[byte]

	tickSeconds float64
	ticks       ticks

	lastState bool
	onStart   ticks
	offStart  ticks
	wpm       float64
	decoding  bool

	abortDecodeAfterDits int

	currentChar        cwChar
	currentCharInvalid bool
	decodeTable        map[cwChar]rune
	onThreshold        *AdaptiveThreshold
	offThreshold       *AdaptiveThreshold

	showSymbols bool
	symbolTrace io.Writer
}

// NewDecoder returns a Decoder reading envelope samples from in and writing
// decoded characters to out. When showSymbols is true, the decoder also
// writes a dit/dah trace of every decoded character to symbolTrace
// (spec.md §6, the -c flag).
func NewDecoder(in *ring.Buffer[float32], out *ring.Buffer[byte], sampleRate int, showSymbols bool, symbolTrace io.Writer) *Decoder {
	result := &Decoder{
		in:                   in,
		out:                  out,
		tickSeconds:          1.0 / float64(sampleRate),
		wpm:                  defaultWPM,
		abortDecodeAfterDits: 10,
		decodeTable:          generateDecodeTable(),
		showSymbols:          showSymbols,
		symbolTrace:          symbolTrace,
	}
	result.currentChar.clear()

	ditTime := result.wpmToDit(result.wpm)
	result.onThreshold = NewAdaptiveThreshold(ditTime)
	result.offThreshold = NewAdaptiveThreshold(ditTime)

	return result
}

func generateDecodeTable() map[cwChar]rune {
	result := make(map[cwChar]rune, len(cw.Code))
	for text, symbols := range cw.Code {
		var c cwChar
		c.set(symbols)
		result[c] = text
	}
	return result
}

// PresetWPM seeds the adaptive dit/dah thresholds at a starting speed.
func (d *Decoder) PresetWPM(wpm int) {
	d.wpm = float64(wpm)
	ditTime := d.wpmToDit(d.wpm)
	d.onThreshold.Preset(ditTime)
	d.offThreshold.Preset(ditTime)
}

// WPM returns the decoder's current speed estimate.
func (d *Decoder) WPM() int {
	return int(math.Round(d.wpm))
}

// CanProcess reports whether Process has at least one envelope sample to
// consume.
func (d *Decoder) CanProcess() bool {
	return d.in.Available() > 0
}

// Process consumes exactly one envelope sample and advances the decoder's
// edge-timing state machine by one tick.
func (d *Decoder) Process() {
	var buf [1]float32
	if d.in.Read(buf[:]) == 0 {
		return
	}
	d.tick(buf[0] > envelopeThreshold)
}

// Flush finalizes any in-progress character. Callers drain each channel
// with this once at end-of-input (spec.md §4.5).
func (d *Decoder) Flush() {
	d.decodeCurrentChar()
}

// Reset returns the decoder to its initial speed estimate and clears all
// in-progress timing state.
func (d *Decoder) Reset() {
	d.PresetWPM(defaultWPM)
	d.Clear()
	d.onThreshold.Reset()
}

// Clear drops any in-progress character and timing state without touching
// the adaptive speed thresholds.
func (d *Decoder) Clear() {
	d.decoding = false
	d.currentChar.clear()
	d.ticks = 0
	d.onStart = 0
	d.offStart = 0
}

func (d *Decoder) tick(state bool) {
	d.ticks++
	now := d.ticks

	if state != d.lastState {
		if state {
			offDuration := now - d.offStart
			d.onStart = now
			d.onRisingEdge(offDuration)
		} else {
			onDuration := now - d.onStart
			d.offStart = now
			d.onFallingEdge(onDuration)
		}
		d.decoding = true
	}
	d.lastState = state

	var currentDuration ticks
	if state {
		currentDuration = now - d.onStart
	} else {
		currentDuration = now - d.offStart
	}
	upperBound := d.offThreshold.Get() * ticks(d.abortDecodeAfterDits)

	if d.decoding && currentDuration > upperBound {
		d.decoding = false
		d.decodeCurrentChar()
	}
}

func (d *Decoder) onRisingEdge(offDuration ticks) {
	if offDuration < minDitTime {
		return
	}

	d.offThreshold.Put(offDuration, true)

	threshold := d.offThreshold.Get()
	upperThreshold := 4.5 * d.offThreshold.Low()
	switch {
	case offDuration >= upperThreshold:
		d.decodeCurrentChar()
		d.writeByte(' ')
	case offDuration >= threshold:
		d.decodeCurrentChar()
	}
}

func (d *Decoder) onFallingEdge(onDuration ticks) {
	if onDuration < minDitTime {
		return
	}

	d.onThreshold.Put(onDuration, true)

	threshold := d.onThreshold.Get()
	upperThreshold := 2 * d.onThreshold.High()
	switch {
	case onDuration >= upperThreshold:
		d.currentCharInvalid = true
	case onDuration >= threshold:
		d.appendSymbol(cw.Da)
		d.wpm = (d.wpm + d.ditToWPM(d.onThreshold.Low())) / 2.0
	default:
		d.appendSymbol(cw.Dit)
	}
}

func (d *Decoder) appendSymbol(s cw.Symbol) {
	if !d.currentChar.append(s) {
		d.decodeCurrentChar()
		d.currentChar.append(s)
	}
}

func (d *Decoder) decodeCurrentChar() {
	if d.currentChar.empty() {
		return
	}
	defer d.currentChar.clear()

	if d.showSymbols && d.symbolTrace != nil {
		fmt.Fprintf(d.symbolTrace, "%s ", d.currentChar.String())
	}

	if d.currentCharInvalid {
		d.currentCharInvalid = false
		d.writeByte(unknownCharacter)
		return
	}

	r, ok := d.decodeTable[d.currentChar]
	if !ok {
		d.writeByte(unknownCharacter)
		return
	}
	d.writeByte(asciiUpper(r))
}

// writeByte appends b to the output ring buffer, dropping the oldest
// buffered byte first if the buffer is full (spec.md §7: the decoder
// writer, not the ring buffer itself, is responsible for drop-oldest
// semantics on overflow).
func (d *Decoder) writeByte(b byte) {
	if d.out.Writeable() == 0 {
		var discard [1]byte
		d.out.Read(discard[:])
	}
	d.out.Write([]byte{b})
}

func asciiUpper(r rune) byte {
	if r >= 'a' && r <= 'z' {
		return byte(r - 'a' + 'A')
	}
	if r > 0x7f {
		return unknownCharacter
	}
	return byte(r)
}

func ditToWPM(dit ticks, tickSeconds float64) float64 {
	return 60.0 / (50.0 * float64(dit) * tickSeconds)
}

func (d *Decoder) wpmToDit(wpm float64) ticks {
	ditSeconds := 60.0 / (50.0 * wpm)
	return ticks(math.Ceil(ditSeconds / d.tickSeconds))
}

func (d *Decoder) ditToWPM(ditTicks ticks) float64 {
	return ditToWPM(ditTicks, d.tickSeconds)
}

// AdaptiveThreshold tracks the running low/high timing extremes of a
// signal (on-duration or off-duration ticks) and derives a decision
// threshold as their geometric mean, adapting to the sender's speed over
// time.
type AdaptiveThreshold struct {
	preset     ticks
	upperBound ticks

	low  ticks
	high ticks

	last      ticks
	threshold ticks
}

func NewAdaptiveThreshold(preset ticks) *AdaptiveThreshold {
	result := &AdaptiveThreshold{
		preset:     preset,
		upperBound: 10,
	}
	result.Reset()
	return result
}

func (t *AdaptiveThreshold) Reset() {
	t.low = t.preset
	t.high = 3 * t.low // default 1:3 timing
	t.last = t.low
	t.updateThreshold()
}

func (t *AdaptiveThreshold) Preset(preset ticks) {
	t.preset = preset
	t.Reset()
}

func (t *AdaptiveThreshold) Put(duration ticks, state bool) {
	const highFactor = 2
	const avgWeight = 0.75
	const currentWeight = 1.0 - avgWeight

	if duration >= t.low*t.upperBound {
		return
	}

	if t.last >= duration*highFactor { // last high, now low
		t.low = avgWeight*t.low + currentWeight*duration
		t.high = avgWeight*t.high + currentWeight*t.last
	} else if duration >= t.last*highFactor { // last low, now high
		t.low = avgWeight*t.low + currentWeight*t.last
		t.high = avgWeight*t.high + currentWeight*duration
	}
	t.last = duration
	t.updateThreshold()
}

func (t *AdaptiveThreshold) updateThreshold() {
	// geometric mean
	t.threshold = ticks(math.Sqrt(float64(t.low) * float64(t.high)))
}

func (t *AdaptiveThreshold) Get() ticks  { return t.threshold }
func (t *AdaptiveThreshold) Low() ticks  { return t.low }
func (t *AdaptiveThreshold) High() ticks { return t.high }
