// Package audio decodes raw headerless PCM into the float64 samples the
// spectral front end consumes. It supports the two input encodings
// spec.md §6 names: 32-bit little-endian floats already in [-1, 1), and
// 16-bit signed little-endian integers normalized by dividing by 32768.
package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// Encoding selects how raw bytes are converted to float64 samples.
type Encoding int

const (
	// Float32LE is the default encoding (spec.md §6, the -f flag).
	Float32LE Encoding = iota
	// Int16LE is the -i flag encoding.
	Int16LE
)

func (e Encoding) bytesPerSample() int {
	switch e {
	case Int16LE:
		return 2
	default:
		return 4
	}
}

// Reader decodes a raw PCM byte stream into float64 samples one batch at a
// time.
type Reader struct {
	r        io.Reader
	encoding Encoding
	scratch  []byte
}

// NewReader returns a Reader decoding r's bytes according to encoding.
func NewReader(r io.Reader, encoding Encoding) *Reader {
	return &Reader{r: r, encoding: encoding}
}

// ReadSamples fills dst with as many decoded samples as a full read can
// provide. It returns n, the number of samples decoded, and one of:
//   - (len(dst), nil) on a full read,
//   - (n, io.ErrUnexpectedEOF) on a short read where 0 <= n < len(dst),
//   - (0, io.EOF) when no bytes at all remain.
func (r *Reader) ReadSamples(dst []float64) (int, error) {
	bps := r.encoding.bytesPerSample()
	need := len(dst) * bps
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	buf := r.scratch[:need]

	read, err := io.ReadFull(r.r, buf)
	switch err {
	case nil:
		r.decode(buf, dst)
		return len(dst), nil
	case io.EOF:
		return 0, io.EOF
	case io.ErrUnexpectedEOF:
		n := read / bps
		r.decode(buf[:n*bps], dst[:n])
		return n, io.ErrUnexpectedEOF
	default:
		return 0, err
	}
}

func (r *Reader) decode(buf []byte, dst []float64) {
	switch r.encoding {
	case Int16LE:
		for i := range dst {
			raw := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			dst[i] = float64(raw) / 32768.0
		}
	default:
		for i := range dst {
			bits := binary.LittleEndian.Uint32(buf[i*4:])
			dst[i] = float64(math.Float32frombits(bits))
		}
	}
}
