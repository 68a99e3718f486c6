package skim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepair_S4_DropsStrayE(t *testing.T) {
	r := NewRepair()
	out := r.Apply([]byte("CQ E DE"))
	assert.Equal(t, "CQ DE", string(out))
}

func TestRepair_PassesThroughNonNoise(t *testing.T) {
	r := NewRepair()
	out := r.Apply([]byte("HELLO WORLD"))
	assert.Equal(t, "HELLO WORLD", string(out))
}

func TestRepair_HoldingBoundedToThree(t *testing.T) {
	r := NewRepair()
	// Five consecutive noise bytes after a space, then a real letter: the
	// holding queue keeps only the three most recent noise bytes, those are
	// dropped on the transition, and the real letter is still emitted.
	out := r.Apply([]byte(" EEEEEX"))
	assert.Equal(t, " X", string(out))
}

func TestRepair_FeedByteByByte(t *testing.T) {
	r := NewRepair()
	var out []byte
	for _, b := range []byte("CQ E DE") {
		out = append(out, r.Apply([]byte{b})...)
	}
	assert.Equal(t, "CQ DE", string(out))
}

func TestChannelPipeline_PushEnvelope_Backpressure(t *testing.T) {
	p := NewChannelPipeline(8, 4, false, nil)

	ok := p.PushEnvelope(1, 8)
	assert.True(t, ok)
	assert.Equal(t, 0, p.In.Writeable())

	ok = p.PushEnvelope(1, 1)
	assert.False(t, ok)
}
