package subchecksum

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"git.sysex.dev/audio/deqfw/deqerr"
	"pgregory.net/rapid"
)

func paddedASCII(s string) []byte {
	buf := make([]byte, PayloadSize)
	copy(buf, s)
	return buf
}

func TestComputeKnownValues(t *testing.T) {
	assert.Equal(t, byte(0x47), Compute(paddedASCII("UPDATING FIRMWARE")))
	assert.Equal(t, byte(0x48), Compute(paddedASCII("READY... PLEASE CYCLE POWER")))
}

func TestVerifyBadLength(t *testing.T) {
	err := Verify(make([]byte, 10), 0)
	assert.ErrorIs(t, err, deqerr.ErrBadLength)
}

func TestVerifyMismatch(t *testing.T) {
	err := Verify(paddedASCII("UPDATING FIRMWARE"), 0)
	assert.ErrorIs(t, err, deqerr.ErrChecksumMismatch)
}

func TestVerifyMatch(t *testing.T) {
	assert.NoError(t, Verify(paddedASCII("UPDATING FIRMWARE"), 0x47))
}

// Law 4: equal inputs give equal outputs; any single-bit change in
// the input changes the output.
func TestComputeDeterministicAndSensitive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), PayloadSize, PayloadSize).Draw(t, "payload")
		bitPos := rapid.IntRange(0, PayloadSize*8-1).Draw(t, "bitPos")

		first := Compute(payload)
		second := Compute(append([]byte{}, payload...))
		assert.Equal(t, first, second)

		flipped := append([]byte{}, payload...)
		flipped[bitPos/8] ^= 1 << uint(bitPos%8)
		assert.NotEqual(t, first, Compute(flipped), "single-bit change did not affect checksum")
	})
}

func TestComputeOverASCIIHeader(t *testing.T) {
	header := paddedASCII("UPDATING FIRMWARE")
	assert.True(t, bytes.HasPrefix(header, []byte("UPDATING FIRMWARE")))
}
