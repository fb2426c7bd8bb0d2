package blockcipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"git.sysex.dev/audio/deqfw/deqerr"
	"pgregory.net/rapid"
)

func TestApplyBadLength(t *testing.T) {
	_, err := Apply(make([]byte, 10), 4)
	assert.ErrorIs(t, err, deqerr.ErrBadLength)
}

// Law 5: applying the cipher twice with the same base block number is
// the identity.
func TestApplyInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.SliceOfN(rapid.Byte(), BlockSize, BlockSize).Draw(t, "block")
		blockNumber := rapid.Uint16().Draw(t, "blockNumber")

		once, err := Apply(base, blockNumber)
		assert.NoError(t, err)
		twice, err := Apply(once, blockNumber)
		assert.NoError(t, err)
		assert.Equal(t, base, twice)
	})
}

func TestApplyZeroBaseUsesMagic(t *testing.T) {
	block := make([]byte, BlockSize)
	withZero, err := Apply(block, 0)
	assert.NoError(t, err)
	withMagic, err := Apply(block, magicBaseBlock)
	assert.NoError(t, err)
	assert.Equal(t, withMagic, withZero)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	block := make([]byte, BlockSize)
	for i := range block {
		block[i] = byte(i)
	}
	original := append([]byte{}, block...)
	_, err := Apply(block, 5)
	assert.NoError(t, err)
	assert.Equal(t, original, block)
}
