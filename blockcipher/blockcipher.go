// Package blockcipher implements the block-address cipher: a 16-bit
// keyed word-XOR stream whose key state is seeded from the flash
// address of the 4 KiB block it protects. It is its own inverse when
// applied twice with the same base block number.
package blockcipher

import (
	"fmt"

	"git.sysex.dev/audio/deqfw/deqerr"
)

// BlockSize is the size, in bytes, of the block the cipher operates
// over. It must be even: the cipher consumes the block one 16-bit
// little-endian word at a time.
const BlockSize = 4096

const magicBaseBlock = 0x545A

// Apply runs the cipher over a copy of block in place and returns the
// same slice, transforming it in 16-bit word steps. baseBlockNumber is
// flashAddress >> 12; a value of 0 seeds the key with the fixed magic
// instead, matching hardware behavior for the first block.
func Apply(block []byte, baseBlockNumber uint16) ([]byte, error) {
	if len(block) != BlockSize || len(block)%2 != 0 {
		return nil, fmt.Errorf("blockcipher: block length %d, want %d: %w", len(block), BlockSize, deqerr.ErrBadLength)
	}
	k := baseBlockNumber
	if k == 0 {
		k = magicBaseBlock
	}
	out := make([]byte, len(block))
	copy(out, block)
	for i := 0; i+1 < len(out); i += 2 {
		if k&1 != 0 {
			k ^= 0x8005
		}
		k >>= 1
		out[i] ^= byte(k)
		out[i+1] ^= byte(k >> 8)
	}
	return out, nil
}
