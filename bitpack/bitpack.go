// Package bitpack implements the 7/8 codec used to make an arbitrary
// byte stream safe for transport as MIDI SysEx payload, where every
// byte must have its high bit clear. Seven data bytes are packed into
// eight transport bytes: seven payload bytes with the high bit
// stripped, followed by one byte carrying the seven stripped bits.
package bitpack

import (
	"fmt"

	"git.sysex.dev/audio/deqfw/deqerr"
)

// Pack maps N input bytes onto 8*ceil(N/7) output bytes. A short
// final group is conceptually zero-padded; the caller is responsible
// for trimming any padding it doesn't want back out after Unpack.
func Pack(data []byte) []byte {
	groups := (len(data) + 6) / 7
	out := make([]byte, 0, groups*8)
	for g := 0; g < groups; g++ {
		start := g * 7
		var group [7]byte
		copy(group[:], data[start:])

		var h byte
		for i, b := range group {
			out = append(out, b&0x7F)
			h |= (b >> 7) << (6 - i)
		}
		out = append(out, h)
	}
	return out
}

// Unpack is Pack's inverse: every group of eight input bytes yields
// seven output bytes. len(data) must be a multiple of 8.
func Unpack(data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("bitpack: input length %d not a multiple of 8: %w", len(data), deqerr.ErrBadLength)
	}
	groups := len(data) / 8
	out := make([]byte, 0, groups*7)
	for g := 0; g < groups; g++ {
		chunk := data[g*8 : g*8+8]
		h := chunk[7]
		for i := 0; i < 7; i++ {
			hi := (h << uint(i+1)) & 0x80
			out = append(out, chunk[i]|hi)
		}
	}
	return out, nil
}
