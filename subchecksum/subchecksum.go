// Package subchecksum implements the custom 8-bit rolling checksum
// the device firmware calls a "CRC", computed over the 256-byte
// payload of a transported sub-block. The sub-block number itself is
// never part of the checksum. The verify-then-typed-error contract
// mirrors the Motorola S-record checksum check this package replaces
// (accumulate over a byte range, compare against a trailing checksum
// byte, fail with a typed error on mismatch) even though the
// accumulation rule itself is this device's own bit-level routine.
package subchecksum

import (
	"fmt"

	"git.sysex.dev/audio/deqfw/deqerr"
)

// PayloadSize is the exact number of bytes the checksum is computed
// over.
const PayloadSize = 256

const (
	feedbackMask = 0x19
	finalXOR     = 0xBF
)

// Compute returns the checksum of a sub-block payload using the
// standard feedback mask and final XOR constants. It does not enforce
// PayloadSize; callers that need the length contract should call
// Verify instead.
func Compute(payload []byte) byte {
	return ComputeVariant(payload, feedbackMask, finalXOR)
}

// ComputeVariant is Compute parameterized over the feedback mask and
// final XOR constant, for device profiles that select a different
// checksum variant than the standard one.
func ComputeVariant(payload []byte, feedbackMask, finalXOR byte) byte {
	var c byte
	for _, b := range payload {
		for round := 0; round < 8; round++ {
			if (b^c)&1 == 0 {
				c ^= feedbackMask
			}
			b >>= 1
			c = (c&1)<<7 | c>>1
		}
	}
	return c ^ finalXOR
}

// Verify checks that payload is exactly PayloadSize bytes and that its
// computed checksum matches want.
func Verify(payload []byte, want byte) error {
	return VerifyVariant(payload, want, feedbackMask, finalXOR)
}

// VerifyVariant is Verify parameterized over the checksum variant.
func VerifyVariant(payload []byte, want, feedbackMask, finalXOR byte) error {
	if len(payload) != PayloadSize {
		return fmt.Errorf("subchecksum: payload length %d, want %d: %w", len(payload), PayloadSize, deqerr.ErrBadLength)
	}
	if got := ComputeVariant(payload, feedbackMask, finalXOR); got != want {
		return fmt.Errorf("subchecksum: got %#x, want %#x: %w", got, want, deqerr.ErrChecksumMismatch)
	}
	return nil
}
