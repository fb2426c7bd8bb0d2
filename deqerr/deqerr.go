// Package deqerr declares the error taxonomy shared by every codec
// stage: envelope parsing, sub-block assembly, and profile
// identification all fail with one of these sentinels, wrapped with
// call-specific context via fmt.Errorf's %w.
package deqerr

import "errors"

var (
	// ErrMalformedEnvelope covers a missing start/end sentinel, a
	// truncated event, or a SysEx vendor tag that isn't 00 20 32.
	ErrMalformedEnvelope = errors.New("malformed sysex envelope")

	// ErrBadLength covers a 7/8-unpack input that isn't a multiple of
	// 8, or a checksum input that isn't exactly 256 bytes.
	ErrBadLength = errors.New("bad input length")

	// ErrChecksumMismatch covers a sub-block whose transmitted
	// checksum byte doesn't match the recomputed one.
	ErrChecksumMismatch = errors.New("sub-block checksum mismatch")

	// ErrUnknownCommand covers a SysEx event whose command ID the
	// codec doesn't handle. Non-fatal: callers log and skip.
	ErrUnknownCommand = errors.New("unknown sysex command")

	// ErrAmbiguousProfile covers firmware that matches more than one
	// device profile's checksum and whose model ID doesn't uniquely
	// pick one.
	ErrAmbiguousProfile = errors.New("ambiguous device profile")

	// ErrUnknownProfile covers firmware that matches no registered
	// device profile.
	ErrUnknownProfile = errors.New("unknown device profile")

	// ErrUnsupportedDevice covers an encode request for a device
	// profile that isn't registered.
	ErrUnsupportedDevice = errors.New("unsupported device profile")

	// ErrShortBlock covers an encode call with a block whose data
	// length isn't 256 bytes where exactness is required.
	ErrShortBlock = errors.New("block shorter than expected")
)
