// Package sysex implements the MIDI SysEx envelope: scanning a raw
// byte stream for well-formed vendor events, building new ones, and
// detecting whether a buffer looks like a SysEx stream at all.
//
// The event layout is a small fixed header (vendor tag, device ID,
// model ID, command) followed by a payload tail, in the same spirit
// as the teacher's ebm.Message — a fixed header marshaled/parsed as a
// pair of functions, plus a payload slice — except SysEx framing uses
// sentinel bytes rather than a length-prefixed header, so Scan walks
// the stream looking for F0/F7 rather than reading a length field.
package sysex

import (
	"bytes"
	"fmt"
	"io"

	"git.sysex.dev/audio/deqfw/deqerr"
)

const (
	startSentinel byte = 0xF0
	endSentinel   byte = 0xF7

	// DeviceBroadcast addresses every device on the bus.
	DeviceBroadcast byte = 0x7F

	// CommandWriteFlashBlock is the only firmware-update command the
	// codec interprets; any other command is logged and skipped by
	// the firmware assembler, not by this package.
	CommandWriteFlashBlock byte = 0x34
)

var vendorTag = [3]byte{0x00, 0x20, 0x32}

// Event is a parsed SysEx event: everything between the vendor tag
// and the end sentinel. Every Payload byte has its high bit clear.
type Event struct {
	DeviceID byte
	ModelID  byte
	Command  byte
	Payload  []byte
}

// Build emits a well-formed SysEx event's raw bytes. The caller
// guarantees payload bytes have their high bit clear.
func Build(deviceID, modelID, command byte, payload []byte) []byte {
	out := make([]byte, 0, 7+len(payload))
	out = append(out, startSentinel)
	out = append(out, vendorTag[:]...)
	out = append(out, deviceID, modelID, command)
	out = append(out, payload...)
	out = append(out, endSentinel)
	return out
}

// ParseEvent parses a single already-delimited event, start and end
// sentinel included.
func ParseEvent(raw []byte) (*Event, error) {
	if len(raw) < 7 {
		return nil, fmt.Errorf("sysex: event too short (%d bytes): %w", len(raw), deqerr.ErrMalformedEnvelope)
	}
	if raw[0] != startSentinel {
		return nil, fmt.Errorf("sysex: missing start sentinel: %w", deqerr.ErrMalformedEnvelope)
	}
	if raw[len(raw)-1] != endSentinel {
		return nil, fmt.Errorf("sysex: terminator %#x is not F7: %w", raw[len(raw)-1], deqerr.ErrMalformedEnvelope)
	}
	if !bytes.Equal(raw[1:4], vendorTag[:]) {
		return nil, fmt.Errorf("sysex: vendor tag %X, want %X: %w", raw[1:4], vendorTag[:], deqerr.ErrMalformedEnvelope)
	}
	payload := append([]byte{}, raw[7:len(raw)-1]...)
	return &Event{
		DeviceID: raw[4],
		ModelID:  raw[5],
		Command:  raw[6],
		Payload:  payload,
	}, nil
}

// Scan walks data looking for SysEx events. It implements the
// searching / in-event / finalize states of the decoder directly:
// searching for an F0, accumulating bytes until the next byte with
// its high bit set, then inspecting that terminator. A malformed
// event (truncated, wrong terminator, wrong vendor) is reported to
// logger and skipped; it never aborts the scan. logger may be nil, in
// which case diagnostics are discarded.
func Scan(data []byte, logger io.Writer) []Event {
	if logger == nil {
		logger = io.Discard
	}
	var events []Event
	i := 0
	for i < len(data) {
		if data[i] != startSentinel {
			i++
			continue
		}
		start := i
		j := i + 1
		for j < len(data) && data[j]&0x80 == 0 {
			j++
		}
		if j >= len(data) {
			fmt.Fprintf(logger, "sysex: truncated event starting at offset %d, discarding remainder\n", start)
			return events
		}
		if data[j] != endSentinel {
			fmt.Fprintf(logger, "sysex: event at offset %d terminated by %#x, not F7, skipping\n", start, data[j])
			i = j
			continue
		}
		ev, err := ParseEvent(data[start : j+1])
		if err != nil {
			fmt.Fprintf(logger, "sysex: %v, skipping\n", err)
			i = j + 1
			continue
		}
		events = append(events, *ev)
		i = j + 1
	}
	return events
}

// IsSysEx reports whether data looks like a complete SysEx stream: it
// starts with F0, ends with F7, and no interior byte has its high bit
// set unless it is itself a status byte (>= 0xF0). Used to tell a raw
// flash image apart from a SysEx firmware update capture.
func IsSysEx(data []byte) bool {
	if len(data) < 2 || data[0] != startSentinel || data[len(data)-1] != endSentinel {
		return false
	}
	for _, b := range data[1 : len(data)-1] {
		if b&0x80 != 0 && b < 0xF0 {
			return false
		}
	}
	return true
}
