package sysex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBuildParseRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x7F, 0x00}
	raw := Build(DeviceBroadcast, 0x20, CommandWriteFlashBlock, payload)

	ev, err := ParseEvent(raw)
	assert.NoError(t, err)
	assert.Equal(t, DeviceBroadcast, ev.DeviceID)
	assert.Equal(t, byte(0x20), ev.ModelID)
	assert.Equal(t, CommandWriteFlashBlock, ev.Command)
	assert.Equal(t, payload, ev.Payload)
}

func TestScanSkipsWrongTerminator(t *testing.T) {
	var logged bytes.Buffer
	// First event terminates on a status byte that isn't F7; the
	// stream should still yield the well-formed second event.
	stream := []byte{0xF0, 0x00, 0x20, 0x32, 0x01, 0x02, 0x34, 0x10, 0xF8}
	stream = append(stream, Build(0x7F, 0x20, CommandWriteFlashBlock, []byte{0x01})...)

	events := Scan(stream, &logged)
	assert.Len(t, events, 1)
	assert.NotEmpty(t, logged.String())
}

func TestScanSkipsWrongVendor(t *testing.T) {
	var logged bytes.Buffer
	stream := []byte{0xF0, 0x00, 0x00, 0x0E, 0x01, 0x02, 0x03, 0xF7}
	events := Scan(stream, &logged)
	assert.Empty(t, events)
	assert.Contains(t, logged.String(), "vendor")
}

func TestScanTruncatedEventDropped(t *testing.T) {
	var logged bytes.Buffer
	stream := []byte{0xF0, 0x00, 0x20, 0x32, 0x01, 0x02, 0x03}
	events := Scan(stream, &logged)
	assert.Empty(t, events)
	assert.Contains(t, logged.String(), "truncated")
}

func TestIsSysExDetector(t *testing.T) {
	good := Build(0x7F, 0x20, CommandWriteFlashBlock, []byte{0x01, 0x02})
	assert.True(t, IsSysEx(good))

	notSysEx := []byte{0x00, 0x01, 0x02, 0x03}
	assert.False(t, IsSysEx(notSysEx))

	highBitInterior := []byte{0xF0, 0x00, 0x80, 0x00, 0xF7}
	assert.False(t, IsSysEx(highBitInterior))
}

// Building then parsing any payload with every byte MSB-clear must
// recover the same fields.
func TestBuildParseRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		deviceID := rapid.Byte().Draw(t, "deviceID")
		modelID := rapid.Byte().Draw(t, "modelID")
		command := rapid.Byte().Draw(t, "command")
		n := rapid.IntRange(0, 32).Draw(t, "n")
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = rapid.Byte().Draw(t, "b") & 0x7F
		}

		raw := Build(deviceID, modelID, command, payload)
		ev, err := ParseEvent(raw)
		assert.NoError(t, err)
		assert.Equal(t, deviceID, ev.DeviceID)
		assert.Equal(t, modelID, ev.ModelID)
		assert.Equal(t, command, ev.Command)
		assert.Equal(t, payload, ev.Payload)
	})
}
