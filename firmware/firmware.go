// Package firmware implements the firmware assembler/disassembler:
// aggregating 256-byte sub-blocks transported as SysEx events into
// 4 KiB flash blocks on decode, and splitting a cleartext flash image
// into sub-blocks and wrapping them on encode.
//
// The decode side is grounded on the teacher's bootloader.DownloadAndBoot
// loop (iterate records, XOR-encrypt through a stream, exchange one
// message per record) run in reverse: iterate SysEx events, XOR-decrypt,
// bucket by address. The encode side mirrors bootloader.DownloadAndBoot's
// own record-building loop directly.
package firmware

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"git.sysex.dev/audio/deqfw/bitpack"
	"git.sysex.dev/audio/deqfw/blockcipher"
	"git.sysex.dev/audio/deqfw/deqerr"
	"git.sysex.dev/audio/deqfw/profile"
	"git.sysex.dev/audio/deqfw/subchecksum"
	"git.sysex.dev/audio/deqfw/sysex"
	"git.sysex.dev/audio/deqfw/xorcipher"
)

// DisplayMessageSubBlock is the sub-block number reserved for
// out-of-band LCD text rather than flash payload.
const DisplayMessageSubBlock uint16 = 0xFF00

// subBlockPayloadSize is the 256-byte data portion of a sub-block,
// excluding its 3-byte header.
const subBlockPayloadSize = subchecksum.PayloadSize

// Format tags how a Bundle's bytes were originally represented.
type Format string

const (
	FormatRawBinary Format = "raw-binary"
	FormatSysEx     Format = "sysex"
)

// Bundle is the read-only output of a decode pass.
type Bundle struct {
	Profile  *profile.DeviceProfile
	Blocks   map[uint8][blockcipher.BlockSize]byte
	Format   Format
	Messages map[int]string
	ModelID  byte
}

// Decoder accumulates sub-blocks from a stream of SysEx events. A
// Decoder is not safe for concurrent use; callers that want parallel
// decoding use one Decoder per stream.
type Decoder struct {
	Logger io.Writer

	profile   *profile.DeviceProfile
	modelID   byte
	subBlocks map[uint16][subBlockPayloadSize]byte
	messages  map[int]string
	counter   int
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		subBlocks: make(map[uint16][subBlockPayloadSize]byte),
		messages:  make(map[int]string),
	}
}

// Feed processes one parsed SysEx event. A non-flash-write command
// returns ErrUnknownCommand; callers that are scanning a mixed MIDI
// log should log and continue rather than abort on this error.
func (d *Decoder) Feed(ev sysex.Event) error {
	if ev.Command != sysex.CommandWriteFlashBlock {
		return fmt.Errorf("firmware: command %#x: %w", ev.Command, deqerr.ErrUnknownCommand)
	}

	unpacked, err := bitpack.Unpack(ev.Payload)
	if err != nil {
		return fmt.Errorf("firmware: unpacking sub-block payload: %w", err)
	}

	if d.profile == nil {
		p, err := identifyProfile(unpacked, ev.ModelID)
		if err != nil {
			return err
		}
		d.profile = p
		d.modelID = ev.ModelID
	}

	decrypted := xorcipher.XOR(d.profile.MIDIBlockKey, unpacked)
	if len(decrypted) < 3+subBlockPayloadSize {
		return fmt.Errorf("firmware: decrypted sub-block is %d bytes, want at least %d: %w",
			len(decrypted), 3+subBlockPayloadSize, deqerr.ErrBadLength)
	}

	subNo := binary.BigEndian.Uint16(decrypted[0:2])
	checksum := decrypted[2]
	data := decrypted[3 : 3+subBlockPayloadSize]

	ord := d.counter
	d.counter++

	if subNo == DisplayMessageSubBlock {
		d.messages[ord] = decodeDisplayMessage(data)
		return nil
	}

	if err := subchecksum.VerifyVariant(data, checksum, d.profile.Checksum.FeedbackMask, d.profile.Checksum.FinalXOR); err != nil {
		return fmt.Errorf("firmware: sub-block %#04x: %w", subNo, err)
	}

	var payload [subBlockPayloadSize]byte
	copy(payload[:], data)
	d.subBlocks[subNo] = payload
	return nil
}

// GetBlocks finalizes every flash block for which all sixteen
// sub-blocks have arrived, applying the block-address cipher to
// blocks within the profile's encrypted range. Blocks with any
// missing sub-block are omitted, never zero-filled.
func (d *Decoder) GetBlocks() map[uint8][blockcipher.BlockSize]byte {
	out := make(map[uint8][blockcipher.BlockSize]byte)
	for i := 0; i < 0x80; i++ {
		index := uint8(i)
		var block [blockcipher.BlockSize]byte
		complete := true
		for s := 0; s < 16; s++ {
			subNo := uint16(index)<<4 | uint16(s)
			payload, ok := d.subBlocks[subNo]
			if !ok {
				complete = false
				break
			}
			copy(block[s*subBlockPayloadSize:(s+1)*subBlockPayloadSize], payload[:])
		}
		if !complete {
			continue
		}
		if d.profile != nil && d.profile.InEncryptedRange(index) {
			deciphered, err := blockcipher.Apply(block[:], uint16(index))
			if err != nil {
				// BlockSize is fixed above; Apply only rejects wrong
				// lengths, which cannot happen here.
				continue
			}
			copy(block[:], deciphered)
		}
		out[index] = block
	}
	return out
}

// Bundle packages the decoder's current state as a read-only result.
func (d *Decoder) Bundle() *Bundle {
	return &Bundle{
		Profile:  d.profile,
		Blocks:   d.GetBlocks(),
		Format:   FormatSysEx,
		Messages: d.messages,
		ModelID:  d.modelID,
	}
}

// Decode inspects data and assembles it into a Bundle. Input that
// doesn't look like a MIDI SysEx stream (per sysex.IsSysEx) is
// treated as an already-cleartext raw flash image and sliced
// directly into 4 KiB blocks, tagged FormatRawBinary; no profile
// identification or sub-block reassembly applies to it. Otherwise
// data is scanned for SysEx events and assembled the usual way,
// tagged FormatSysEx. Envelope corruption is logged via logger and
// skipped; unknown commands are likewise skipped. A checksum
// mismatch or profile-identification failure aborts decoding.
func Decode(data []byte, logger io.Writer) (*Bundle, error) {
	if logger == nil {
		logger = io.Discard
	}
	if !sysex.IsSysEx(data) {
		return decodeRawImage(data), nil
	}
	events := sysex.Scan(data, logger)
	d := NewDecoder()
	for _, ev := range events {
		if err := d.Feed(ev); err != nil {
			if errors.Is(err, deqerr.ErrUnknownCommand) {
				fmt.Fprintf(logger, "firmware: %v, skipping\n", err)
				continue
			}
			return nil, err
		}
	}
	return d.Bundle(), nil
}

// decodeRawImage slices an already-cleartext flash dump into 4 KiB
// blocks by position, with no profile, sub-block, or display-message
// structure to recover from a raw binary.
func decodeRawImage(data []byte) *Bundle {
	blocks := make(map[uint8][blockcipher.BlockSize]byte)
	for i := 0; (i+1)*blockcipher.BlockSize <= len(data); i++ {
		var block [blockcipher.BlockSize]byte
		copy(block[:], data[i*blockcipher.BlockSize:(i+1)*blockcipher.BlockSize])
		blocks[uint8(i)] = block
	}
	return &Bundle{
		Blocks:   blocks,
		Format:   FormatRawBinary,
		Messages: make(map[int]string),
	}
}

func decodeDisplayMessage(data []byte) string {
	n := bytes.IndexByte(data, 0)
	if n < 0 {
		n = len(data)
	}
	return string(data[:n])
}

// identifyProfile trial-decodes unpacked against every registered
// profile's MIDI key and keeps the first whose checksum matches. If
// none match, it falls back to the model ID byte when exactly one
// registered profile carries it.
func identifyProfile(unpacked []byte, modelID byte) (*profile.DeviceProfile, error) {
	var modelMatches []*profile.DeviceProfile
	for _, p := range profile.All {
		decrypted := xorcipher.XOR(p.MIDIBlockKey, unpacked)
		if len(decrypted) >= 3+subBlockPayloadSize {
			checksum := decrypted[2]
			data := decrypted[3 : 3+subBlockPayloadSize]
			if subchecksum.ComputeVariant(data, p.Checksum.FeedbackMask, p.Checksum.FinalXOR) == checksum {
				return p, nil
			}
		}
		if p.ModelID == modelID {
			modelMatches = append(modelMatches, p)
		}
	}
	if len(modelMatches) == 1 {
		return modelMatches[0], nil
	}
	return nil, fmt.Errorf("firmware: identifying device profile for model %#x: %w", modelID, deqerr.ErrAmbiguousProfile)
}

// Encode serializes cleartext data, targeted at flash address, into a
// stream of SysEx events for profile p. address must be a multiple of
// blockcipher.BlockSize. messages, keyed by the ordinal position of
// the event they precede, are interleaved into the output; a message
// queued at the ordinal immediately past the last firmware event is
// emitted as a trailer.
func Encode(p *profile.DeviceProfile, address uint32, data []byte, messages map[int]string) ([]byte, error) {
	if p == nil {
		return nil, deqerr.ErrUnsupportedDevice
	}
	if address%blockcipher.BlockSize != 0 {
		return nil, fmt.Errorf("firmware: address %#x not block-aligned: %w", address, deqerr.ErrBadLength)
	}

	startBlock := uint8(address >> 12)
	if startBlock == p.ApplicationStartBlock {
		data = xorcipher.XOR(p.ApplicationKey, data)
	}

	padded := make([]byte, len(data))
	copy(padded, data)
	if rem := len(padded) % blockcipher.BlockSize; rem != 0 {
		padded = append(padded, bytes.Repeat([]byte{0xFF}, blockcipher.BlockSize-rem)...)
	}

	var out bytes.Buffer
	counter := 0
	numBlocks := len(padded) / blockcipher.BlockSize
	for bi := 0; bi < numBlocks; bi++ {
		blockIndex := startBlock + uint8(bi)
		block := make([]byte, blockcipher.BlockSize)
		copy(block, padded[bi*blockcipher.BlockSize:(bi+1)*blockcipher.BlockSize])

		if p.InEncryptedRange(blockIndex) {
			enc, err := blockcipher.Apply(block, uint16(blockIndex))
			if err != nil {
				return nil, err
			}
			block = enc
		}

		for sub := 0; sub < 16; sub++ {
			if text, ok := messages[counter]; ok {
				ev, err := buildDisplayEvent(p, text)
				if err != nil {
					return nil, err
				}
				out.Write(ev)
				counter++
			}
			subNo := uint16(blockIndex)<<4 | uint16(sub)
			payload := block[sub*subBlockPayloadSize : (sub+1)*subBlockPayloadSize]
			out.Write(buildFirmwareEvent(p, subNo, payload))
			counter++
		}
	}
	if text, ok := messages[counter]; ok {
		ev, err := buildDisplayEvent(p, text)
		if err != nil {
			return nil, err
		}
		out.Write(ev)
	}
	return out.Bytes(), nil
}

func buildFirmwareEvent(p *profile.DeviceProfile, subNo uint16, payload []byte) []byte {
	checksum := subchecksum.ComputeVariant(payload, p.Checksum.FeedbackMask, p.Checksum.FinalXOR)
	header := []byte{byte(subNo >> 8), byte(subNo), checksum}
	combined := append(header, payload...)
	encrypted := xorcipher.XOR(p.MIDIBlockKey, combined)
	packed := bitpack.Pack(encrypted)
	return sysex.Build(sysex.DeviceBroadcast, p.ModelID, sysex.CommandWriteFlashBlock, packed)
}

func buildDisplayEvent(p *profile.DeviceProfile, text string) ([]byte, error) {
	if len(text) > subBlockPayloadSize {
		return nil, fmt.Errorf("firmware: display message is %d bytes, want at most %d: %w",
			len(text), subBlockPayloadSize, deqerr.ErrShortBlock)
	}
	payload := make([]byte, subBlockPayloadSize)
	copy(payload, text)
	return buildFirmwareEvent(p, DisplayMessageSubBlock, payload), nil
}
