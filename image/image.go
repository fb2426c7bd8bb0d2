// Package image implements the image partitioner: turning a sparse
// flash block map into named logical images per the device profile's
// flash-layout table, and recovering the application region's
// cleartext key from an embedded bootloader when one is present.
//
// Grounded on fwutil/main.go's firmware-pack walk: read a header table
// of named byte ranges, seek/slice each one out, XOR-deobfuscate where
// required. image.Partition generalizes that one-shot walk into a
// table-driven pass over an arbitrary device profile's layout.
package image

import (
	"bytes"

	"git.sysex.dev/audio/deqfw/blockcipher"
	"git.sysex.dev/audio/deqfw/deqerr"
	"git.sysex.dev/audio/deqfw/firmware"
	"git.sysex.dev/audio/deqfw/profile"
	"git.sysex.dev/audio/deqfw/xorcipher"
)

// NamedImage is one labeled, concatenated region of a flash image.
type NamedImage struct {
	Label      string
	StartBlock uint8
	Data       []byte
}

// Partition renders every range in the bundle's device profile's
// flash layout as a NamedImage. gapFill selects 0xFF-filled full-chip
// rendering over gap-sensitive "what actually got written" rendering.
// The application range additionally yields an "application-decrypted"
// image with the application XOR key undone.
func Partition(bundle *firmware.Bundle, gapFill bool) ([]NamedImage, error) {
	if bundle.Profile == nil {
		return nil, deqerr.ErrUnknownProfile
	}
	p := bundle.Profile

	var images []NamedImage
	for _, r := range p.Layout {
		var data []byte
		if gapFill {
			data = renderGapFill(bundle.Blocks, r.StartBlock, r.EndBlock)
		} else {
			data = renderGapSensitive(bundle.Blocks, r.StartBlock, r.EndBlock)
		}
		images = append(images, NamedImage{Label: r.Label, StartBlock: r.StartBlock, Data: data})

		if r.Label == "application" && len(data) > 0 {
			key := RecoverApplicationKey(bundle.Blocks, p)
			var decrypted bytes.Buffer
			stream := &xorcipher.Stream{W: &decrypted, Key: key}
			stream.Write(data)
			images = append(images, NamedImage{
				Label:      "application-decrypted",
				StartBlock: r.StartBlock,
				Data:       decrypted.Bytes(),
			})
		}
	}
	return images, nil
}

func renderGapSensitive(blocks map[uint8][blockcipher.BlockSize]byte, start, end uint8) []byte {
	var out []byte
	started := false
	for i := int(start); i <= int(end); i++ {
		b, ok := blocks[uint8(i)]
		if !ok {
			if started {
				break
			}
			continue
		}
		started = true
		out = append(out, b[:]...)
	}
	return out
}

func renderGapFill(blocks map[uint8][blockcipher.BlockSize]byte, start, end uint8) []byte {
	fill := bytes.Repeat([]byte{0xFF}, blockcipher.BlockSize)
	out := make([]byte, 0, (int(end)-int(start)+1)*blockcipher.BlockSize)
	for i := int(start); i <= int(end); i++ {
		if b, ok := blocks[uint8(i)]; ok {
			out = append(out, b[:]...)
		} else {
			out = append(out, fill...)
		}
	}
	return out
}

func rangeFor(p *profile.DeviceProfile, label string) *profile.FlashRange {
	for i := range p.Layout {
		if p.Layout[i].Label == label {
			return &p.Layout[i]
		}
	}
	return nil
}

// RecoverApplicationKey returns the application region's XOR key,
// read out of the bootloader image when blocks 0..3 (the profile's
// "bootloader" range) are all present, else the profile's built-in
// default.
func RecoverApplicationKey(blocks map[uint8][blockcipher.BlockSize]byte, p *profile.DeviceProfile) []byte {
	r := rangeFor(p, "bootloader")
	if r == nil || !rangePresent(blocks, *r) {
		return p.ApplicationKey
	}

	full := renderGapFill(blocks, r.StartBlock, r.EndBlock)
	base := int(r.StartBlock) * blockcipher.BlockSize

	bootloaderKey := sliceAt(full, base, p.Bootloader.BootloaderKey, 56)
	encryptedAppKey := sliceAt(full, base, p.Bootloader.EncryptedAppKey, 56)
	if bootloaderKey == nil || encryptedAppKey == nil {
		return p.ApplicationKey
	}
	return xorcipher.XOR(bootloaderKey, encryptedAppKey)
}

func rangePresent(blocks map[uint8][blockcipher.BlockSize]byte, r profile.FlashRange) bool {
	for i := r.StartBlock; i <= r.EndBlock; i++ {
		if _, ok := blocks[i]; !ok {
			return false
		}
	}
	return true
}

func sliceAt(buf []byte, base, absoluteOffset, n int) []byte {
	start := absoluteOffset - base
	if start < 0 || start+n > len(buf) {
		return nil
	}
	return append([]byte{}, buf[start:start+n]...)
}
