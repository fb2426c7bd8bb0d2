// Command deqfw is a thin demonstrator CLI wiring the codec's
// decode, encode, and partition operations together. It owns no MIDI
// transport: it reads and writes plain files, exactly as the core
// codec's "caller supplies the bytes" contract expects.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"git.sysex.dev/audio/deqfw/firmware"
	"git.sysex.dev/audio/deqfw/image"
	"git.sysex.dev/audio/deqfw/profile"
)

var (
	mode    = flag.String("mode", "", "decode or encode")
	inPath  = flag.String("in", "", "input file: a SysEx capture (decode) or cleartext flash bytes (encode)")
	outPath = flag.String("out", "", "output: a directory for decode, a file for encode")
	profArg = flag.String("profile", "a", "device profile for encode: a, b, or secondary")
	addrArg = flag.String("addr", "0x04000", "target flash address for encode, e.g. 0x04000")
	gapFill = flag.Bool("gap-fill", false, "render missing decode blocks as 0xFF instead of stopping at the first gap")
)

func main() {
	flag.Parse()
	if *inPath == "" || *outPath == "" {
		log.Fatalf("both -in and -out must be set")
	}

	switch *mode {
	case "decode":
		runDecode()
	case "encode":
		runEncode()
	default:
		log.Fatalf("unknown -mode %q, want decode or encode", *mode)
	}
}

func runDecode() {
	data, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatalf("reading %s: %v", *inPath, err)
	}

	bundle, err := firmware.Decode(data, os.Stderr)
	if err != nil {
		log.Fatalf("decoding: %v", err)
	}
	if bundle.Profile != nil {
		fmt.Printf("identified device profile: %s\n", bundle.Profile.Name)
	} else {
		fmt.Println("no firmware-write events found, profile unidentified")
	}
	for ordinal, text := range bundle.Messages {
		fmt.Printf("display message at ordinal %d: %q\n", ordinal, text)
	}

	images, err := image.Partition(bundle, *gapFill)
	if err != nil {
		log.Fatalf("partitioning: %v", err)
	}

	if err := os.MkdirAll(*outPath, 0o755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}
	for _, img := range images {
		path := filepath.Join(*outPath, img.Label+".bin")
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(img.Data))
	}
}

func runEncode() {
	data, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatalf("reading %s: %v", *inPath, err)
	}

	p, err := resolveProfile(*profArg)
	if err != nil {
		log.Fatal(err)
	}

	addr, err := strconv.ParseUint(*addrArg, 0, 32)
	if err != nil {
		log.Fatalf("parsing -addr %q: %v", *addrArg, err)
	}

	raw, err := firmware.Encode(p, uint32(addr), data, nil)
	if err != nil {
		log.Fatalf("encoding: %v", err)
	}

	if err := os.WriteFile(*outPath, raw, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *outPath, err)
	}
	fmt.Printf("wrote %s (%d bytes, %d SysEx events)\n", *outPath, len(raw), len(data)/256)
}

func resolveProfile(name string) (*profile.DeviceProfile, error) {
	switch name {
	case "a":
		return &profile.A, nil
	case "b":
		return &profile.B, nil
	case "secondary":
		return &profile.Secondary, nil
	default:
		return nil, fmt.Errorf("unknown -profile %q, want a, b, or secondary", name)
	}
}
