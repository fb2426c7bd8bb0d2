// Command deqfw-batch decodes many SysEx captures concurrently. Each
// file gets its own Decoder (the codec is explicit that a Decoder is
// not safe to share across goroutines), so the only concurrency
// concern lives here, at the caller, not in the core codec.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.sysex.dev/audio/deqfw/firmware"
)

var concurrency = flag.Int("j", 4, "number of files to decode concurrently")

type result struct {
	path    string
	bundle  *firmware.Bundle
	err     error
}

func main() {
	flag.Parse()
	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatalf("usage: deqfw-batch [-j N] capture1.syx capture2.syx ...")
	}

	results := make([]result, len(paths))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	var mu sync.Mutex
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			bundle, err := decodeFile(path)
			mu.Lock()
			results[i] = result{path: path, bundle: bundle, err: err}
			mu.Unlock()
			return nil
		})
	}
	// Errors are captured per-file in results rather than propagated
	// through the group, so one bad capture doesn't cancel the rest.
	_ = g.Wait()

	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			fmt.Printf("%s: error: %v\n", r.path, r.err)
			continue
		}
		name := "unidentified"
		if r.bundle.Profile != nil {
			name = r.bundle.Profile.Name
		}
		fmt.Printf("%s: profile=%s blocks=%d messages=%d\n", r.path, name, len(r.bundle.Blocks), len(r.bundle.Messages))
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func decodeFile(path string) (*firmware.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return firmware.Decode(data, io.Discard)
}
