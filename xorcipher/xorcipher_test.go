package xorcipher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestXORAgainstKnownKey(t *testing.T) {
	got := XOR([]byte("TZ'04"), []byte{0x00, 0x01, 0x02})
	assert.Equal(t, []byte{'T' ^ 0x00, 'Z' ^ 0x01, '\'' ^ 0x02}, got)
}

// Law 3: xor(k, xor(k, x)) == x.
func TestXORSymmetry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), 1, 56).Draw(t, "key")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		once := XOR(key, data)
		twice := XOR(key, once)
		assert.Equal(t, data, twice)
	})
}

func TestStreamMatchesBufferXOR(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), 1, 56).Draw(t, "key")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		splitAt := rapid.IntRange(0, len(data)).Draw(t, "splitAt")

		var buf bytes.Buffer
		s := &Stream{W: &buf, Key: key}
		s.Write(data[:splitAt])
		s.Write(data[splitAt:])

		assert.Equal(t, XOR(key, data), buf.Bytes())
	})
}

func TestApplicationKeyTrailingNULSignificant(t *testing.T) {
	key := []byte("- ORIGINAL BEHRINGER CODE - COPYRIGHT 2004 - BGER/TZ - \x00")
	assert.Equal(t, 56, len(key))
	assert.Equal(t, byte(0), key[55])
}
