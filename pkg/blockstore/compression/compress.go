// Package compression wraps plain-object payloads in transparent zstd.
// Block slots are left alone: their on-disk addressing is derived from raw
// value sizes.
package compression

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// frameMagic opens every zstd frame. Stored values are recognized by it on
// the way out, so flipping compression on or off never strands old data.
var frameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec compresses values on write and restores them on read. The zero
// value must be set up with Init before use.
type Codec struct {
	Enabled bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Init prepares the zstd coders. The read side is set up even with
// compression off, values written under an earlier configuration must stay
// readable.
func (c *Codec) Init() error {
	if c.Enabled {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		c.enc = enc
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	c.dec = dec

	return nil
}

// Compress returns the stored form of value: a zstd frame when enabled,
// value itself otherwise.
func (c *Codec) Compress(value []byte) []byte {
	if c == nil || !c.Enabled {
		return value
	}

	return c.enc.EncodeAll(value, make([]byte, 0, c.enc.MaxEncodedSize(len(value))))
}

// Decompress restores a value read from disk. Values not opening with the
// zstd magic were stored raw and pass through unchanged.
func (c *Codec) Decompress(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, frameMagic) {
		return stored, nil
	}

	return c.dec.DecodeAll(stored, nil)
}

// Close releases both coders, keeping the first error it runs into.
func (c *Codec) Close() error {
	var err error

	if c.enc != nil {
		err = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}

	return err
}
