// Package codec implements the on-disk framing of a single block.
//
// A packed block is CRC32 (4 bytes, big-endian) followed by the value size
// (4 bytes, big-endian) followed by the value itself. The checksum covers
// the size field and the value, so a truncated or partially written slot
// never yields a partial value.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
)

// HeaderSize is the number of bytes preceding the value in a packed block.
const HeaderSize = 8

// ErrBadCRC is returned by Unpack for any framing violation: short input,
// size field pointing past the end of the input, or checksum mismatch.
var ErrBadCRC = errors.New("bad block CRC")

// Pack frames value for storage in a block slot. The value must not exceed
// blockSize bytes, violations are rejected before anything is written.
func Pack(value []byte, blockSize uint32) ([]byte, error) {
	if uint64(len(value)) > uint64(blockSize) {
		return nil, fmt.Errorf("%w: value of %d bytes exceeds block size %d", common.ErrInvalidArgument, len(value), blockSize)
	}

	buf := make([]byte, HeaderSize+len(value))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(value)))
	copy(buf[HeaderSize:], value)
	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(buf[4:]))

	return buf, nil
}

// Unpack extracts the value from a packed block. data may carry trailing
// garbage past the framed value, unwritten slot space is not an error.
func Unpack(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, ErrBadCRC
	}

	size := binary.BigEndian.Uint32(data[4:8])
	if uint64(len(data)-HeaderSize) < uint64(size) {
		return nil, ErrBadCRC
	}

	end := HeaderSize + int(size)
	if crc32.ChecksumIEEE(data[4:end]) != binary.BigEndian.Uint32(data[:4]) {
		return nil, ErrBadCRC
	}

	return data[HeaderSize:end:end], nil
}
