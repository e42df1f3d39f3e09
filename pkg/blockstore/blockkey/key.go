// Package blockkey defines the binary key format of large-object blocks.
package blockkey

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
)

const (
	// UUIDSize is the length of the object identifier half of a block key.
	UUIDSize = 16

	numberSize = 4

	// Size is the exact length of a block key: UUID followed by a
	// big-endian block number.
	Size = UUIDSize + numberSize
)

// BlockBucketPrefix marks buckets whose keys are block keys. All other
// buckets hold plain objects.
var BlockBucketPrefix = []byte("0b:")

// ID addresses a single block of a large object.
type ID struct {
	UUID   uuid.UUID
	Number uint32
}

// Parse decodes a Size-byte block key.
func Parse(key []byte) (ID, error) {
	if len(key) != Size {
		return ID{}, fmt.Errorf("%w: block key must be %d bytes, got %d", common.ErrInvalidArgument, Size, len(key))
	}

	var id ID
	copy(id.UUID[:], key[:UUIDSize])
	id.Number = binary.BigEndian.Uint32(key[UUIDSize:])

	return id, nil
}

// Bytes returns the on-wire form of the key.
func (id ID) Bytes() []byte {
	key := make([]byte, Size)
	copy(key, id.UUID[:])
	binary.BigEndian.PutUint32(key[UUIDSize:], id.Number)

	return key
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%d", id.UUID, id.Number)
}

// GroupBase returns the first block number of the file group containing n.
func GroupBase(n, maxBlocks uint32) uint32 {
	return n / maxBlocks * maxBlocks
}

// GroupKey returns the key under which the whole file group of id is stored
// on disk: the UUID paired with the group's base block number.
func (id ID) GroupKey(maxBlocks uint32) []byte {
	return ID{UUID: id.UUID, Number: GroupBase(id.Number, maxBlocks)}.Bytes()
}

// IsBlockBucket reports whether bucket holds block keys.
func IsBlockBucket(bucket []byte) bool {
	return bytes.HasPrefix(bucket, BlockBucketPrefix)
}

// BlockBucket derives the block bucket paired with a plain bucket.
func BlockBucket(bucket []byte) []byte {
	blocks := make([]byte, 0, len(BlockBucketPrefix)+len(bucket))
	blocks = append(blocks, BlockBucketPrefix...)

	return append(blocks, bucket...)
}
