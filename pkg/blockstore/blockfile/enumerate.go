package blockfile

import (
	"os"

	"github.com/google/uuid"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
)

// EnumerateChunks lists the block numbers present in the file group of oid
// starting at base, in increasing order. Missing and tombstoned files
// enumerate as empty.
//
// When the file ends at or before the trailer offset the file was written
// strictly sequentially and the listing is derived from the size alone.
// Once the file extends past the trailer offset the file may contain holes,
// so every slot is probed and only readable blocks are reported.
func (s *Store) EnumerateChunks(bucket []byte, oid uuid.UUID, base uint32) ([]uint32, error) {
	fi, err := os.Stat(s.GroupPath(bucket, oid, base))
	if err != nil || isTombstone(fi.Mode()) {
		return nil, nil
	}

	size := fi.Size()
	if size == 0 {
		return nil, nil
	}

	maxBlock := (size - 1) / s.slotSize()

	if maxBlock >= int64(s.maxBlocks) {
		var present []uint32

		for i := uint32(0); i < s.maxBlocks; i++ {
			id := blockkey.ID{UUID: oid, Number: base + i}
			if _, err := s.ReadBlock(bucket, id); err == nil {
				present = append(present, base+i)
			}
		}

		return present, nil
	}

	present := make([]uint32, 0, maxBlock+1)
	for i := int64(0); i <= maxBlock; i++ {
		present = append(present, base+uint32(i))
	}

	return present, nil
}
