package blockfile

import (
	"encoding/binary"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
)

// The trailer slot sits right after the last block slot. It holds a packed
// record whose payload serializes {written_sequentially: bool} as a single
// byte, followed by a 4-byte big-endian footer carrying the packed length.
// Presence of the trailer is a permanent signal that the file may contain
// holes, it is never cleared even if the file is later rewritten
// sequentially, and repeated stamps are idempotent.

// TrailerSize is the byte length of a trailer record.
const TrailerSize = codec.HeaderSize + 1 + 4

func (s *Store) trailer() []byte {
	packed, err := codec.Pack([]byte{0}, s.blockSize)
	if err != nil {
		// Unreachable: block size is validated positive at startup.
		panic(err)
	}

	buf := make([]byte, len(packed)+4)
	copy(buf, packed)
	binary.BigEndian.PutUint32(buf[len(packed):], uint32(len(packed)))

	return buf
}

// ParseTrailer decodes a trailer record, returning the recorded
// written_sequentially flag.
func ParseTrailer(data []byte) (bool, error) {
	payload, err := codec.Unpack(data)
	if err != nil {
		return false, err
	}

	return len(payload) == 1 && payload[0] != 0, nil
}
