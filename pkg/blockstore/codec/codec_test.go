package codec

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	const blockSize = 64

	for _, size := range []int{0, 1, 17, blockSize} {
		value := make([]byte, size)
		_, _ = rand.Read(value)

		packed, err := Pack(value, blockSize)
		require.NoError(t, err)
		require.Len(t, packed, HeaderSize+size)

		actual, err := Unpack(packed)
		require.NoError(t, err)
		require.Equal(t, value, actual)
	}
}

func TestPackOversize(t *testing.T) {
	value := make([]byte, 11)

	_, err := Pack(value, 10)
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestUnpackTrailingGarbage(t *testing.T) {
	packed, err := Pack([]byte("hello"), 32)
	require.NoError(t, err)

	// A slot is always header+blockSize wide, the tail is unwritten space.
	slot := make([]byte, HeaderSize+32)
	copy(slot, packed)
	slot[len(slot)-1] = 0xFF

	actual, err := Unpack(slot)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), actual)
}

func TestUnpackCorruption(t *testing.T) {
	packed, err := Pack([]byte("some block payload"), 32)
	require.NoError(t, err)

	t.Run("short input", func(t *testing.T) {
		_, err := Unpack(packed[:HeaderSize-1])
		require.ErrorIs(t, err, ErrBadCRC)
	})

	t.Run("truncated value", func(t *testing.T) {
		_, err := Unpack(packed[:len(packed)-1])
		require.ErrorIs(t, err, ErrBadCRC)
	})

	t.Run("flipped bit", func(t *testing.T) {
		corrupt := make([]byte, len(packed))
		copy(corrupt, packed)
		corrupt[HeaderSize] ^= 0x01

		_, err := Unpack(corrupt)
		require.ErrorIs(t, err, ErrBadCRC)
	})

	t.Run("flipped checksum", func(t *testing.T) {
		corrupt := make([]byte, len(packed))
		copy(corrupt, packed)
		corrupt[0] ^= 0x01

		_, err := Unpack(corrupt)
		require.True(t, errors.Is(err, ErrBadCRC))
	})
}
