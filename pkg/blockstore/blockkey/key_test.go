package blockkey

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	id := ID{UUID: uuid.New(), Number: 1<<32 - 7}

	actual, err := Parse(id.Bytes())
	require.NoError(t, err)
	require.Equal(t, id, actual)
}

func TestParseBadLength(t *testing.T) {
	for _, size := range []int{0, Size - 1, Size + 1} {
		_, err := Parse(make([]byte, size))
		require.ErrorIs(t, err, common.ErrInvalidArgument)
	}
}

func TestGroupBase(t *testing.T) {
	require.EqualValues(t, 0, GroupBase(0, 1024))
	require.EqualValues(t, 0, GroupBase(1023, 1024))
	require.EqualValues(t, 1024, GroupBase(1024, 1024))
	require.EqualValues(t, 2048, GroupBase(2049, 1024))
}

func TestBuckets(t *testing.T) {
	plain := []byte("customer-data")
	blocks := BlockBucket(plain)

	require.False(t, IsBlockBucket(plain))
	require.True(t, IsBlockBucket(blocks))
	require.Equal(t, []byte("0b:customer-data"), blocks)
}
