package blockstore

import (
	"fmt"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
)

// Get reads the value stored under the bucket/key pair, routing block keys
// to the packed files and plain keys to per-key files.
func (b *Backend) Get(bucket, key []byte) ([]byte, error) {
	if id, ok := b.blockID(bucket, key); ok {
		mObjectOps.WithLabelValues("get", "block").Inc()
		return b.store.ReadBlock(bucket, id)
	}

	mObjectOps.WithLabelValues("get", "plain").Inc()

	data, err := b.store.GetPlain(bucket, key)
	if err != nil {
		return nil, err
	}

	data, err = b.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress object: %w", err)
	}

	return data, nil
}

// GetBlock reads one block addressed by its decoded ID.
func (b *Backend) GetBlock(bucket []byte, id blockkey.ID) ([]byte, error) {
	mObjectOps.WithLabelValues("get", "block").Inc()
	return b.store.ReadBlock(bucket, id)
}
