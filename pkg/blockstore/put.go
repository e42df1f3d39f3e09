package blockstore

import (
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
)

// Put stores value under the bucket/key pair. Block puts with a value
// larger than the configured block size fail before any I/O.
func (b *Backend) Put(bucket, key, value []byte) error {
	if id, ok := b.blockID(bucket, key); ok {
		mObjectOps.WithLabelValues("put", "block").Inc()
		return b.store.PutBlock(bucket, id, value)
	}

	mObjectOps.WithLabelValues("put", "plain").Inc()

	return b.store.PutPlain(bucket, key, b.Compress(value))
}

// PutBlock stores one block addressed by its decoded ID.
func (b *Backend) PutBlock(bucket []byte, id blockkey.ID, value []byte) error {
	mObjectOps.WithLabelValues("put", "block").Inc()
	return b.store.PutBlock(bucket, id, value)
}

// PutTombstone hides the block group of the given key from reads and
// enumeration without unlinking the file.
func (b *Backend) PutTombstone(bucket, key []byte) error {
	id, err := blockkey.Parse(key)
	if err != nil {
		return err
	}

	mObjectOps.WithLabelValues("tombstone", "block").Inc()

	return b.store.PutTombstone(bucket, id)
}
