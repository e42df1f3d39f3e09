// Package blockstore is the storage core of the large-file object backend.
//
// A Backend owns one partition directory. Keys route by bucket: buckets
// carrying the block prefix hold fixed-size blocks of large objects packed
// into per-group files (see the blockfile package), all other buckets hold
// plain objects stored one file per key, optionally zstd-compressed.
package blockstore

import (
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockfile"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/compression"
	"go.uber.org/zap"
)

// Backend provides key-value access to one storage partition.
type Backend struct {
	cfg

	partition string
	dir       string
	set       Settings

	store *blockfile.Store
}

type cfg struct {
	log      *zap.Logger
	readOnly bool

	compression.Codec
}

// Option represents Backend's constructor option.
type Option func(*cfg)

// WithLogger returns option to specify Backend's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithReadOnly returns option to open the partition for reading only.
func WithReadOnly(ro bool) Option {
	return func(c *cfg) {
		c.readOnly = ro
	}
}

// WithCompressObjects returns option to toggle zstd compression of plain
// objects. Block payloads are never compressed.
func WithCompressObjects(comp bool) Option {
	return func(c *cfg) {
		c.Enabled = comp
	}
}

// Capabilities lists the backend features negotiated with the hosting
// key-value system.
func (b *Backend) Capabilities() []string {
	return []string{"async_fold", "write_once_keys", "put_plus_object"}
}

// Partition returns the partition name the Backend was opened with.
func (b *Backend) Partition() string {
	return b.partition
}

// Dir returns the partition directory.
func (b *Backend) Dir() string {
	return b.dir
}

// Settings returns the resolved settings of the partition.
func (b *Backend) Settings() Settings {
	return b.set
}

// blockID reports whether the bucket/key pair addresses a block and
// returns the decoded block ID when it does.
func (b *Backend) blockID(bucket, key []byte) (blockkey.ID, bool) {
	if !blockkey.IsBlockBucket(bucket) || len(key) != blockkey.Size {
		return blockkey.ID{}, false
	}

	id, err := blockkey.Parse(key)
	if err != nil {
		return blockkey.ID{}, false
	}

	return id, true
}
