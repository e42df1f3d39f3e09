// Package blockfile implements the packed-file layout of large-object
// blocks.
//
// One host file holds up to MaxBlocks consecutively numbered blocks of a
// single object at deterministic offsets:
//
//	offset(b) = (b mod MaxBlocks) * (codec.HeaderSize + BlockSize)
//
// Unwritten slots are sparse holes. A trailer record past the last slot
// marks files that were written out of order and may therefore contain
// holes. Deleted objects are hidden by setting the setgid mode bit on the
// file rather than unlinking it, the filesystem abstraction exposes no
// richer per-file metadata.
package blockfile

import (
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/pathenc"
	"go.uber.org/zap"
)

// Store gives access to the packed block files and plain object files of a
// single partition directory. It keeps no file handles between calls: every
// operation is one open/IO/close cycle.
type Store struct {
	log       *zap.Logger
	root      string
	perm      fs.FileMode
	blockSize uint32
	maxBlocks uint32
	bDepth    int
	kDepth    int
	readOnly  bool
}

const (
	defaultPerm      = 0600
	defaultBlockSize = 1 << 20
	defaultMaxBlocks = 1024
	defaultDepth     = 2
)

// Option represents Store's constructor option.
type Option func(*Store)

// New creates a Store over the given partition directory.
func New(root string, opts ...Option) *Store {
	s := &Store{
		log:       zap.L(),
		root:      root,
		perm:      defaultPerm,
		blockSize: defaultBlockSize,
		maxBlocks: defaultMaxBlocks,
		bDepth:    defaultDepth,
		kDepth:    defaultDepth,
	}

	for i := range opts {
		opts[i](s)
	}

	return s
}

// WithLogger returns option to specify Store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// WithPerm returns option to specify permission bits of created files.
func WithPerm(p fs.FileMode) Option {
	return func(s *Store) {
		s.perm = p
	}
}

// WithBlockSize returns option to set the maximum value size of one block.
func WithBlockSize(size uint32) Option {
	return func(s *Store) {
		s.blockSize = size
	}
}

// WithMaxBlocks returns option to set the number of block slots per file.
func WithMaxBlocks(n uint32) Option {
	return func(s *Store) {
		s.maxBlocks = n
	}
}

// WithDepths returns option to set the directory nesting depths of the
// bucket and key levels.
func WithDepths(bucket, key int) Option {
	return func(s *Store) {
		s.bDepth = bucket
		s.kDepth = key
	}
}

// WithReadOnly returns option to reject modifying operations.
func WithReadOnly(ro bool) Option {
	return func(s *Store) {
		s.readOnly = ro
	}
}

// Path returns the partition directory the Store works over.
func (s *Store) Path() string {
	return s.root
}

// BlockSize returns the maximum value size of one block.
func (s *Store) BlockSize() uint32 {
	return s.blockSize
}

// MaxBlocks returns the number of block slots per file.
func (s *Store) MaxBlocks() uint32 {
	return s.maxBlocks
}

func (s *Store) slotSize() int64 {
	return codec.HeaderSize + int64(s.blockSize)
}

func (s *Store) trailerOffset() int64 {
	return int64(s.maxBlocks) * s.slotSize()
}

// BucketDir returns the directory holding all keys of bucket.
func (s *Store) BucketDir(bucket []byte) string {
	token := pathenc.Encode(bucket)

	parts := make([]string, 0, s.bDepth+2)
	parts = append(parts, s.root)
	parts = append(parts, pathenc.Nest(token, s.bDepth)...)
	parts = append(parts, token)

	return filepath.Join(parts...)
}

// ObjectPath returns the file path of a plain key, or of a block file when
// key is a group key.
func (s *Store) ObjectPath(bucket, key []byte) string {
	token := pathenc.Encode(key)

	parts := make([]string, 0, s.kDepth+2)
	parts = append(parts, s.BucketDir(bucket))
	parts = append(parts, pathenc.Nest(token, s.kDepth)...)
	parts = append(parts, token)

	return filepath.Join(parts...)
}

// blockLocation maps a block ID to its file path and slot offset.
func (s *Store) blockLocation(bucket []byte, id blockkey.ID) (string, int64) {
	base := blockkey.GroupBase(id.Number, s.maxBlocks)
	off := int64(id.Number-base) * s.slotSize()

	return s.ObjectPath(bucket, id.GroupKey(s.maxBlocks)), off
}

// GroupPath returns the file path holding the group of blocks starting at
// base for the given object.
func (s *Store) GroupPath(bucket []byte, oid uuid.UUID, base uint32) string {
	return s.ObjectPath(bucket, blockkey.ID{UUID: oid, Number: base}.Bytes())
}
