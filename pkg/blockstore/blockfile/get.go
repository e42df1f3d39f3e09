package blockfile

import (
	"errors"
	"io"
	"os"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"go.uber.org/zap"
)

// ReadBlock reads one block value. Every failure mode, missing or
// tombstoned file, short read, checksum mismatch, unexpected I/O error,
// is reported as [common.ErrNotFound] so that callers treat crash remnants
// as absent.
func (s *Store) ReadBlock(bucket []byte, id blockkey.ID) ([]byte, error) {
	path, off := s.blockLocation(bucket, id)

	f, err := os.Open(path)
	if err != nil {
		return nil, common.ErrNotFound
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil || isTombstone(fi.Mode()) {
		return nil, common.ErrNotFound
	}

	buf := make([]byte, s.slotSize())

	n, err := f.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, common.ErrNotFound
	}

	value, err := codec.Unpack(buf[:n])
	if err != nil {
		s.log.Debug("discarding unreadable block slot",
			zap.String("block", id.String()),
			zap.Error(err))
		return nil, common.ErrNotFound
	}

	return value, nil
}

// GetPlain reads a plain object file.
func (s *Store) GetPlain(bucket, key []byte) ([]byte, error) {
	data, err := os.ReadFile(s.ObjectPath(bucket, key))
	if err != nil {
		return nil, common.ErrNotFound
	}

	return data, nil
}

func isTombstone(mode os.FileMode) bool {
	return mode&os.ModeSetgid != 0
}
