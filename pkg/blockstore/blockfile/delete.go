package blockfile

import (
	"fmt"
	"os"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
)

// DeleteBlock unlinks the file holding id. The whole group of sibling
// blocks packed into the same file disappears with it, callers are
// expected to delete the rest of the group promptly anyway.
func (s *Store) DeleteBlock(bucket []byte, id blockkey.ID) error {
	if s.readOnly {
		return common.ErrReadOnly
	}

	path, _ := s.blockLocation(bucket, id)

	return removeFile(path)
}

// DeletePlain unlinks a plain object file.
func (s *Store) DeletePlain(bucket, key []byte) error {
	if s.readOnly {
		return common.ErrReadOnly
	}

	return removeFile(s.ObjectPath(bucket, key))
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("unlink %q: %w", path, err)
	}

	return nil
}
