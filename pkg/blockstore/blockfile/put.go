package blockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"go.uber.org/zap"
)

// tmpWriteSuffix names the temporary used by PutPlain before the atomic
// rename. Encoded names cannot contain a dot, so temporaries never shadow
// real objects and folds skip them along with every other dotted name.
const tmpWriteSuffix = ".tmpwrite"

// PutBlock writes one block value at its slot. Oversize values are rejected
// before any I/O. Writing into a tombstoned file is a silent no-op. A write
// that is not the next sequential block of the file additionally stamps the
// trailer record, permanently marking the file as possibly holed.
func (s *Store) PutBlock(bucket []byte, id blockkey.ID, value []byte) error {
	if s.readOnly {
		return common.ErrReadOnly
	}
	if uint64(len(value)) > uint64(s.blockSize) {
		return fmt.Errorf("%w: value of %d bytes exceeds block size %d", common.ErrInvalidArgument, len(value), s.blockSize)
	}

	path, off := s.blockLocation(bucket, id)

	fi, err := os.Stat(path)
	exists := err == nil
	if exists && isTombstone(fi.Mode()) {
		return nil
	}

	inOrder := s.isInOrder(id.Number, exists, fi)

	packed, err := codec.Pack(value, s.blockSize)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm()); err != nil {
		return fmt.Errorf("mkdir for block file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, s.perm)
	if err != nil {
		return fmt.Errorf("open block file %q: %w", path, err)
	}

	if _, err := f.WriteAt(packed, off); err != nil {
		_ = f.Close()
		return fmt.Errorf("write block %s: %w", id, err)
	}

	if !inOrder {
		s.log.Debug("out-of-order block write, stamping trailer",
			zap.String("block", id.String()))

		if _, err := f.WriteAt(s.trailer(), s.trailerOffset()); err != nil {
			_ = f.Close()
			return fmt.Errorf("write trailer for block %s: %w", id, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close block file %q: %w", path, err)
	}

	return nil
}

// isInOrder reports whether writing block n extends the file sequentially.
// A fresh file accepts only the group's first block in order, an existing
// file only the slot right after the one implied by its size.
func (s *Store) isInOrder(n uint32, exists bool, fi os.FileInfo) bool {
	rel := int64(n - blockkey.GroupBase(n, s.maxBlocks))

	if !exists {
		return rel == 0
	}

	maxFromSize := int64(-1)
	if size := fi.Size(); size > 0 {
		maxFromSize = (size - 1) / s.slotSize()
	}

	return rel == maxFromSize+1
}

// PutTombstone hides the whole block file of id from reads and enumeration
// without unlinking it. The file is created if absent so the marker
// survives until the group is deleted. Tombstoning is idempotent.
func (s *Store) PutTombstone(bucket []byte, id blockkey.ID) error {
	if s.readOnly {
		return common.ErrReadOnly
	}

	path, _ := s.blockLocation(bucket, id)

	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm()); err != nil {
		return fmt.Errorf("mkdir for tombstone: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, s.perm)
	if err != nil {
		return fmt.Errorf("create tombstone file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close tombstone file %q: %w", path, err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat tombstone file %q: %w", path, err)
	}

	if err := os.Chmod(path, fi.Mode().Perm()|os.ModeSetgid); err != nil {
		return fmt.Errorf("mark tombstone %q: %w", path, err)
	}

	return nil
}

// PutPlain stores a plain object, writing to a temporary and renaming so
// readers never observe a partial value.
func (s *Store) PutPlain(bucket, key, value []byte) error {
	if s.readOnly {
		return common.ErrReadOnly
	}

	path := s.ObjectPath(bucket, key)

	if err := os.MkdirAll(filepath.Dir(path), s.dirPerm()); err != nil {
		return fmt.Errorf("mkdir for object: %w", err)
	}

	tmp := path + tmpWriteSuffix
	if err := os.WriteFile(tmp, value, s.perm); err != nil {
		return fmt.Errorf("write temporary %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %q->%q: %w", tmp, path, err)
	}

	return nil
}

func (s *Store) dirPerm() os.FileMode {
	return s.perm | 0700
}
