package blockstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockfile"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"go.uber.org/zap"
)

// Open starts the given partition: the directory is created if needed, the
// host filesystem is probed for case sensitivity, and the version file is
// created or validated against the settings. Any failure is fatal to the
// partition.
func Open(partition string, set Settings, opts ...Option) (*Backend, error) {
	if err := set.normalize(); err != nil {
		return nil, err
	}

	b := &Backend{
		partition: partition,
		dir:       filepath.Join(set.DataRoot, partition),
		set:       set,
	}
	b.log = zap.L()

	for i := range opts {
		opts[i](&b.cfg)
	}

	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return nil, fmt.Errorf("create partition dir %q: %w", b.dir, err)
	}

	if !b.readOnly {
		if err := checkCaseSensitivity(b.dir); err != nil {
			return nil, err
		}
	}

	if err := b.ensureVersionFile(); err != nil {
		return nil, err
	}

	if err := b.Codec.Init(); err != nil {
		return nil, fmt.Errorf("init compression: %w", err)
	}

	b.store = blockfile.New(b.dir,
		blockfile.WithLogger(b.log),
		blockfile.WithBlockSize(set.BlockSize),
		blockfile.WithMaxBlocks(set.MaxBlocks),
		blockfile.WithDepths(set.BucketDepth, set.KeyDepth),
		blockfile.WithReadOnly(b.readOnly),
	)

	b.log.Info("partition opened",
		zap.String("partition", partition),
		zap.String("dir", b.dir),
		zap.Uint32("block_size", set.BlockSize),
		zap.Uint32("max_blocks", set.MaxBlocks))

	return b, nil
}

// Close releases the partition's resources.
func (b *Backend) Close() error {
	return b.Codec.Close()
}

// Store exposes the partition's file layout engine.
func (b *Backend) Store() *blockfile.Store {
	return b.store
}

// Drop erases all partition content and reinitializes the directory and
// version file.
func (b *Backend) Drop() error {
	if b.readOnly {
		return common.ErrReadOnly
	}

	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("remove partition dir %q: %w", b.dir, err)
	}
	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return fmt.Errorf("recreate partition dir %q: %w", b.dir, err)
	}

	return WriteVersionFile(filepath.Join(b.dir, VersionFileName), newVersionRecord(b.set))
}

// IsEmpty reports whether a fold over the partition yields nothing.
func (b *Backend) IsEmpty() (bool, error) {
	empty := true

	err := b.FoldKeys(func([]byte, []byte) error {
		empty = false
		return errStopFold
	})
	if err != nil {
		return false, err
	}

	return empty, nil
}

func (b *Backend) ensureVersionFile() error {
	path := filepath.Join(b.dir, VersionFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if b.readOnly {
			return fmt.Errorf("%w: partition has no version file", common.ErrConfig)
		}
		return WriteVersionFile(path, newVersionRecord(b.set))
	}

	rec, err := ReadVersionFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfig, err)
	}

	return checkVersionRecord(rec, b.set)
}

// checkCaseSensitivity refuses to start on filesystems that fold case: the
// path encoding relies on upper and lower case names being distinct files.
func checkCaseSensitivity(dir string) error {
	lower := filepath.Join(dir, ".case.probe-x")
	upper := filepath.Join(dir, ".case.probe-X")

	defer func() {
		_ = os.Remove(lower)
		_ = os.Remove(upper)
	}()

	f, err := os.OpenFile(lower, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create case probe %q: %w", lower, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close case probe %q: %w", lower, err)
	}

	if _, err := os.Stat(upper); err == nil {
		return fmt.Errorf("%w: filesystem at %q is case-insensitive", common.ErrConfig, dir)
	}

	return nil
}
