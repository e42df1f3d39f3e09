package blockstore

import (
	"fmt"
	"time"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Configuration keys. Each key may also be resolved from the host process
// environment (upper-cased) when unset in the explicit configuration.
const (
	cfgDataRoot             = "data_root"
	cfgBlockSize            = "block_size"
	cfgMaxBlocks            = "max_blocks"
	cfgBucketDepth          = "b_depth"
	cfgKeyDepth             = "k_depth"
	cfgMaxBufferSize        = "max_buffer_size"
	cfgManifestSaveInterval = "manifest_save_interval_ms"
	cfgWriterPoolSize       = "writer_pool_size"
)

// Defaults for the optional settings.
const (
	DefaultMaxBlocks            = 1024
	DefaultBucketDepth          = 2
	DefaultKeyDepth             = 2
	DefaultWriterPoolSize       = 16
	DefaultManifestSaveInterval = time.Minute

	// DefaultMaxBufferMultiplier scales the block size into the default
	// upload buffer capacity.
	DefaultMaxBufferMultiplier = 16
)

// Settings carries the resolved configuration of one storage partition and
// its upload coordinator.
type Settings struct {
	DataRoot    string
	BlockSize   uint32
	MaxBlocks   uint32
	BucketDepth int
	KeyDepth    int

	MaxBufferSize        uint64
	ManifestSaveInterval time.Duration
	WriterPoolSize       int
}

// ReadSettings resolves every configuration key from v, falling back to the
// process environment for unset keys. Missing or malformed required keys
// are reported as [common.ErrConfig].
func ReadSettings(v *viper.Viper) (Settings, error) {
	v.AutomaticEnv()

	var (
		s   Settings
		err error
	)

	s.DataRoot = v.GetString(cfgDataRoot)
	if s.DataRoot == "" {
		return s, fmt.Errorf("%w: %s is required", common.ErrConfig, cfgDataRoot)
	}

	raw := v.Get(cfgBlockSize)
	if raw == nil {
		return s, fmt.Errorf("%w: %s is required", common.ErrConfig, cfgBlockSize)
	}

	blockSize, err := cast.ToUint64E(raw)
	if err != nil {
		return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgBlockSize, err)
	}
	if blockSize == 0 || blockSize >= 1<<32 {
		return s, fmt.Errorf("%w: %s must be positive and below 2^32", common.ErrConfig, cfgBlockSize)
	}
	s.BlockSize = uint32(blockSize)

	s.MaxBlocks = DefaultMaxBlocks
	if raw = v.Get(cfgMaxBlocks); raw != nil {
		maxBlocks, err := cast.ToUint64E(raw)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgMaxBlocks, err)
		}
		s.MaxBlocks = uint32(maxBlocks)
	}

	s.BucketDepth = DefaultBucketDepth
	if raw = v.Get(cfgBucketDepth); raw != nil {
		if s.BucketDepth, err = cast.ToIntE(raw); err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgBucketDepth, err)
		}
	}

	s.KeyDepth = DefaultKeyDepth
	if raw = v.Get(cfgKeyDepth); raw != nil {
		if s.KeyDepth, err = cast.ToIntE(raw); err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgKeyDepth, err)
		}
	}

	if raw = v.Get(cfgMaxBufferSize); raw != nil {
		if s.MaxBufferSize, err = cast.ToUint64E(raw); err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgMaxBufferSize, err)
		}
	}

	if raw = v.Get(cfgManifestSaveInterval); raw != nil {
		ms, err := cast.ToInt64E(raw)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgManifestSaveInterval, err)
		}
		s.ManifestSaveInterval = time.Duration(ms) * time.Millisecond
	}

	if raw = v.Get(cfgWriterPoolSize); raw != nil {
		if s.WriterPoolSize, err = cast.ToIntE(raw); err != nil {
			return s, fmt.Errorf("%w: %s: %v", common.ErrConfig, cfgWriterPoolSize, err)
		}
	}

	if err := s.normalize(); err != nil {
		return s, err
	}

	return s, nil
}

// normalize validates the required settings and fills defaults for the
// optional ones.
func (s *Settings) normalize() error {
	if s.DataRoot == "" {
		return fmt.Errorf("%w: data root is required", common.ErrConfig)
	}
	if s.BlockSize == 0 {
		return fmt.Errorf("%w: block size must be positive", common.ErrConfig)
	}
	if s.MaxBlocks == 0 {
		s.MaxBlocks = DefaultMaxBlocks
	}
	if s.BucketDepth < 0 || s.KeyDepth < 0 {
		return fmt.Errorf("%w: nesting depths must be non-negative", common.ErrConfig)
	}
	if s.MaxBufferSize == 0 {
		s.MaxBufferSize = DefaultMaxBufferMultiplier * uint64(s.BlockSize)
	}
	if s.ManifestSaveInterval <= 0 {
		s.ManifestSaveInterval = DefaultManifestSaveInterval
	}
	if s.WriterPoolSize <= 0 {
		s.WriterPoolSize = DefaultWriterPoolSize
	}

	return nil
}
