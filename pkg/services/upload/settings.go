package upload

import (
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore"
)

// SettingsOptions maps a partition's resolved settings to uploader
// options, so the coordinator slices with the partition's block size and
// honors its buffer and manifest-save configuration.
func SettingsOptions(s blockstore.Settings) []Option {
	return []Option{
		WithBlockSize(s.BlockSize),
		WithMaxBuffer(s.MaxBufferSize),
		WithManifestSaveInterval(s.ManifestSaveInterval),
	}
}
