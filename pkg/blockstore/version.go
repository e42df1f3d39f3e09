package blockstore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/spf13/cast"
)

// VersionFileName is the hidden per-partition file recording the layout
// parameters the partition was created with. Encoded bucket names can never
// start with a dot, so the name is reserved.
const VersionFileName = ".version.data"

const (
	backendID     = "riak_cs_blockstore"
	formatVersion = 1
)

// VersionRecord is the parsed content of a partition's version file.
type VersionRecord struct {
	BackendID   string
	Version     int
	BlockSize   uint32
	MaxBlocks   uint32
	BucketDepth int
	KeyDepth    int
}

func newVersionRecord(s Settings) VersionRecord {
	return VersionRecord{
		BackendID:   backendID,
		Version:     formatVersion,
		BlockSize:   s.BlockSize,
		MaxBlocks:   s.MaxBlocks,
		BucketDepth: s.BucketDepth,
		KeyDepth:    s.KeyDepth,
	}
}

// WriteVersionFile stores rec at path as text key/value records.
func WriteVersionFile(path string, rec VersionRecord) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "backend_id %s\n", rec.BackendID)
	fmt.Fprintf(&buf, "version_number %d\n", rec.Version)
	fmt.Fprintf(&buf, "block_size %d\n", rec.BlockSize)
	fmt.Fprintf(&buf, "max_blocks %d\n", rec.MaxBlocks)
	fmt.Fprintf(&buf, "b_depth %d\n", rec.BucketDepth)
	fmt.Fprintf(&buf, "k_depth %d\n", rec.KeyDepth)

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write version file %q: %w", path, err)
	}

	return nil
}

// ReadVersionFile parses the version file at path. Unknown keys are
// ignored for forward compatibility.
func ReadVersionFile(path string) (VersionRecord, error) {
	var rec VersionRecord

	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read version file %q: %w", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}

		var err error

		switch fields[0] {
		case "backend_id":
			rec.BackendID = fields[1]
		case "version_number":
			rec.Version, err = cast.ToIntE(fields[1])
		case "block_size":
			rec.BlockSize, err = cast.ToUint32E(fields[1])
		case "max_blocks":
			rec.MaxBlocks, err = cast.ToUint32E(fields[1])
		case "b_depth":
			rec.BucketDepth, err = cast.ToIntE(fields[1])
		case "k_depth":
			rec.KeyDepth, err = cast.ToIntE(fields[1])
		}
		if err != nil {
			return rec, fmt.Errorf("%w: version file %q: field %s: %v", common.ErrConfig, path, fields[0], err)
		}
	}

	return rec, nil
}

// checkVersionRecord verifies that the configured settings can open a
// partition created with rec: the configured block size and max blocks must
// not exceed the recorded ones and the nesting depths must match exactly.
func checkVersionRecord(rec VersionRecord, s Settings) error {
	if rec.BackendID != backendID {
		return fmt.Errorf("%w: partition belongs to backend %q", common.ErrConfig, rec.BackendID)
	}
	if rec.Version != formatVersion {
		return fmt.Errorf("%w: unsupported partition version %d", common.ErrConfig, rec.Version)
	}
	if s.BlockSize > rec.BlockSize {
		return fmt.Errorf("%w: configured block size %d exceeds recorded %d", common.ErrConfig, s.BlockSize, rec.BlockSize)
	}
	if s.MaxBlocks > rec.MaxBlocks {
		return fmt.Errorf("%w: configured max blocks %d exceeds recorded %d", common.ErrConfig, s.MaxBlocks, rec.MaxBlocks)
	}
	if s.BucketDepth != rec.BucketDepth || s.KeyDepth != rec.KeyDepth {
		return fmt.Errorf("%w: nesting depths %d/%d differ from recorded %d/%d",
			common.ErrConfig, s.BucketDepth, s.KeyDepth, rec.BucketDepth, rec.KeyDepth)
	}

	return nil
}
