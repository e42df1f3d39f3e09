package meta

import (
	"path/filepath"

	common "github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore"
	"github.com/spf13/cobra"
)

var vPath string

// Root defines root command for operations with partition metadata.
var Root = &cobra.Command{
	Use:   "meta",
	Short: "Operations with partition metadata",
}

var versionCMD = &cobra.Command{
	Use:   "version",
	Short: "Version file inspection",
	Long:  `Print the layout parameters recorded in a partition's version file.`,
	Args:  cobra.NoArgs,
	RunE:  versionFunc,
}

func init() {
	common.AddComponentPathFlag(versionCMD, &vPath)
	Root.AddCommand(versionCMD)
}

func versionFunc(cmd *cobra.Command, _ []string) error {
	rec, err := blockstore.ReadVersionFile(filepath.Join(vPath, blockstore.VersionFileName))
	if err != nil {
		return common.Errf("could not read version file: %w", err)
	}

	cmd.Printf("backend_id: %s\n", rec.BackendID)
	cmd.Printf("version_number: %d\n", rec.Version)
	cmd.Printf("block_size: %d\n", rec.BlockSize)
	cmd.Printf("max_blocks: %d\n", rec.MaxBlocks)
	cmd.Printf("b_depth: %d\n", rec.BucketDepth)
	cmd.Printf("k_depth: %d\n", rec.KeyDepth)

	return nil
}
