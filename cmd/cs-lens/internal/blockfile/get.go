package blockfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	common "github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
	"github.com/spf13/cobra"
)

var getCMD = &cobra.Command{
	Use:   "get",
	Short: "Block extraction",
	Long:  `Extract the payload of one block slot from a packed block file.`,
	Args:  cobra.NoArgs,
	RunE:  getFunc,
}

func init() {
	common.AddComponentPathFlag(getCMD, &vPath)
	common.AddOutputFileFlag(getCMD, &vOut)
	common.AddBlockGeometryFlags(getCMD.Flags(), &vBlockSize, &vMaxBlocks)

	getCMD.Flags().Uint32Var(&vNumber, "number", 0, "Slot number inside the file")
}

func getFunc(cmd *cobra.Command, _ []string) error {
	if vNumber >= vMaxBlocks {
		return fmt.Errorf("slot %d out of range, file holds %d slots", vNumber, vMaxBlocks)
	}

	f, err := os.Open(vPath)
	if err != nil {
		return common.Errf("could not open block file: %w", err)
	}
	defer f.Close()

	slot := int64(codec.HeaderSize) + int64(vBlockSize)
	buf := make([]byte, slot)

	n, err := f.ReadAt(buf, int64(vNumber)*slot)
	if err != nil && !errors.Is(err, io.EOF) {
		return common.Errf("could not read slot: %w", err)
	}

	value, err := codec.Unpack(buf[:n])
	if err != nil {
		return common.Errf("slot holds no readable block: %w", err)
	}

	if vOut == "" {
		_, err = cmd.OutOrStdout().Write(value)
		return common.Errf("could not print payload: %w", err)
	}

	return common.Errf("could not save payload: %w", os.WriteFile(vOut, value, 0644))
}
