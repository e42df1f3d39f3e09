package blockfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	common "github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockfile"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/codec"
	"github.com/spf13/cobra"
)

var listCMD = &cobra.Command{
	Use:   "list",
	Short: "Block listing",
	Long:  `List all readable block slots of one packed block file.`,
	Args:  cobra.NoArgs,
	RunE:  listFunc,
}

func init() {
	common.AddComponentPathFlag(listCMD, &vPath)
	common.AddBlockGeometryFlags(listCMD.Flags(), &vBlockSize, &vMaxBlocks)
}

func listFunc(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(vPath)
	if err != nil {
		return common.Errf("could not open block file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return common.Errf("could not stat block file: %w", err)
	}

	slot := int64(codec.HeaderSize) + int64(vBlockSize)
	trailerOff := int64(vMaxBlocks) * slot

	buf := make([]byte, slot)

	for i := int64(0); i < int64(vMaxBlocks); i++ {
		if i*slot >= fi.Size() {
			break
		}

		n, err := f.ReadAt(buf, i*slot)
		if err != nil && !errors.Is(err, io.EOF) {
			return common.Errf("could not read slot: %w", err)
		}

		value, err := codec.Unpack(buf[:n])
		if err != nil {
			continue
		}

		cmd.Println(fmt.Sprintf("slot %d: %d bytes", i, len(value)))
	}

	if fi.Size() >= trailerOff+blockfile.TrailerSize {
		n, err := f.ReadAt(buf[:blockfile.TrailerSize], trailerOff)
		if err != nil && !errors.Is(err, io.EOF) {
			return common.Errf("could not read trailer: %w", err)
		}

		if seq, err := blockfile.ParseTrailer(buf[:n]); err == nil {
			cmd.Println(fmt.Sprintf("trailer: written_sequentially=%t (file may contain holes)", seq))
		}
	}

	return nil
}
