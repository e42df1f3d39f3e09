package blockfile

import (
	"github.com/spf13/cobra"
)

var (
	vPath      string
	vBlockSize uint32
	vMaxBlocks uint32
	vNumber    uint32
	vOut       string
)

// Root defines root command for operations with packed block files.
var Root = &cobra.Command{
	Use:   "blockfile",
	Short: "Operations with a packed block file",
}

func init() {
	Root.AddCommand(listCMD)
	Root.AddCommand(getCMD)
}
