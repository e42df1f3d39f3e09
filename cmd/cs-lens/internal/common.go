package common

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Errf wraps a non-nil err in the errFmt format string and passes nil
// through, so call sites can wrap unconditionally.
func Errf(errFmt string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf(errFmt, err)
}

// ExitOnErr reports a non-nil err through cmd and terminates the process
// with status 1.
func ExitOnErr(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}

	cmd.PrintErrln(err)
	os.Exit(1)
}

// AddComponentPathFlag adds the required path flag to the command.
func AddComponentPathFlag(cmd *cobra.Command, v *string) {
	addRequired(cmd, v, "path", "Path to the storage component")
}

// AddOutputFileFlag adds the optional output-file flag to the command.
func AddOutputFileFlag(cmd *cobra.Command, v *string) {
	cmd.Flags().StringVar(v, "out", "", "Save the payload into the given file")
}

func addRequired(cmd *cobra.Command, v *string, name, usage string) {
	flags := cmd.Flags()
	flags.StringVar(v, name, "", usage)

	_ = cobra.MarkFlagRequired(flags, name)
}

// AddBlockGeometryFlags registers the layout parameters a raw block file
// cannot be interpreted without.
func AddBlockGeometryFlags(flags *pflag.FlagSet, blockSize, maxBlocks *uint32) {
	flags.Uint32Var(blockSize, "block-size", 1<<20, "Block slot payload size the file was written with")
	flags.Uint32Var(maxBlocks, "max-blocks", 1024, "Block slots per file the file was written with")
}
