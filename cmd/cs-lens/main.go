package main

import (
	"os"

	common "github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal"
	"github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal/blockfile"
	"github.com/rnowak-basho-forks/riak-cs/cmd/cs-lens/internal/meta"
	"github.com/spf13/cobra"
)

var command = &cobra.Command{
	Use:           "cs-lens",
	Short:         "Block Storage Lens",
	Long:          `Block Storage Lens provides tools to browse the contents of a storage partition offline.`,
	RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Usage() },
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// use stdout as default output for cmd.Print()
	command.SetOut(os.Stdout)
	command.AddCommand(
		blockfile.Root,
		meta.Root,
	)
}

func main() {
	common.ExitOnErr(command, command.Execute())
}
