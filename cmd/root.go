package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dCol/cmd/col"
	"github.com/ValentinKolb/dCol/cmd/serve"
	"github.com/ValentinKolb/dCol/cmd/util"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcol",
		Short: "storage-agnostic collections",
		Long: fmt.Sprintf(`dCol (v%s)

A storage-agnostic data-access layer written in Go: one collection API
backed by memory, SQLite or a RAFT replicated store, with hooks and
transparent local or shared caching.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCol",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCol v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(col.ColCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString(fmt.Sprintf("serializer of the cache protocol (%s)", strings.Join(serializer.Names(), ", "))))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
