package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/tabkv/cmd/kv"
	"github.com/ValentinKolb/tabkv/cmd/serve"
	"github.com/ValentinKolb/tabkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "tabkv",
		Short: "distributed in-memory key-value store",
		Long: fmt.Sprintf(`tabkv (v%s)

A distributed in-memory key-value store. Masters own tablets of object ids,
append mutations to a replicated segmented log, and recover the tablets of
failed masters by replaying log segments fetched from backup nodes.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of tabkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
