// Package kv implements the client commands for object operations against
// a tabkv master.
package kv

import (
	"github.com/ValentinKolb/tabkv/cmd/util"
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	masterClient *client.MasterClient

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform object operations against a master",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Reject rule flags shared by all object operations
	KeyValueCommands.PersistentFlags().Bool("if-exists", false, util.WrapString("Reject the operation unless the object exists"))
	KeyValueCommands.PersistentFlags().Bool("if-not-exists", false, util.WrapString("Reject the operation if the object exists"))
	KeyValueCommands.PersistentFlags().Uint64("if-version", 0, util.WrapString("Reject the operation if the object exists at a version other than this one"))

	// Add subcommands
	KeyValueCommands.AddCommand(createCmd)
	KeyValueCommands.AddCommand(readCmd)
	KeyValueCommands.AddCommand(writeCmd)
	KeyValueCommands.AddCommand(removeCmd)
	KeyValueCommands.AddCommand(pingCmd)
}

// setupKVClient initializes the RPC master client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}
	if err := t.Connect(*config); err != nil {
		return err
	}

	masterClient = client.NewMasterClient(t, s)
	return nil
}

// rulesFromFlags builds the RejectRules from the shared flags, or nil when
// no rule flag is set.
func rulesFromFlags() *master.RejectRules {
	rules := &master.RejectRules{
		DoesntExist: viper.GetBool("if-exists"),
		Exists:      viper.GetBool("if-not-exists"),
	}
	if v := viper.GetUint64("if-version"); v != 0 {
		rules.VersionNeGiven = true
		rules.GivenVersion = v
	}
	if !rules.DoesntExist && !rules.Exists && !rules.VersionNeGiven {
		return nil
	}
	return rules
}
