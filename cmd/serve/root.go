// Package serve implements the command that starts a tabkv master node.
package serve

import (
	"context"
	"fmt"

	cmdUtil "github.com/ValentinKolb/tabkv/cmd/util"
	"github.com/ValentinKolb/tabkv/lib/cluster"
	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/lib/seglog"
	"github.com/ValentinKolb/tabkv/rpc/client"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/server"
	"github.com/ValentinKolb/tabkv/rpc/transport"
	"github.com/ValentinKolb/tabkv/rpc/transport/tcp"
	"github.com/ValentinKolb/tabkv/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a tabkv master node",
		Long:    `Start a tabkv master node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is TABKV_<flag> (e.g. TABKV_ENDPOINT=0.0.0.0:8080)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the RPC server will listen (e.g. 0.0.0.0:8080, /tmp/tabkv.sock, ...)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address for the Prometheus metrics endpoint (empty = disabled)"))

	key = "server-id"
	ServeCmd.PersistentFlags().Uint64(key, 1, cmdUtil.WrapString("Numeric id of this master. Embedded in segment headers and used towards backups"))

	key = "locator"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address this master advertises when enlisting with the coordinator (defaults to the endpoint)"))

	key = "coordinator"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Endpoint of the cluster coordinator. When unset the master runs standalone and skips enlistment"))

	key = "segment-size"
	ServeCmd.PersistentFlags().Int(key, 8192, cmdUtil.WrapString("Size of each log segment in KB"))

	key = "tablets"
	ServeCmd.PersistentFlags().String(key, "0:0-18446744073709551615", cmdUtil.WrapString("Initial tablet set in the form table:start-end,table:start-end"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Per-request transport timeout in seconds"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables into the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.ServerID = viper.GetUint64("server-id")
	serveCmdConfig.Locator = viper.GetString("locator")
	serveCmdConfig.Coordinator = viper.GetString("coordinator")
	serveCmdConfig.SegmentSizeKB = viper.GetInt("segment-size")
	serveCmdConfig.Tablets = viper.GetString("tablets")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Locator == "" {
		serveCmdConfig.Locator = serveCmdConfig.Endpoint
	}
	return nil
}

// run starts the master and serves; it returns only if startup or the
// transport's listener setup fails
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// parse the initial tablet assignment
	tablets, err := cmdUtil.ParseTablets(serveCmdConfig.Tablets)
	if err != nil {
		return err
	}

	// connect the coordinator session (cluster mode only)
	var coordinator cluster.Coordinator
	if serveCmdConfig.Coordinator != "" {
		ct := tcp.NewTCPClientTransport()
		if err := ct.Connect(common.ClientConfig{
			Endpoints:     []string{serveCmdConfig.Coordinator},
			TimeoutSecond: int(serveCmdConfig.TimeoutSecond),
		}); err != nil {
			return fmt.Errorf("failed to connect to coordinator: %w", err)
		}
		coordinator = client.NewCoordinatorClient(ct, serializer.NewBinarySerializer())
	}

	dialBackup := client.NewBackupDialer(common.ClientConfig{
		TimeoutSecond: int(serveCmdConfig.TimeoutSecond),
		RetryCount:    1,
	})

	m := master.New(master.Config{
		ServerID:        serveCmdConfig.ServerID,
		Locator:         serveCmdConfig.Locator,
		SegmentCapacity: serveCmdConfig.SegmentSizeKB * 1024,
	}, coordinator, dialBackup, seglog.NopReplicator{})

	if err := m.SetTablets(tablets); err != nil {
		return err
	}
	if err := m.Enlist(context.Background()); err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, m, t, s)
	return serv.Serve()
}
