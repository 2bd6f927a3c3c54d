package server

import (
	"fmt"
	"net/http"

	"github.com/ValentinKolb/tabkv/lib/master"
	"github.com/ValentinKolb/tabkv/rpc/common"
	"github.com/ValentinKolb/tabkv/rpc/serializer"
	"github.com/ValentinKolb/tabkv/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// rpcServer hosts one master behind a transport and a serializer.
type rpcServer struct {
	config     common.ServerConfig
	master     *master.Master
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
}

// NewRPCServer creates a new RPC server for the given master.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		m,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	m *master.Master,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return rpcServer{
		config:     config,
		master:     m,
		transport:  transport,
		serializer: serializer,
		adapter:    NewMasterServerAdapter(),
	}
}

// registerTransportHandler wires the serialize/dispatch/deserialize chain
// into the transport layer.
func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			respMsg = s.adapter.Handle(&msg, s.master)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			// A response that cannot be serialized is a bug in the
			// serializer; give the client at least the error string.
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// serveMetrics exposes all VictoriaMetrics counters in Prometheus text
// format on the configured endpoint.
func (s *rpcServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
	if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
		Logger.Errorf("metrics endpoint failed: %v", err)
	}
}

// Serve starts the RPC server. It blocks while serving and returns only if
// the transport cannot start listening.
func (s *rpcServer) Serve() error {
	common.InitLoggers(s.config.LogLevel)

	s.registerTransportHandler()

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	return s.transport.Listen(s.config)
}
