package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Socket configuration (shared between client and server)
// --------------------------------------------------------------------------

// SocketConf holds buffer settings for socket based transports.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific tuning knobs (ignored by other transports).
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for a master server.
type ServerConfig struct {
	// Endpoint the RPC transport listens on (e.g. 0.0.0.0:8080 or a
	// socket path)
	Endpoint string
	// MetricsEndpoint serves Prometheus metrics when non-empty
	MetricsEndpoint string
	// TimeoutSecond is the per-request transport timeout
	TimeoutSecond int64

	// Master identity
	ServerID uint64
	Locator  string

	// Coordinator endpoint; empty = standalone mode (no enlistment)
	Coordinator string

	// Log parameters
	SegmentSizeKB int

	// Initial tablet assignment, e.g. "0:0-1000,1:0-500"
	Tablets string

	// Socket tuning
	Socket SocketConf
	TCP    TCPConf

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	addSection("Master Identity")
	addField("Server ID", strconv.FormatUint(c.ServerID, 10))
	addField("Locator", c.Locator)
	if c.Coordinator != "" {
		addField("Coordinator", c.Coordinator)
	} else {
		addField("Coordinator", "(standalone)")
	}

	addSection("Log")
	addField("Segment Size", fmt.Sprintf("%d KB", c.SegmentSizeKB))

	if c.Tablets != "" {
		addSection("Tablets")
		addField("Initial Set", c.Tablets)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for RPC clients.
type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	Socket                 SocketConf
	TCP                    TCPConf
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
