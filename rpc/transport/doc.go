// Package transport provides the network communication layer of the tabkv
// RPC system. It defines server and client transport interfaces with
// pluggable implementations (TCP and Unix domain sockets) built on a shared
// base implementation.
//
// Frames on the wire carry a request id so that responses can be matched to
// pipelined requests: (requestID u64, length u32, payload).
package transport
