// Package rpc provides the remote procedure call framework of tabkv. It is
// the communication layer between clients, masters and their cluster
// collaborators.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including
//     the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets).
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON) for converting between Message objects and byte
//     arrays.
//
//   - client: RPC clients for the master surface plus backup and
//     coordinator sessions consumed by the recovery engine.
//
//   - server: The RPC server hosting one master, with the adapter that
//     maps wire messages onto master operations.
package rpc
