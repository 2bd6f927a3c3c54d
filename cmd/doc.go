// Package cmd implements the command-line interface of tabkv. It provides
// a hierarchical command structure with operations for running a master
// node and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for object operations (create, read, write, remove, ping)
//   - serve: Commands for starting and configuring a master node
//   - util: Shared utilities for command-line processing and configuration
//
// See tabkv -help for a list of all commands.
package cmd
