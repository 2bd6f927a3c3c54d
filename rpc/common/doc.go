// Package common provides core data structures and utilities shared across
// the tabkv RPC system.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     clients, masters, backups and the coordinator, with a flexible
//     structure that adapts to different operation types. Includes factory
//     methods for creating the request and response messages and helpers
//     for carrying typed master errors across the wire.
//
//   - MessageType: Enumeration defining all supported operation types:
//     the client-facing master surface (create, read, write, remove,
//     setTablets, recover, ping), the backup surface consumed during
//     recovery (startReadingData, getRecoveryData) and the coordinator
//     surface (enlistServer, tabletsRecovered).
//
//   - ServerConfig / ClientConfig: Configuration for server and client
//     components, covering endpoints, timeouts, socket tuning and the
//     master's identity and initial tablet assignment.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat
//     logger facade while providing consistent formatting across the
//     application.
package common
