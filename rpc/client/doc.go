// Package client provides the RPC clients of tabkv: MasterClient for the
// client-facing master surface (create/read/write/remove, tablet control,
// recovery, ping) and the BackupClient and CoordinatorClient sessions the
// master itself consumes during recovery and enlistment.
//
// All clients share a transport and serializer pair; timeouts are enforced
// by the transport layer.
package client
