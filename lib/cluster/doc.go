// Package cluster declares the master's view of its external collaborators:
// the coordinator (membership, tablet assignment) and backup nodes (segment
// storage and recovery data). The rpc/client package provides wire
// implementations; tests substitute in-memory fakes.
package cluster
