// Package master implements the mutation and recovery engine of a tabkv
// master storage node.
//
// A master owns a set of tablets and serves create/read/write/remove for
// objects in those tablets. Mutations are appended to the segmented log
// (replicated to backups) and indexed by the object index. When another
// master fails, the coordinator hands this master a partition of the failed
// master's tablets; Recover pulls the log segments from backup nodes and
// replays them into local state using version-based merge rules that
// converge regardless of segment arrival order.
package master
