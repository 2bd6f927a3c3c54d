// Package seglog implements the master's append-only log.
//
// The log is a sequence of bounded segments. Each segment is a byte buffer
// written sequentially with framed entries; once closed, a segment is
// immutable. All object and tombstone payload bytes live inside segments for
// the lifetime of the segment, so higher layers (the object index) only ever
// hold non-owning references into the log.
//
// Every mutation append is replicated to the configured Replicator before it
// is acknowledged. Replay of recovered segments happens via IterateEntries,
// which validates the framing and reports ErrCorruptSegment on any violation.
package seglog
