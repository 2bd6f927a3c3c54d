// Package index implements the master's object index: a concurrent hash map
// from (tableId, objectId) to a tagged reference into the log. The index
// never owns payload bytes; it stores only the tag (object vs tombstone)
// and a seglog.Ref.
package index
