// Package tablet maintains the set of tablets owned by a master: contiguous
// object-id ranges within named tables, each carrying a lifecycle state and
// a shared per-table handle holding the version counter and the object-id
// allocator.
package tablet
