// Package unix provides a Unix domain socket implementation of the RPC
// transport interfaces. Suitable for same-host communication with lower
// overhead than TCP.
package unix
