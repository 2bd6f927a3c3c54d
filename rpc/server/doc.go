// Package server implements the RPC server hosting one tabkv master. The
// transport layer delivers raw frames; the server deserializes them, lets
// the master adapter execute the operation and serializes the response.
// Typed master errors travel as status codes and are reconstructed on the
// client side.
package server
