// Package serializer provides message serialization for the tabkv RPC
// system. It defines a common interface and two implementations for
// serializing and deserializing messages between client and server
// components.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations
//     must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized
//     for speed and space efficiency. Uses a flag-based approach to encode
//     only present fields, resulting in compact serialized data with
//     minimal overhead. Recommended for production use.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for
//     debugging or interoperability with other systems, but with lower
//     performance.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent
//	use across multiple goroutines without additional synchronization.
package serializer
