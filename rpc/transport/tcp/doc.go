// Package tcp provides a TCP socket implementation of the RPC transport
// interfaces. Suitable for communication across machines; supports the
// usual TCP tuning knobs (no-delay, keep-alive, linger, buffer sizes).
package tcp
