// Package base implements the shared server and client transport logic used
// by the socket based transports (tcp, unix). Concrete transports only
// supply a connector that creates listeners and connections; framing,
// request pipelining, worker limits and reconnects live here.
package base
