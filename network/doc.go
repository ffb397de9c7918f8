// Package network wires the protocol parser and command set to real
// TCP connections. Conn runs one connection's read-parse-execute-write
// cycle; Acceptor runs the listener's accept loop, admission-controls
// how many connections may be served concurrently, and tracks which
// connections are still live so Stop can wait for a clean drain.
package network
