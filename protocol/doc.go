// Package protocol implements the restartable incremental parser that
// recognizes a command header (command name plus numeric/string
// fields terminated by "\r\n") inside a byte buffer that may only
// hold a prefix of the header.
//
// Parse is safe to call repeatedly with a growing prefix of the same
// input: it makes no progress (and keeps no partial state beyond what
// Reset clears) until a full header line is available, at which point
// it reports how many bytes the header occupied and hands back a
// Builder the connection layer uses to collect any payload and
// produce the runnable command.Command.
package protocol
