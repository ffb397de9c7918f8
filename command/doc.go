// Package command holds the opaque action objects the protocol parser
// builds out of a recognized header. Each Command carries zero or one
// payload argument and knows how to execute itself against a locked
// cache and format its own reply, but nothing about how it was parsed
// or how its connection is wired up.
package command
