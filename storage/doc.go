// Package storage implements a byte-budgeted LRU key/value store.
//
// Entries live on a single intrusive doubly linked list ordered by
// recency: the head is the least-recently-used entry, the tail is the
// most-recently-used one. Every read or write that touches an
// existing entry moves it to the tail; insertion always happens at
// the tail; eviction always consumes from the head.
//
// LRU is not safe for concurrent use; Locked wraps it behind a single
// mutex for that purpose. Neither type performs I/O.
package storage
