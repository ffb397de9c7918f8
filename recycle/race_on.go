// +build race

package recycle

// RaceEnabled reports whether the race detector is instrumenting this
// build. Chunk pooling tests that rely on a freed chunk being handed
// back out by sync.Pool skip themselves under race, since the race
// detector's allocator never reuses memory that way.
const RaceEnabled = true
