// +build debug

// Package tag exposes build-tag driven flags that toggle extra runtime
// checks and bookkeeping. Debug builds zero stale pointers after
// detach/disown so that use-after-free shows up as a nil dereference
// instead of silent corruption.
package tag

const Debug = true
