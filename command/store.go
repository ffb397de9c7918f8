package command

import (
	"io"

	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

type storeMode int

const (
	modeSet storeMode = iota
	modeAdd
	modeReplace
)

// Store covers set/add/replace: same wire shape (key + payload), one
// of three cache operations, STORED/NOT_STORED reply, or SERVER_ERROR
// when the entry cannot fit in the cache at all.
type Store struct {
	mode  storeMode
	Key   string
	Value *recycle.Data
}

func NewSet(key string, value *recycle.Data) *Store {
	return &Store{mode: modeSet, Key: key, Value: value}
}

func NewAdd(key string, value *recycle.Data) *Store {
	return &Store{mode: modeAdd, Key: key, Value: value}
}

func NewReplace(key string, value *recycle.Data) *Store {
	return &Store{mode: modeReplace, Key: key, Value: value}
}

func (c *Store) Execute(cache *storage.Locked, w io.Writer) error {
	var stored, tooLarge bool
	switch c.mode {
	case modeSet:
		// Put's only failure mode is the entry alone exceeding the
		// cache's budget — evicting every other entry is always
		// enough otherwise.
		stored = cache.Put(c.Key, c.Value)
		tooLarge = !stored
	case modeAdd:
		// found means key was already present (the precondition
		// miss); !found && !stored means the key was absent but the
		// entry still didn't fit.
		var found bool
		stored, found = cache.PutIfAbsent(c.Key, c.Value)
		tooLarge = !stored && !found
	case modeReplace:
		// found means key was present; found && !stored means the
		// grown value didn't fit even after evicting every other
		// entry, the same capacity failure modeSet reports.
		var found bool
		stored, found = cache.Set(c.Key, c.Value)
		tooLarge = found && !stored
	}
	if stored {
		return writeLine(w, StoredResponse)
	}
	// Rejected without entering the cache: nobody else owns this
	// buffer, so we are the one that has to return it.
	c.Value.Recycle()
	if tooLarge {
		return writeLinef(w, "%s object too large for cache", ServerErrorResponse)
	}
	return writeLine(w, NotStoredResponse)
}
