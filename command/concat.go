package command

import (
	"io"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

// Concat covers append/prepend: like Store, but requires an existing
// entry and concatenates rather than replaces. Building the merged
// value and installing it happens under a single Locked.Do call so
// the read-modify-write is atomic with respect to other connections.
type Concat struct {
	Pool    *recycle.Pool
	Key     string
	Value   *recycle.Data
	Prepend bool
}

func NewAppend(pool *recycle.Pool, key string, value *recycle.Data) *Concat {
	return &Concat{Pool: pool, Key: key, Value: value}
}

func NewPrepend(pool *recycle.Pool, key string, value *recycle.Data) *Concat {
	return &Concat{Pool: pool, Key: key, Value: value, Prepend: true}
}

func (c *Concat) Execute(cache *storage.Locked, w io.Writer) error {
	var stored, found bool
	var mergeErr error
	cache.Do(func(l *storage.LRU) {
		old, ok := l.Get(c.Key)
		if !ok {
			return
		}
		found = true

		oldReader := old.Reader
		newReader := c.Value.NewReader()
		defer oldReader.Close()
		defer newReader.Close()

		var combined io.Reader
		if c.Prepend {
			combined = io.MultiReader(newReader, oldReader)
		} else {
			combined = io.MultiReader(oldReader, newReader)
		}

		merged, err := c.Pool.ReadData(combined, old.Len+c.Value.Len())
		if err != nil {
			mergeErr = stackerr.Wrap(err)
			return
		}
		stored, _ = l.Set(c.Key, merged)
		if !stored {
			merged.Recycle()
		}
	})
	c.Value.Recycle()
	if mergeErr != nil {
		return mergeErr
	}
	if !found {
		return writeLine(w, NotFoundResponse)
	}
	if !stored {
		return writeLine(w, NotStoredResponse)
	}
	return writeLine(w, StoredResponse)
}
