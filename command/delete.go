package command

import (
	"io"

	"github.com/irtery/afina/storage"
)

// Delete removes a single key, replying DELETED on a hit or NOT_FOUND
// on a miss.
type Delete struct {
	Key string
}

func NewDelete(key string) *Delete {
	return &Delete{Key: key}
}

func (c *Delete) Execute(cache *storage.Locked, w io.Writer) error {
	if cache.Delete(c.Key) {
		return writeLine(w, DeletedResponse)
	}
	return writeLine(w, NotFoundResponse)
}
