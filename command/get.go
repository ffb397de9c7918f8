package command

import (
	"io"

	"github.com/irtery/afina/storage"
)

// Get streams VALUE lines for every key that hits, oldest argument
// first, followed by a single END line. A miss is silently skipped —
// there is no per-key response on a miss, only the final END.
type Get struct {
	Keys []string
}

func NewGet(keys []string) *Get {
	return &Get{Keys: keys}
}

func (c *Get) Execute(cache *storage.Locked, w io.Writer) error {
	for _, key := range c.Keys {
		view, ok := cache.Get(key)
		if !ok {
			continue
		}
		err := c.writeValue(w, key, view)
		view.Reader.Close()
		if err != nil {
			return err
		}
	}
	return writeLine(w, EndResponse)
}

func (c *Get) writeValue(w io.Writer, key string, view storage.View) error {
	if err := writeLinef(w, "%s %s %v", ValueResponse, key, view.Len); err != nil {
		return err
	}
	if _, err := view.Reader.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, Separator)
	return err
}
