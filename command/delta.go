package command

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

// Delta covers incr/decr: the stored value is parsed as a base-10
// unsigned integer, the delta is added or subtracted, and the new
// value is written back and echoed. decr clamps at zero rather than
// going negative.
type Delta struct {
	Pool  *recycle.Pool
	Key   string
	Value uint64
	Decr  bool
}

func NewIncr(pool *recycle.Pool, key string, delta uint64) *Delta {
	return &Delta{Pool: pool, Key: key, Value: delta}
}

func NewDecr(pool *recycle.Pool, key string, delta uint64) *Delta {
	return &Delta{Pool: pool, Key: key, Value: delta, Decr: true}
}

func (c *Delta) Execute(cache *storage.Locked, w io.Writer) error {
	var found, invalid, stored bool
	var result uint64
	var opErr error
	cache.Do(func(l *storage.LRU) {
		old, ok := l.Get(c.Key)
		if !ok {
			return
		}
		found = true
		defer old.Reader.Close()

		var buf bytes.Buffer
		if _, err := old.Reader.WriteTo(&buf); err != nil {
			opErr = stackerr.Wrap(err)
			return
		}
		base, err := strconv.ParseUint(strings.TrimSpace(buf.String()), 10, 64)
		if err != nil {
			invalid = true
			return
		}
		if c.Decr {
			if base > c.Value {
				result = base - c.Value
			}
		} else {
			result = base + c.Value
		}

		text := strconv.FormatUint(result, 10)
		merged, err := c.Pool.ReadData(strings.NewReader(text), len(text))
		if err != nil {
			opErr = stackerr.Wrap(err)
			return
		}
		stored, _ = l.Set(c.Key, merged)
		if !stored {
			merged.Recycle()
		}
	})
	switch {
	case opErr != nil:
		return opErr
	case invalid:
		return writeLinef(w, "%s cannot increment or decrement non-numeric value", ClientErrorResponse)
	case !found:
		return writeLine(w, NotFoundResponse)
	case !stored:
		return writeLinef(w, "%s out of memory storing object", ServerErrorResponse)
	}
	return writeLinef(w, "%v", result)
}
