package storage

import (
	"fmt"

	"github.com/irtery/afina/internal/tag"
	"github.com/irtery/afina/recycle"
)

// node is one intrusive doubly linked list cell owned by exactly one
// LRU. Sentinel head/tail nodes have a nil owner and carry no data;
// they exist so push/detach never need a nil check.
type node struct {
	key  string
	data *recycle.Data

	owner      *LRU
	prev, next *node
}

func (n *node) cost() int64 {
	return int64(len(n.key) + n.data.Len())
}

// detach unlinks n from its current neighbors. It does not touch the
// owner's usedBytes or table; callers do that themselves so that a
// detach-and-reinsert (move-to-tail) never double counts.
func (n *node) detach() {
	link(n.prev, n.next)
	if tag.Debug {
		n.prev = nil
		n.next = nil
	}
}

func link(a, b *node) {
	a.next = b
	b.prev = a
}

func (n *node) GoString() string {
	key := func(n *node) interface{} {
		if n == nil {
			return nil
		}
		return n.key
	}
	return fmt.Sprintf("{key:%q, cost:%v, prev:%v, next:%v}", n.key, n.cost(), key(n.prev), key(n.next))
}
