package storage

import (
	"github.com/irtery/afina/recycle"
)

// LRU is a byte-budgeted, recency-ordered key/value store. It is not
// safe for concurrent use — see Locked.
//
// Entries live between two fake sentinel nodes:
//
//	head <-> node_0 <-> ... <-> node_(n-1) <-> tail
//
// head.next is the least-recently-used entry, tail.prev is the
// most-recently-used one. Eviction always removes head.next;
// insertion and every successful read/write move the touched node to
// tail.prev.
type LRU struct {
	maxBytes  int64
	usedBytes int64
	evictions int64

	table      map[string]*node
	head, tail *node
}

// New creates an LRU bounded at maxBytes. maxBytes must be at least 1.
func New(maxBytes int64) *LRU {
	l := &LRU{
		maxBytes: maxBytes,
		table:    make(map[string]*node),
		head:     &node{},
		tail:     &node{},
	}
	link(l.head, l.tail)
	return l
}

// UsedBytes reports the sum of cost over all live entries.
func (l *LRU) UsedBytes() int64 { return l.usedBytes }

// MaxBytes reports the configured budget.
func (l *LRU) MaxBytes() int64 { return l.maxBytes }

// Len reports the number of live entries.
func (l *LRU) Len() int { return len(l.table) }

// Evictions reports how many entries have been removed to make room
// for another Put/Set, as opposed to an explicit Delete.
func (l *LRU) Evictions() int64 { return l.evictions }

func (l *LRU) freeBytes() int64 { return l.maxBytes - l.usedBytes }

func (l *LRU) oldest() *node { return l.head.next }
func (l *LRU) newest() *node { return l.tail.prev }
func (l *LRU) end(n *node) bool { return n == l.tail }

// Put stores value under key, creating or replacing the entry. It
// fails without changing state if the entry alone would exceed
// maxBytes.
func (l *LRU) Put(key string, value *recycle.Data) bool {
	defer l.checkInvariants()
	cost := int64(len(key) + value.Len())
	if cost > l.maxBytes {
		return false
	}
	if n, ok := l.table[key]; ok {
		return l.setNode(n, value)
	}
	l.evictForSize(cost)
	n := &node{key: key, data: value, owner: l}
	l.table[key] = n
	l.pushTail(n)
	l.usedBytes += cost
	return true
}

// PutIfAbsent stores value under key only if key is not already
// present. found reports whether key was already present: when found
// is false and stored is also false, the entry was rejected for being
// too large rather than for a precondition miss.
func (l *LRU) PutIfAbsent(key string, value *recycle.Data) (stored, found bool) {
	if _, ok := l.table[key]; ok {
		return false, true
	}
	return l.Put(key, value), false
}

// Set replaces the value of an existing entry and moves it to tail.
// found reports whether key was present: when found is true and
// stored is false, the new value did not fit even after evicting
// every other entry, as opposed to key being absent outright.
func (l *LRU) Set(key string, value *recycle.Data) (stored, found bool) {
	defer l.checkInvariants()
	n, ok := l.table[key]
	if !ok {
		return false, false
	}
	return l.setNode(n, value), true
}

func (l *LRU) setNode(n *node, value *recycle.Data) bool {
	oldCost := n.cost()
	newCost := int64(len(n.key) + value.Len())
	if newCost > oldCost {
		if !l.evictForGrowth(newCost-oldCost, n) {
			return false
		}
	}
	old := n.data
	n.data = value
	l.usedBytes += newCost - oldCost
	l.moveToTail(n)
	old.Recycle()
	return true
}

// evictForGrowth frees `need` additional bytes by evicting from the
// head, skipping over keep (the node being grown). It never evicts
// anything unless the whole evacuation is guaranteed to free enough
// room — a dry run walks the list first, and only commits if it would
// succeed, so a failed grow leaves the cache completely unchanged.
func (l *LRU) evictForGrowth(need int64, keep *node) bool {
	if need <= l.freeBytes() {
		return true
	}
	need -= l.freeBytes()
	var freed int64
	var victims []*node
	for n := l.oldest(); !l.end(n) && freed < need; n = n.next {
		if n == keep {
			continue
		}
		freed += n.cost()
		victims = append(victims, n)
	}
	if freed < need {
		return false
	}
	for _, v := range victims {
		l.removeNode(v)
		l.evictions++
	}
	return true
}

// View is a snapshot reference to an entry's value, taken while the
// owning LRU's lock was held. Len is fixed as of that moment; Reader
// must be closed by whoever receives the View once they are done
// streaming it, which releases the reference it holds.
type View struct {
	Len    int
	Reader *recycle.DataReader
}

// Get looks up key, moving the entry to tail on a hit. The returned
// View holds its own reader reference taken before Get returns, so it
// stays valid even if the entry is later overwritten, deleted, or
// evicted by a concurrent caller — unlike handing back the node's
// *recycle.Data directly, which a racing Recycle() could invalidate
// before the caller ever reads it.
func (l *LRU) Get(key string) (View, bool) {
	defer l.checkInvariants()
	n, ok := l.table[key]
	if !ok {
		return View{}, false
	}
	l.moveToTail(n)
	return View{Len: n.data.Len(), Reader: n.data.NewReader()}, true
}

// Delete removes key if present.
func (l *LRU) Delete(key string) bool {
	defer l.checkInvariants()
	n, ok := l.table[key]
	if !ok {
		return false
	}
	l.removeNode(n)
	return true
}

func (l *LRU) removeNode(n *node) {
	n.detach()
	delete(l.table, n.key)
	l.usedBytes -= n.cost()
	n.data.Recycle()
	n.owner = nil
}

// evictForSize evicts from the head until size bytes are free. The
// caller (Put) has already checked cost <= maxBytes, so evicting
// every entry is always enough.
func (l *LRU) evictForSize(size int64) {
	for size > l.freeBytes() {
		n := l.oldest()
		if l.end(n) {
			return
		}
		l.removeNode(n)
		l.evictions++
	}
}

func (l *LRU) pushTail(n *node) {
	n.owner = l
	l.pushTailLinkOnly(n)
}

func (l *LRU) pushTailLinkOnly(n *node) {
	link(l.newest(), n)
	link(n, l.tail)
}

func (l *LRU) moveToTail(n *node) {
	if n == l.newest() {
		return
	}
	n.detach()
	l.pushTailLinkOnly(n)
}
