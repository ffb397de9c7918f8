// +build debug

// Gomega should not be a dependency in non-debug builds.

package storage

import (
	"errors"
	"log"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var _ = func() (_ struct{}) {
	RegisterFailHandler(gomegaFailHandler)
	return
}()

func gomegaFailHandler(message string, callerSkip ...int) {
	skip := callerSkip[0] + 1
	log.Fatal("FATAL: invariants are broken: ", stackerr.WrapSkip(errors.New(message), skip))
}

// checkInvariants re-derives used bytes and list linkage from scratch
// and compares against the incrementally maintained state. Only
// compiled into debug builds (-tags debug).
func (l *LRU) checkInvariants() {
	Expect(l.head.prev).To(BeNil())
	Expect(l.tail.next).To(BeNil())
	Expect(l.head.owner).To(BeNil())
	Expect(l.tail.owner).To(BeNil())
	var size int64
	var items int
	for n := l.oldest(); !l.end(n); n = n.next {
		items++
		size += n.cost()
		Expect(n.prev.next).To(BeIdenticalTo(n))
		Expect(n.owner).To(BeIdenticalTo(l))
		tn, ok := l.table[n.key]
		Expect(ok).To(BeTrue(), n.key, "no table entry for node")
		Expect(tn).To(BeIdenticalTo(n), "table points to another node for key")
	}
	Expect(l.newest().next).To(BeIdenticalTo(l.tail))
	Expect(size).To(Equal(l.usedBytes))
	Expect(items).To(Equal(len(l.table)))
	ExpectWithOffset(1, l.usedBytes).To(BeNumerically("<=", l.maxBytes))
}
