package metrics

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	It("starts every counter and timer at zero", func() {
		s := New()
		Expect(s.CacheHits.Count()).To(BeZero())
		Expect(s.CacheMisses.Count()).To(BeZero())
		Expect(s.CacheEvicts.Count()).To(BeZero())
		Expect(s.UsedBytes.Value()).To(BeZero())
		Expect(s.GetLatency.Count()).To(BeZero())
		Expect(s.WriteLatency.Count()).To(BeZero())
		Expect(s.ActiveConns.Count()).To(BeZero())
		Expect(s.RejectedConns.Count()).To(BeZero())
	})

	It("reports updates against its own registry", func() {
		s := New()
		s.CacheHits.Inc(3)
		s.CacheMisses.Inc(1)
		s.UsedBytes.Update(128)

		Expect(s.CacheHits.Count()).To(BeEquivalentTo(3))
		Expect(s.CacheMisses.Count()).To(BeEquivalentTo(1))
		Expect(s.UsedBytes.Value()).To(BeEquivalentTo(128))

		var buf bytes.Buffer
		s.WriteOnce(&buf)
		Expect(buf.String()).To(ContainSubstring("cache.hits"))
	})

	It("keeps independently constructed servers isolated", func() {
		a := New()
		b := New()
		a.CacheHits.Inc(5)
		Expect(b.CacheHits.Count()).To(BeZero())
	})
})
