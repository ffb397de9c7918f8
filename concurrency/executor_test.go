package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Executor", func() {
	It("runs a single submitted task", func() {
		e := New(1, 2, 4, time.Second)
		defer e.Stop(true)

		var ran int32
		var wg sync.WaitGroup
		wg.Add(1)
		Expect(e.Submit(func() {
			atomic.StoreInt32(&ran, 1)
			wg.Done()
		})).To(BeTrue())
		wg.Wait()
		Expect(atomic.LoadInt32(&ran)).To(Equal(int32(1)))
	})

	It("runs more tasks than lowWatermark by growing toward highWatermark", func() {
		e := New(1, 4, 16, time.Second)
		defer e.Stop(true)

		const n = 4
		release := make(chan struct{})
		var started int32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			Expect(e.Submit(func() {
				atomic.AddInt32(&started, 1)
				<-release
				wg.Done()
			})).To(BeTrue())
			// Wait for this task to occupy a worker, so the next Submit
			// finds no idle worker and has to grow the pool.
			want := int32(i + 1)
			Eventually(func() int32 { return atomic.LoadInt32(&started) }).Should(Equal(want))
		}
		Eventually(func() int32 { return atomic.LoadInt32(&started) }).Should(Equal(int32(n)))
		close(release)
		wg.Wait()
	})

	It("refuses new tasks once the queue is saturated and no worker can grow", func() {
		e := New(1, 1, 1, time.Second)
		defer e.Stop(true)

		release := make(chan struct{})
		started := make(chan struct{})
		Expect(e.Submit(func() { close(started); <-release })).To(BeTrue())
		// Once the worker has dequeued the first task it no longer
		// occupies the queue.
		Eventually(started).Should(BeClosed())
		Expect(e.Submit(func() {})).To(BeTrue())
		Expect(e.Submit(func() {})).To(BeFalse())
		close(release)
	})

	It("refuses new tasks after Stop", func() {
		e := New(1, 1, 1, time.Second)
		e.Stop(true)
		Expect(e.Submit(func() {})).To(BeFalse())
	})

	It("drains queued tasks before fully stopping", func() {
		e := New(1, 1, 4, time.Second)

		var ran int32
		var wg sync.WaitGroup
		wg.Add(1)
		Expect(e.Submit(func() {
			atomic.AddInt32(&ran, 1)
			wg.Done()
		})).To(BeTrue())

		e.Stop(true)
		wg.Wait()
		Expect(atomic.LoadInt32(&ran)).To(Equal(int32(1)))
	})

	It("retires a grown worker after it sits idle past idleTimeout", func() {
		e := New(1, 2, 4, 20*time.Millisecond)
		defer e.Stop(true)

		release := make(chan struct{})
		started := make(chan struct{})
		Expect(e.Submit(func() { close(started); <-release })).To(BeTrue())
		// With the only worker busy, the next Submit grows the pool.
		Eventually(started).Should(BeClosed())
		Expect(e.Submit(func() {})).To(BeTrue())
		close(release)

		Eventually(func() int {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.active + e.free
		}, time.Second, 5*time.Millisecond).Should(Equal(e.lowWatermark))
	})

	It("Stop(false) returns immediately without waiting for drain", func() {
		e := New(1, 1, 4, time.Second)
		release := make(chan struct{})
		Expect(e.Submit(func() { <-release })).To(BeTrue())

		done := make(chan struct{})
		go func() {
			e.Stop(false)
			close(done)
		}()
		Eventually(done).Should(BeClosed())
		close(release)
	})
})
