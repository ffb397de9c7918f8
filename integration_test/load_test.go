package integration

import (
	"fmt"
	"math"
	"math/rand"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rcrowley/go-metrics"

	"github.com/irtery/afina/testutil"
)

func isTemporary(err error) bool {
	if ne, ok := err.(net.Error); ok {
		return ne.Temporary()
	}
	return false
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	return false
}

// loadTest drives addr with clientsNum concurrent connections issuing
// a normally-distributed mix of get/set/delete requests (the delete
// share is delP, which is 0 here, so only gets and sets are sent), reporting
// latency and error-rate stats through go-metrics once the run
// finishes.
func loadTest(addr string) {
	prevMaxProcs := runtime.GOMAXPROCS(runtime.NumCPU())
	defer runtime.GOMAXPROCS(prevMaxProcs)

	const (
		itemsNum     = 4 * (1 << 10)
		meanItemSize = 4 * (1 << 10)
		indexStddev  = itemsNum / 2
		setP         = 0.1
		delP         = 0.0

		clientsNum    = 10
		totalRequests = 16 * itemsNum
	)

	ResetTestKeys()
	start := &sync.WaitGroup{}
	start.Add(clientsNum)
	finish := &sync.WaitGroup{}
	finish.Add(clientsNum)
	items := make([]*item, itemsNum)

	{
		By("Warmup cache.")
		c, err := newClient(addr)
		Expect(err).NotTo(HaveOccurred())
		for i := itemsNum - 1; i >= 0; i-- {
			it := newItem(testutil.Rand.Intn(2 * meanItemSize))
			items[i] = it
			err := c.Set(it.Key, it.Value)
			if err != nil {
				for isTemporary(err) {
					testutil.Byf("Warmup set item %v temporary err: %v", i, err)
					time.Sleep(100 * time.Millisecond)
					err = c.Set(it.Key, it.Value)
				}
				Expect(err).To(BeNil())
			}
		}
		c.Close()
		By("Warmup done.")
	}

	var requests int32
	next := func() bool { return atomic.AddInt32(&requests, 1) < totalRequests }
	itemIndex := func(r *rand.Rand) (index int) {
		index = itemsNum
		var try int
		const maxTry = 5
		for index >= itemsNum {
			index = int(math.Abs(r.NormFloat64() * indexStddev))
			try++
			if try > maxTry {
				Fail("Item index too many tries. Make stddev smaller, it should help.")
			}
		}
		return
	}

	registry := metrics.NewRegistry()
	getTimer := metrics.NewRegisteredTimer("get", registry)
	setTimer := metrics.NewRegisteredTimer("set", registry)
	delTimer := metrics.NewRegisteredTimer("del", registry)
	missCounter := metrics.NewRegisteredCounter("cache.miss", registry)
	timeoutCounter := metrics.NewRegisteredCounter("err.timeout", registry)
	temporaryCounter := metrics.NewRegisteredCounter("err.temporary", registry)

	for i := 0; i < clientsNum; i++ {
		clientNum := i
		source := rand.NewSource(testutil.Rand.Int63())
		r := rand.New(source)
		c, err := newClient(addr)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Get("no_such_key")
		Expect(err).To(Equal(ErrCacheMiss))

		go func() {
			defer GinkgoRecover()
			start.Done()
			start.Wait()
			defer func() {
				testutil.Byf("Client %v done.", clientNum)
				c.Close()
				finish.Done()
			}()
			var err error
			for next() {
				it := items[itemIndex(r)]
				p := r.Float64()
				switch {
				case p <= setP:
					setTimer.Time(func() { err = c.Set(it.Key, it.Value) })
				case p <= setP+delP:
					delTimer.Time(func() { err = c.Delete(it.Key) })
				default:
					getTimer.Time(func() { _, err = c.Get(it.Key) })
				}
				if err != nil {
					if err == ErrCacheMiss {
						missCounter.Inc(1)
						continue
					}
					if isTimeout(err) {
						testutil.Byf("Client %v timeout error: %v", clientNum, err)
						timeoutCounter.Inc(1)
						continue
					}
					if isTemporary(err) {
						testutil.Byf("Client %v temporary error: %v", clientNum, err)
						temporaryCounter.Inc(1)
						continue
					}
					testutil.Byf("Client %v error: %v", clientNum, err)
					Expect(err).To(BeNil())
				}
			}
		}()
	}

	logging := &sync.WaitGroup{}
	logging.Add(1)
	go func() {
		By("logging start")
		defer GinkgoRecover()
		tick := time.NewTicker(time.Second / 2)
		defer func() {
			tick.Stop()
			logging.Done()
		}()
		for ; ; _ = <-tick.C {
			req := atomic.LoadInt32(&requests)
			if req < totalRequests {
				fmt.Fprintf(GinkgoWriter, "%v%% requests done.\n", req*100/totalRequests)
				continue
			}
			break
		}
		By("Test stats. Time units is nanos.")
		metrics.WriteOnce(registry, GinkgoWriter)
		fmt.Fprintf(GinkgoWriter, "%.2f%% cache miss.\n",
			float64(missCounter.Count()*100)/float64(getTimer.Count()+delTimer.Count()))
		fmt.Fprintf(GinkgoWriter, "%.2f%% deletes.\n",
			float64(delTimer.Count()*100)/totalRequests)
		fmt.Fprintf(GinkgoWriter, "%.2f%% set.\n",
			float64(setTimer.Count()*100)/totalRequests)
	}()
	finish.Wait()
	By("finish done")
	logging.Wait()
	By("logging done")
}

var _ = Describe("Load", func() {
	It("survives a sustained concurrent get/set workload", func() {
		server := startServer(8<<20, 256)
		defer server.Stop(true)
		loadTest(server.Addr)
	})
})
