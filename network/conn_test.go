package network

import (
	"bufio"
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/irtery/afina/log"
	"github.com/irtery/afina/metrics"
	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

var _ = Describe("Conn", func() {
	var cache *storage.Locked
	var pool *recycle.Pool
	var server, client net.Conn

	BeforeEach(func() {
		cache = storage.NewLocked(storage.New(1 << 20))
		pool = recycle.NewPool()
		server, client = net.Pipe()
	})

	serveInBackground := func() {
		go NewConn(server, pool, cache, log.NewLogger(log.ErrorLevel, GinkgoWriter)).Serve()
	}

	It("handles two pipelined commands arriving in a single write", func() {
		serveInBackground()
		go client.Write([]byte("set a 1\r\nx\r\nset b 1\r\ny\r\n"))

		reader := bufio.NewReader(client)
		line, err := reader.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal("STORED\r\n"))
		line, err = reader.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal("STORED\r\n"))
	})

	It("closes the connection after an unrecognized command", func() {
		serveInBackground()
		go client.Write([]byte("bogus\r\n"))

		reader := bufio.NewReader(client)
		line, err := reader.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(HavePrefix("CLIENT_ERROR"))

		buf := make([]byte, 1)
		_, err = client.Read(buf)
		Expect(err).To(HaveOccurred())
	})

	It("counts cache hits and misses against the supplied metrics server", func() {
		stats := metrics.New()
		go NewConnFull(server, pool, cache, log.NewLogger(log.ErrorLevel, GinkgoWriter), 0, stats).Serve()

		go client.Write([]byte("set a 1\r\nx\r\n"))
		reader := bufio.NewReader(client)
		line, _ := reader.ReadString('\n')
		Expect(line).To(Equal("STORED\r\n"))

		go client.Write([]byte("get a missing\r\n"))
		for i := 0; i < 4; i++ {
			line, err := reader.ReadString('\n')
			Expect(err).NotTo(HaveOccurred())
			if line == "END\r\n" {
				break
			}
		}

		// The Get's counters are recorded once Execute returns, which is
		// after END has already been written to the client.
		Eventually(func() int64 { return stats.CacheHits.Count() }).Should(BeEquivalentTo(1))
		Eventually(func() int64 { return stats.CacheMisses.Count() }).Should(BeEquivalentTo(1))
		Eventually(func() int64 { return stats.GetLatency.Count() }).Should(BeEquivalentTo(1))
		Expect(stats.WriteLatency.Count()).To(BeEquivalentTo(1))
	})
})
