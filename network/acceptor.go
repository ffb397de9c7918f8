package network

import (
	"net"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/irtery/afina/log"
	"github.com/irtery/afina/metrics"
	"github.com/irtery/afina/recycle"
	"github.com/irtery/afina/storage"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = 1 * time.Second
)

// Acceptor runs the blocking one-goroutine-per-connection model: every
// accepted connection gets its own goroutine for its entire lifetime,
// admission-controlled by maxWorkers. Two separately-locked sets track
// live connections: "live" (counted against maxWorkers) and "finished"
// (connections whose goroutine has already returned but whose id
// hasn't yet been removed from live). Reaping finished ids always
// locks live before finished, never the other way around — taking
// them in the opposite order can deadlock against a goroutine that is
// simultaneously reporting itself finished while a fresh accept is
// admitting a new connection.
type Acceptor struct {
	listener    net.Listener
	maxWorkers  int
	pool        *recycle.Pool
	cache       *storage.Locked
	log         log.Logger
	readTimeout time.Duration
	metrics     *metrics.Server

	liveMu sync.Mutex
	live   map[uint64]struct{}
	nextID uint64

	finishedMu sync.Mutex
	finished   []uint64

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAcceptor wires new connections up with the default idle read
// timeout. Use NewAcceptorTimeout to override it (e.g. to disable it
// in tests).
func NewAcceptor(listener net.Listener, maxWorkers int, pool *recycle.Pool, cache *storage.Locked, logger log.Logger) *Acceptor {
	return NewAcceptorTimeout(listener, maxWorkers, pool, cache, logger, DefaultReadTimeout)
}

func NewAcceptorTimeout(listener net.Listener, maxWorkers int, pool *recycle.Pool, cache *storage.Locked, logger log.Logger, readTimeout time.Duration) *Acceptor {
	return NewAcceptorFull(listener, maxWorkers, pool, cache, logger, readTimeout, nil)
}

// NewAcceptorFull is NewAcceptorTimeout with an optional metrics.Server;
// a nil server disables metrics recording entirely (used by tests that
// don't care about it).
func NewAcceptorFull(listener net.Listener, maxWorkers int, pool *recycle.Pool, cache *storage.Locked, logger log.Logger, readTimeout time.Duration, m *metrics.Server) *Acceptor {
	return &Acceptor{
		listener:    listener,
		maxWorkers:  maxWorkers,
		pool:        pool,
		cache:       cache,
		log:         logger,
		readTimeout: readTimeout,
		metrics:     m,
		live:        make(map[uint64]struct{}),
		closing:     make(chan struct{}),
	}
}

// Run accepts connections until Stop is called or the listener
// reports a non-transient error. It never returns while the acceptor
// is healthy and running.
func (a *Acceptor) Run() error {
	backoff := minAcceptBackoff
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.closing:
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				a.log.Warnf("accept: transient error: %v, retrying in %v", err, backoff)
				time.Sleep(backoff)
				backoff *= 2
				if backoff > maxAcceptBackoff {
					backoff = maxAcceptBackoff
				}
				continue
			}
			return stackerr.Wrap(err)
		}
		backoff = minAcceptBackoff

		if !a.admit(conn) {
			conn.Close()
		}
	}
}

// admit reaps finished connections, then — if there is room under
// maxWorkers — registers and starts conn's serving goroutine. The
// comparison is strict: a count equal to maxWorkers is already full,
// not one below it.
func (a *Acceptor) admit(conn net.Conn) bool {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()

	a.reapFinishedLocked()

	if len(a.live) >= a.maxWorkers {
		if a.metrics != nil {
			a.metrics.RejectedConns.Inc(1)
		}
		return false
	}

	id := a.nextID
	a.nextID++
	a.live[id] = struct{}{}

	if a.metrics != nil {
		a.metrics.ActiveConns.Inc(1)
	}
	a.wg.Add(1)
	go a.serve(id, conn)
	return true
}

// reapFinishedLocked must be called with liveMu held.
func (a *Acceptor) reapFinishedLocked() {
	a.finishedMu.Lock()
	for _, id := range a.finished {
		delete(a.live, id)
	}
	a.finished = a.finished[:0]
	a.finishedMu.Unlock()
}

func (a *Acceptor) serve(id uint64, conn net.Conn) {
	start := time.Now()
	defer a.wg.Done()
	connLog := a.log.WithFields(log.Fields{"conn": id})
	NewConnFull(conn, a.pool, a.cache, connLog, a.readTimeout, a.metrics).Serve()

	if a.metrics != nil {
		a.metrics.ActiveConns.Dec(1)
		a.metrics.ConnLifetime.Update(time.Since(start))
	}

	a.finishedMu.Lock()
	a.finished = append(a.finished, id)
	a.finishedMu.Unlock()
}

// Stop closes the listener so Run's Accept loop unwinds. When await is
// true, Stop blocks until every in-flight connection goroutine has
// returned.
func (a *Acceptor) Stop(await bool) {
	a.closeOnce.Do(func() {
		close(a.closing)
		a.listener.Close()
	})
	if await {
		a.wg.Wait()
	}
}
