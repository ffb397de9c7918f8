package concurrency

import (
	"sync"
	"time"
)

type state int

const (
	stateRunning state = iota
	stateStopping
	stateStopped
)

// Executor is a worker pool that keeps lowWatermark goroutines alive
// at all times, grows up to highWatermark under load, and queues
// overflow work up to maxQueueSize before Submit starts refusing new
// tasks. A goroutine started above lowWatermark that sits idle for
// longer than idleTimeout retires itself.
type Executor struct {
	mu   sync.Mutex
	wake chan struct{}

	tasks []func()
	state state

	lowWatermark  int
	highWatermark int
	maxQueueSize  int
	idleTimeout   time.Duration

	active int
	free   int

	allStopped chan struct{}
}

// New creates an Executor and immediately starts lowWatermark worker
// goroutines. highWatermark bounds the total number of goroutines the
// pool will ever run concurrently; maxQueueSize bounds how many
// submitted-but-not-yet-running tasks may wait at once.
func New(lowWatermark, highWatermark, maxQueueSize int, idleTimeout time.Duration) *Executor {
	e := &Executor{
		wake:          make(chan struct{}),
		lowWatermark:  lowWatermark,
		highWatermark: highWatermark,
		maxQueueSize:  maxQueueSize,
		idleTimeout:   idleTimeout,
		allStopped:    make(chan struct{}),
	}
	for i := 0; i < lowWatermark; i++ {
		e.free++
		go e.worker()
	}
	return e
}

// Submit enqueues task for execution by some worker goroutine. It
// returns false without running task when the executor is stopping
// or stopped, or when the queue is already at maxQueueSize.
func (e *Executor) Submit(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRunning {
		return false
	}
	if len(e.tasks) >= e.maxQueueSize {
		return false
	}
	e.tasks = append(e.tasks, task)
	if e.free == 0 && e.active+e.free < e.highWatermark {
		e.free++
		go e.worker()
	}
	e.broadcastLocked()
	return true
}

// Stop transitions the executor out of service. No task submitted
// after Stop returns will ever run; tasks already queued still drain.
// When await is true, Stop blocks until every worker goroutine has
// exited.
func (e *Executor) Stop(await bool) {
	e.mu.Lock()
	if e.state == stateStopped {
		e.mu.Unlock()
		return
	}
	e.state = stateStopping
	e.broadcastLocked()
	e.checkDrainedLocked()
	done := e.allStopped
	e.mu.Unlock()

	if await {
		<-done
	}
}

func (e *Executor) broadcastLocked() {
	close(e.wake)
	e.wake = make(chan struct{})
}

// checkDrainedLocked closes allStopped and finalizes state once the
// pool has stopped accepting work and every worker has gone idle and
// exited. Must be called with mu held.
func (e *Executor) checkDrainedLocked() {
	if e.state != stateStopping {
		return
	}
	if len(e.tasks) != 0 || e.active+e.free != 0 {
		return
	}
	select {
	case <-e.allStopped:
	default:
		close(e.allStopped)
	}
	e.state = stateStopped
}

func (e *Executor) worker() {
	for {
		e.mu.Lock()
		for len(e.tasks) == 0 && e.state == stateRunning {
			core := e.active+e.free <= e.lowWatermark
			wake := e.wake
			if core {
				e.mu.Unlock()
				<-wake
				e.mu.Lock()
				continue
			}
			e.mu.Unlock()
			select {
			case <-wake:
				e.mu.Lock()
			case <-time.After(e.idleTimeout):
				e.mu.Lock()
				if len(e.tasks) == 0 && e.state == stateRunning && e.active+e.free > e.lowWatermark {
					e.free--
					e.checkDrainedLocked()
					e.mu.Unlock()
					return
				}
			}
		}

		if len(e.tasks) == 0 {
			// Stopping (or stopped) with nothing left to drain.
			e.free--
			e.checkDrainedLocked()
			e.mu.Unlock()
			return
		}

		n := len(e.tasks) - 1
		task := e.tasks[n]
		e.tasks = e.tasks[:n]
		e.free--
		e.active++
		e.mu.Unlock()

		task()

		e.mu.Lock()
		e.active--
		e.free++
		e.checkDrainedLocked()
		e.mu.Unlock()
	}
}
