package client

import (
	"sync"
	"time"

	"http-exchange/lib/ds/queue"
	"http-exchange/transport"

	"github.com/benbjohnson/clock"
)

// connPool keeps idle connections per address.
type connPool struct {
	idle map[transport.Addr]*queue.NaiveQueue[*conn]
	mu   sync.Mutex

	idleTimeout    time.Duration
	maxIdlePerHost uint
	clock          clock.Clock
}

func newConnPool(idleTimeout time.Duration, maxIdlePerHost uint, clock clock.Clock) *connPool {
	return &connPool{
		idle:           make(map[transport.Addr]*queue.NaiveQueue[*conn]),
		idleTimeout:    idleTimeout,
		maxIdlePerHost: maxIdlePerHost,
		clock:          clock,
	}
}

// get takes an idle connection to addr out of the pool.
// Connections past the idle timeout are closed on the way.
func (pool *connPool) get(addr transport.Addr) (*conn, bool) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	idle, ok := pool.idle[addr]
	if !ok {
		return nil, false
	}

	pool.evictLocked(idle)

	c, err := idle.Dequeue()
	if idle.Len() == 0 {
		delete(pool.idle, addr)
	}
	if err != nil {
		return nil, false
	}

	c.idleAt = time.Time{}
	c.reused = true
	return c, true
}

// put offers c for reuse. It reports false when the pool is full,
// in which case the caller still owns c.
func (pool *connPool) put(c *conn) bool {
	if pool.maxIdlePerHost == 0 {
		return false
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	idle, ok := pool.idle[c.addr]
	if !ok {
		idle = queue.NewNaive[*conn](pool.maxIdlePerHost)
		pool.idle[c.addr] = idle
	}

	pool.evictLocked(idle)
	if idle.Len() >= pool.maxIdlePerHost {
		return false
	}

	c.idleAt = pool.clock.Now()
	idle.Enqueue(c)
	return true
}

func (pool *connPool) evictLocked(idle *queue.NaiveQueue[*conn]) {
	idle.Filter(
		func(c *conn) bool { return !c.idleTimeoutExceeded(pool.idleTimeout) },
		func(c *conn) { c.close() },
	)
}

func (pool *connPool) idleLen(addr transport.Addr) uint {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if idle, ok := pool.idle[addr]; ok {
		return idle.Len()
	}
	return 0
}

// closeIdle closes every pooled connection.
func (pool *connPool) closeIdle() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	for addr, idle := range pool.idle {
		idle.Filter(func(*conn) bool { return false }, func(c *conn) { c.close() })
		delete(pool.idle, addr)
	}
}
