package debounce

import (
	"sync"
	"time"
)

type Options[T any] struct {
	Interval time.Duration
	OnFlush  func(key string, value T)
}

// Coalescer collects values per key and hands only the latest one to
// OnFlush, at most once per interval. The first Add for an idle key starts
// the interval; later Adds within it replace the pending value.
type Coalescer[T any] struct {
	mu       sync.Mutex
	interval time.Duration
	onFlush  func(string, T)
	pending  map[string]*pendingValue[T]
	inflight map[string]chan struct{}
}

type pendingValue[T any] struct {
	value T
	timer *time.Timer
}

func New[T any](opts Options[T]) *Coalescer[T] {
	interval := opts.Interval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}

	return &Coalescer[T]{
		interval: interval,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingValue[T]),
		inflight: make(map[string]chan struct{}),
	}
}

func (c *Coalescer[T]) Add(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pv, ok := c.pending[key]
	if ok {
		pv.value = value
		return
	}

	pv = &pendingValue[T]{value: value}
	pv.timer = time.AfterFunc(c.interval, func() {
		c.flush(key, pv)
	})
	c.pending[key] = pv
}

// Flush delivers the pending value for key now, if any.
func (c *Coalescer[T]) Flush(key string) {
	c.mu.Lock()
	pv, ok := c.pending[key]
	c.mu.Unlock()
	if ok {
		c.flush(key, pv)
	}
}

// Cancel drops the pending value for key without delivering it. If OnFlush
// is running for key, Cancel waits for it to return. OnFlush must not call
// Cancel for its own key.
func (c *Coalescer[T]) Cancel(key string) {
	c.mu.Lock()
	if pv, ok := c.pending[key]; ok {
		pv.timer.Stop()
		delete(c.pending, key)
	}
	running := c.inflight[key]
	c.mu.Unlock()

	if running != nil {
		<-running
	}
}

func (c *Coalescer[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coalescer[T]) flush(key string, pv *pendingValue[T]) {
	c.mu.Lock()
	if cur, ok := c.pending[key]; !ok || cur != pv {
		c.mu.Unlock()
		return
	}
	pv.timer.Stop()
	delete(c.pending, key)
	value := pv.value
	onFlush := c.onFlush
	done := make(chan struct{})
	c.inflight[key] = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.inflight[key] == done {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
		close(done)
	}()

	if onFlush != nil {
		onFlush(key, value)
	}
}
