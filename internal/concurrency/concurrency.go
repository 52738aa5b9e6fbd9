package concurrency

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"
)

// Cell holds a value that can be swapped atomically and watched for changes.
// Watchers are signaled at-least-once per change but signals may coalesce.
type Cell[T any] struct {
	mut      sync.Mutex
	value    T
	nextID   int
	watchers map[int]chan struct{}
}

func (c *Cell[T]) Get() T {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.value
}

func (c *Cell[T]) Swap(val T) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.value = val
	c.notifyLocked()
}

// Bump signals watchers without changing the value.
func (c *Cell[T]) Bump() {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.notifyLocked()
}

func (c *Cell[T]) notifyLocked() {
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel that receives after every change until ctx is done,
// at which point it is closed.
func (c *Cell[T]) Watch(ctx context.Context) <-chan struct{} {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.watchers == nil {
		c.watchers = map[int]chan struct{}{}
	}

	id := c.nextID
	c.nextID++

	ch := make(chan struct{}, 1)
	c.watchers[id] = ch

	go func() {
		<-ctx.Done()
		c.mut.Lock()
		defer c.mut.Unlock()
		delete(c.watchers, id)
		close(ch)
	}()

	return ch
}

// SyncLoop invokes fn when signal fires and on a jittered resync interval
// (when resync > 0), retrying with capped exponential backoff until fn
// reports success. It returns when signal is closed.
func SyncLoop(signal <-chan struct{}, resync, maxRetry time.Duration, fn func() bool) {
	var (
		pending = make(chan struct{}, 1)
		quit    = make(chan struct{})
	)
	pending <- struct{}{} // initial sync

	go func() {
		for range signal {
			select {
			case pending <- struct{}{}:
			default:
			}
		}
		close(quit)
	}()

	if resync > 0 {
		go func() {
			for {
				time.Sleep(Jitter(resync))
				select {
				case <-quit:
					return
				case pending <- struct{}{}:
				default:
				}
			}
		}()
	}

	for {
		select {
		case <-quit:
			return
		case <-pending:
		}

		for delay := time.Duration(0); !fn(); {
			delay = nextBackoff(delay, maxRetry)
			time.Sleep(Jitter(delay))
		}
		time.Sleep(Jitter(time.Millisecond * 100)) // cooldown
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	if current == 0 {
		current = time.Millisecond * 50
	} else {
		current += current / 8
	}
	if current > max {
		return max
	}
	return current
}

// Jitter spreads a duration by +/- 5% to avoid thundering herds.
func Jitter(duration time.Duration) time.Duration {
	maxJitter := int64(duration) * int64(5) / 100
	if maxJitter == 0 {
		return duration
	}
	return duration + time.Duration(mathrand.Int63n(maxJitter*2)-maxJitter)
}
