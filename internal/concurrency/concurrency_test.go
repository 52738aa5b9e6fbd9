package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncLoop(t *testing.T) {
	t.Run("blocks and cools down between signals", func(t *testing.T) {
		signal := make(chan struct{}, 2)
		defer close(signal)

		signal <- struct{}{}
		signal <- struct{}{}

		output := make(chan struct{})
		go SyncLoop(signal, time.Hour, time.Second, func() bool {
			output <- struct{}{}
			return true
		})

		start := time.Now()
		<-output
		<-output
		assert.GreaterOrEqual(t, time.Since(start), time.Millisecond*90)
	})

	t.Run("resync", func(t *testing.T) {
		output := make(chan struct{})
		go SyncLoop(make(<-chan struct{}), time.Millisecond, time.Second, func() bool {
			output <- struct{}{}
			return true
		})

		<-output
		<-output
	})

	t.Run("retries", func(t *testing.T) {
		// maxRetry caps every sleep at 25ms, so one retry interval and two
		// retry intervals are distinguishable well beyond the 5% jitter
		output := make(chan struct{})
		go SyncLoop(make(<-chan struct{}), time.Millisecond, time.Millisecond*25, func() bool {
			output <- struct{}{}
			return false
		})

		<-output

		start := time.Now()
		<-output
		latencyA := time.Since(start)

		start = time.Now()
		<-output
		<-output
		latencyB := time.Since(start)

		assert.Greater(t, latencyB, latencyA)
	})

	t.Run("signal close with resync enabled", func(t *testing.T) {
		signal := make(chan struct{})
		returned := make(chan struct{})
		go func() {
			SyncLoop(signal, time.Millisecond*5, time.Second, func() bool { return true })
			close(returned)
		}()

		time.Sleep(time.Millisecond * 20) // let resync ticks flow
		close(signal)
		<-returned
	})
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Millisecond*50, nextBackoff(0, time.Second))
	assert.Greater(t, nextBackoff(time.Millisecond*100, time.Second), time.Millisecond*100)
	assert.Equal(t, time.Second, nextBackoff(time.Second*10, time.Second))

	// the cap applies to the first step too
	assert.Equal(t, time.Millisecond*25, nextBackoff(0, time.Millisecond*25))
}

func TestCell(t *testing.T) {
	c := &Cell[int]{}
	assert.Equal(t, 0, c.Get())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := c.Watch(ctx)

	c.Swap(123)
	<-watcher
	assert.Equal(t, 123, c.Get())

	c.Bump()
	<-watcher
	assert.Equal(t, 123, c.Get())
}

func TestCellWatchCancel(t *testing.T) {
	c := &Cell[string]{}

	ctx, cancel := context.WithCancel(context.Background())
	watcher := c.Watch(ctx)
	cancel()

	// channel is eventually closed once the context is done
	for range watcher {
	}
}
