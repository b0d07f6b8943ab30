package inflight

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Acquire(t *testing.T) {
	g := NewGuard()

	release, err := g.Acquire("a@b.c:attendance")
	require.NoError(t, err)

	_, err = g.Acquire("a@b.c:attendance")
	assert.Equal(t, ErrBusy, err)

	// other keys are independent
	releaseOther, err := g.Acquire("a@b.c:scores")
	require.NoError(t, err)
	releaseOther()

	release()
	release() // idempotent

	release, err = g.Acquire("a@b.c:attendance")
	require.NoError(t, err)
	release()
}

func TestGuard_Do_concurrent(t *testing.T) {
	g := NewGuard()
	start := make(chan struct{})
	hold := make(chan struct{})
	var ran, busy int32
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Do("key", func() error {
			close(start)
			<-hold
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}()
	<-start

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Do("key", func() error { atomic.AddInt32(&ran, 1); return nil }); err == ErrBusy {
				atomic.AddInt32(&busy, 1)
			}
		}()
	}
	for atomic.LoadInt32(&busy) < 10 {
		// wait for every duplicate to be rejected
		runtime.Gosched()
	}
	close(hold)
	wg.Wait()

	assert.Equal(t, int32(1), ran)
	assert.Equal(t, int32(10), busy)
}
