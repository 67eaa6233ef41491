package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	month := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "retention:month:30-71234567-9:21:true:202603", Key("30-71234567-9", "21", true, month))
	assert.Equal(t, "retention:month:30-71234567-9:21:false:202603", Key("30-71234567-9", "21", false, month))
}

func TestInMemoryMonthlyLock(t *testing.T) {
	t.Run("serializes holders of the same key", func(t *testing.T) {
		l := NewInMemoryMonthlyLock()

		var mu sync.Mutex
		inCritical := 0
		maxInCritical := 0

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := l.Acquire(context.Background(), "same-key")
				require.NoError(t, err)
				defer release()

				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxInCritical)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		l := NewInMemoryMonthlyLock()

		releaseA, err := l.Acquire(context.Background(), "key-a")
		require.NoError(t, err)
		defer releaseA()

		done := make(chan struct{})
		go func() {
			releaseB, err := l.Acquire(context.Background(), "key-b")
			assert.NoError(t, err)
			releaseB()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("acquiring an unrelated key blocked")
		}
	})
}
