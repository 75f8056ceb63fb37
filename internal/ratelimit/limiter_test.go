package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BurstThenReject(t *testing.T) {
	l := NewPerMinute(10, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("user-1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("user-1"))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := NewPerMinute(1, 1)

	assert.True(t, l.Allow("user-1"))
	assert.False(t, l.Allow("user-1"))
	assert.True(t, l.Allow("user-2"))
}

func TestAllow_ConcurrentCallersShareBucket(t *testing.T) {
	l := NewPerMinute(1, 5)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("user-1") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), allowed.Load())
}

func TestNewPerMinute_ClampsInvalidSettings(t *testing.T) {
	l := NewPerMinute(0, 0)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}
