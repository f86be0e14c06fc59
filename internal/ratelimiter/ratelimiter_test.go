package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
		wantBurst         int
		wantUnlimited     bool
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200, wantBurst: 200},
		{name: "default burst", requestsPerSecond: 50, burst: 0, wantBurst: 50},
		{name: "unlimited", requestsPerSecond: 0, burst: 0, wantUnlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			require.NotNil(t, limiter)
			assert.Equal(t, tt.wantUnlimited, limiter.Unlimited())
			if !tt.wantUnlimited {
				assert.Equal(t, tt.wantBurst, limiter.Burst())
			}
		})
	}
}

func TestAllowExhaustsBurst(t *testing.T) {
	limiter := New(10, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "request %d should fit in the burst", i)
	}
	assert.False(t, limiter.Allow(), "bucket should be empty")
}

func TestUnlimitedNeverBlocks(t *testing.T) {
	limiter := New(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, limiter.Wait(ctx))
}
