package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, 1)
	require.Equal(t, "CLOSED", b.State())

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, "CLOSED", b.State())

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, "OPEN", b.State())
	assert.False(t, b.Allow())
}

func TestCircuitBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 1)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, "OPEN", b.State())
	require.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, "HALF_OPEN", b.State())
	// a second caller must not get an additional probe slot
	assert.False(t, b.Allow())
}

func TestCircuitBreakerRecoversOnProbeSuccess(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 1)
	require.True(t, b.Allow())
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, "CLOSED", b.State())
	assert.True(t, b.Allow())
}

func TestCircuitBreakerReopensOnFailedProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 1)
	require.True(t, b.Allow())
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, "OPEN", b.State())
}
