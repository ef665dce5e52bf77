package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	fail := func() error { return errors.New("boom") }

	for i := 0; i < 2; i++ {
		assert.Error(t, b.Execute(fail))
		assert.Equal(t, StateClosed, b.State())
	}
	assert.Error(t, b.Execute(fail))
	assert.Equal(t, StateOpen, b.State())

	// OPEN 状态直接拒绝，不再执行 fn。
	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker("test", 1, 30*time.Millisecond)
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(40 * time.Millisecond)

	// 超时后放行一次探测，成功则收回 CLOSED。
	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, 30*time.Millisecond)
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))

	time.Sleep(40 * time.Millisecond)
	assert.Error(t, b.Execute(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	require.NoError(t, b.Execute(func() error { return nil }))

	// 计数清零后需要重新累满阈值才会熔断。
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker("test", 0, 0)
	assert.Equal(t, 3, b.threshold)
	assert.Equal(t, time.Minute, b.timeout)
	assert.Equal(t, "CLOSED", b.State().String())
}
