package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLive(t *testing.T) {
	s := NewService("1.2.3", nil)
	live := s.Live()
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, "1.2.3", live.Version)
	assert.NotEmpty(t, live.Uptime)
	assert.False(t, live.Timestamp.IsZero())
}

func TestCheck(t *testing.T) {
	var calls atomic.Int32
	failing := CheckerFunc(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("connection refused")
	})
	s := NewService("1.0.0", map[string]Checker{
		"cache":   failing,
		"maxmind": nil,
		"ok":      CheckerFunc(func(ctx context.Context) error { return nil }),
	})

	status := s.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Services["cache"].Status)
	assert.Equal(t, "connection refused", status.Services["cache"].Error)
	assert.Equal(t, StatusDisabled, status.Services["maxmind"].Status)
	assert.Equal(t, StatusHealthy, status.Services["ok"].Status)
	assert.Positive(t, status.System.GoroutineCount)

	// memoized
	s.Check(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheck_AllHealthy(t *testing.T) {
	s := NewService("1.0.0", map[string]Checker{
		"cache": CheckerFunc(func(ctx context.Context) error { return nil }),
	})
	assert.Equal(t, StatusHealthy, s.Check(context.Background()).Status)
}
