package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"msgmon/internal/config"
)

func TestLimiters_Allow(t *testing.T) {
	l := NewLimiters(RateLimitConfig{RPS: 0.001, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute})

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, remaining := l.Allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	ok, _ = l.Allow("10.0.0.1")
	assert.False(t, ok)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "clients are limited independently")
	assert.Equal(t, 2, l.Len())
}

func TestLimiters_Cleanup(t *testing.T) {
	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiters(RateLimitConfig{RPS: 1, Burst: 1, CleanupInterval: time.Minute, MaxAge: time.Minute})
	l.now = func() time.Time { return current }

	l.Allow("old")
	current = current.Add(50 * time.Second)
	l.Allow("recent")
	current = current.Add(20 * time.Second)

	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.Len())
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name string
		in   config.RateLimitConfig
		want RateLimitConfig
	}{
		{"defaults", config.RateLimitConfig{}, DefaultConfig()},
		{
			"overrides",
			config.RateLimitConfig{RPS: 5, Burst: 7, CleanupInterval: 30, MaxAge: 60},
			RateLimitConfig{RPS: 5, Burst: 7, CleanupInterval: 30 * time.Second, MaxAge: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromConfig(tt.in))
		})
	}
}
