package bench

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{InFlight: 1, Timeout: time.Second, Duration: time.Second}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no in-flight", mutate: func(c *Config) { c.InFlight = 0 }, wantErr: true},
		{name: "negative qps", mutate: func(c *Config) { c.Qps = -1 }, wantErr: true},
		{name: "no timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "no duration", mutate: func(c *Config) { c.Duration = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestIntervals(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Stable(10))
	assert.Zero(t, Stable(0))
	assert.Zero(t, Exponential(0))
	assert.GreaterOrEqual(t, Exponential(10), time.Duration(0))
}

func TestRun_RespectsInFlight(t *testing.T) {
	var current, peak atomic.Int32
	job := func(ctx context.Context) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	}

	s, err := Run(context.Background(), Config{
		Name:     "inflight",
		InFlight: 3,
		Timeout:  time.Second,
		Duration: 100 * time.Millisecond,
	}, job)
	require.NoError(t, err)

	assert.Greater(t, s.Requests, 3)
	assert.Zero(t, s.Errors)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, s.Percentile(0), s.Percentile(99))
}

func TestRun_RateLimited(t *testing.T) {
	var calls atomic.Int32
	s, err := Run(context.Background(), Config{
		Name:     "rate",
		InFlight: 10,
		Qps:      20,
		Timeout:  time.Second,
		Duration: 250 * time.Millisecond,
	}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	// 20 qps for a quarter second
	assert.LessOrEqual(t, s.Requests, 6)
	assert.Equal(t, int(calls.Load()), s.Requests)
}

func TestRun_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("errors", "error"))

	s, err := Run(context.Background(), Config{
		Name:     "errors",
		InFlight: 1,
		Qps:      50,
		Timeout:  time.Second,
		Duration: 100 * time.Millisecond,
	}, func(context.Context) error {
		return errors.New("unavailable")
	})
	require.NoError(t, err)

	assert.Equal(t, s.Requests, s.Errors)
	assert.Equal(t, before+float64(s.Errors), testutil.ToFloat64(requestsTotal.WithLabelValues("errors", "error")))
}

func TestRun_InvalidInput(t *testing.T) {
	_, err := Run(context.Background(), Config{InFlight: 1, Timeout: time.Second, Duration: time.Second}, nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{}, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestSummary_Empty(t *testing.T) {
	var s Summary
	assert.Zero(t, s.Percentile(50))
	assert.Zero(t, s.Rate())
}
