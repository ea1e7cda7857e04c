// Package bench drives a photo service with a steady stream of requests
// and records their latency.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("bench")

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shutter_bench_requests_total",
			Help: "Total number of requests sent by the benchmark",
		},
		[]string{"job", "status"},
	)

	requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "shutter_bench_request_duration_seconds",
			Help: "Request latency in seconds",
			Buckets: []float64{
				0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		[]string{"job", "status"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestLatency)
}

// Job is one request against the service.
type Job func(ctx context.Context) error

// IntervalFunc returns the pause before the next request for a target rate.
type IntervalFunc func(qps float64) time.Duration

// Stable spaces requests evenly.
func Stable(qps float64) time.Duration {
	if qps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / qps)
}

// Exponential spaces requests like a Poisson process.
func Exponential(qps float64) time.Duration {
	if qps <= 0 {
		return 0
	}
	return time.Duration(rand.ExpFloat64() / qps * float64(time.Second))
}

type Config struct {
	Name     string
	InFlight int           // concurrent requests allowed
	Qps      float64       // zero sends as fast as InFlight allows
	Interval IntervalFunc  // defaults to Stable
	Timeout  time.Duration // per request
	Duration time.Duration // total run time
}

func (c Config) Validate() error {
	switch {
	case c.InFlight < 1:
		return fmt.Errorf("in-flight must be at least 1, got %d", c.InFlight)
	case c.Qps < 0:
		return fmt.Errorf("qps must not be negative, got %v", c.Qps)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	case c.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	return nil
}

// Summary describes a finished run.
type Summary struct {
	Requests  int
	Errors    int
	Elapsed   time.Duration
	latencies []time.Duration
}

// Percentile returns the p-th latency percentile, p in [0, 100].
func (s Summary) Percentile(p float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	i := int(float64(len(s.latencies)-1) * p / 100)
	return s.latencies[min(max(i, 0), len(s.latencies)-1)]
}

// Rate is the achieved requests per second.
func (s Summary) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Elapsed.Seconds()
}

// Run sends job according to cfg until cfg.Duration has passed or ctx is
// done, then waits for outstanding requests.
func Run(ctx context.Context, cfg Config, job Job) (Summary, error) {
	if job == nil {
		return Summary{}, errors.New("job must be set")
	}
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	if cfg.Interval == nil {
		cfg.Interval = Stable
	}

	ctx, span := tracer.Start(ctx, "bench_run", trace.WithAttributes(
		attribute.String("job", cfg.Name),
		attribute.Float64("qps", cfg.Qps),
		attribute.Int("inflight", cfg.InFlight),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	klog.InfoS("starting benchmark", "job", cfg.Name, "qps", cfg.Qps, "inflight", cfg.InFlight, "duration", cfg.Duration)

	tokens := make(chan struct{}, cfg.InFlight)
	for i := 0; i < cfg.InFlight; i++ {
		tokens <- struct{}{}
	}

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)
	record := func(d time.Duration, err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		requestsTotal.WithLabelValues(cfg.Name, status).Inc()
		requestLatency.WithLabelValues(cfg.Name, status).Observe(d.Seconds())

		mu.Lock()
		defer mu.Unlock()
		summary.Requests++
		if err != nil {
			summary.Errors++
			klog.V(1).InfoS("request failed", "job", cfg.Name, "err", err)
		}
		summary.latencies = append(summary.latencies, d)
	}

	start := time.Now()
loop:
	for {
		if cfg.Qps > 0 {
			select {
			case <-ctx.Done():
				break loop
			case <-time.After(cfg.Interval(cfg.Qps)):
			}
		}

		select {
		case <-ctx.Done():
			break loop
		case <-tokens:
		}

		wg.Go(func() {
			defer func() { tokens <- struct{}{} }()

			jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
			defer cancel()

			t := time.Now()
			err := job(jobCtx)
			record(time.Since(t), err)
		})
	}
	wg.Wait()

	summary.Elapsed = time.Since(start)
	slices.Sort(summary.latencies)

	span.SetAttributes(attribute.Int("requests", summary.Requests), attribute.Int("errors", summary.Errors))
	if summary.Errors > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d requests failed", summary.Errors, summary.Requests))
	}
	return summary, nil
}
