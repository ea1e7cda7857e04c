package main

import (
	"context"
	"path"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/orca"
)

// ORCAReporter attaches the photo library's load to the trailer of every
// unary call. Figures cover the calls completed in the current window and
// are republished once more than every calls have finished:
//   - QPS: finished calls per second of window
//   - application utilization: time spent in handlers per second of window
//   - named utilization per method (List, Capture, ...): that method's share
//     of the handler time, so clients can tell capture-heavy load apart
//
// Watch streams are long-lived and stay out of the window.
type ORCAReporter struct {
	recorder orca.ServerMetricsRecorder
	every    int
	now      func() time.Time

	mu     sync.Mutex
	window callWindow
}

type callWindow struct {
	start    time.Time
	calls    int
	busy     time.Duration
	byMethod map[string]time.Duration
}

func NewORCAReporter(every int) *ORCAReporter {
	r := &ORCAReporter{
		recorder: orca.NewServerMetricsRecorder(),
		every:    every,
		now:      time.Now,
	}
	r.window = r.newWindow()
	return r
}

func (r *ORCAReporter) newWindow() callWindow {
	return callWindow{start: r.now(), byMethod: make(map[string]time.Duration)}
}

func (r *ORCAReporter) ServerMetricsProvider() orca.ServerMetricsProvider {
	return r.recorder
}

// Observe adds one finished call of method to the window.
func (r *ORCAReporter) Observe(method string, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.window.calls++
	r.window.busy += took
	r.window.byMethod[path.Base(method)] += took
	if r.window.calls > r.every {
		r.publishLocked()
	}
}

func (r *ORCAReporter) publishLocked() {
	elapsed := r.now().Sub(r.window.start)
	if elapsed <= 0 {
		return
	}

	r.recorder.SetQPS(float64(r.window.calls) / elapsed.Seconds())
	r.recorder.SetApplicationUtilization(float64(r.window.busy) / float64(elapsed))
	for method, took := range r.window.byMethod {
		share := 0.0
		if r.window.busy > 0 {
			share = float64(took) / float64(r.window.busy)
		}
		r.recorder.SetNamedUtilization(method, share)
	}

	r.window = r.newWindow()
}

func (r *ORCAReporter) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := r.now()
	defer func() { r.Observe(info.FullMethod, r.now().Sub(start)) }()
	return handler(ctx, req)
}
