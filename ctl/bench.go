package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/bench"
	"github.com/mhbvr/shutter/library"
	"github.com/mhbvr/shutter/rpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	benchAddr        string
	benchJob         string
	benchQps         float64
	benchInFlight    int
	benchTimeout     time.Duration
	benchDuration    time.Duration
	benchInterval    string
	benchMetricsPort int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark a running photo server",
	Long: `Bench sends List or GetBlob requests to a photo server at a target rate
and reports latency percentiles and throughput when done.

Examples:
  # List the index at 50 qps for 30 seconds
  ctl bench --addr localhost:8081 --job list --qps 50 --duration 30s

  # Fetch random photos as fast as 8 concurrent requests allow
  ctl bench --job blob --inflight 8 --qps 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchAddr, "addr", "localhost:8081", "Server address")
	benchCmd.Flags().StringVar(&benchJob, "job", "list", "Request to send: list or blob")
	benchCmd.Flags().Float64Var(&benchQps, "qps", 10, "Target requests per second (0 = unlimited)")
	benchCmd.Flags().IntVar(&benchInFlight, "inflight", 4, "Maximum concurrent requests")
	benchCmd.Flags().DurationVar(&benchTimeout, "timeout", 5*time.Second, "Per request timeout")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 30*time.Second, "Benchmark duration")
	benchCmd.Flags().StringVar(&benchInterval, "interval", "stable", "Request spacing: stable or exponential")
	benchCmd.Flags().IntVar(&benchMetricsPort, "metrics-port", 0, "Serve benchmark metrics on this port while running (0 = off)")

	rootCmd.AddCommand(benchCmd)
}

func intervalFunc(name string) (bench.IntervalFunc, error) {
	switch name {
	case "stable":
		return bench.Stable, nil
	case "exponential":
		return bench.Exponential, nil
	default:
		return nil, fmt.Errorf("unknown interval %q (must be stable or exponential)", name)
	}
}

// benchJobFor builds the request the benchmark repeats.
func benchJobFor(ctx context.Context, client *rpc.Client, name string) (bench.Job, error) {
	switch name {
	case "list":
		return func(ctx context.Context) error {
			_, err := client.List(ctx)
			return err
		}, nil
	case "blob":
		records, err := client.List(ctx)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, r := range records {
			if r.State == shutter.Committed {
				names = append(names, library.BlobName(r))
			}
		}
		if len(names) == 0 {
			return nil, errors.New("server has no photos to fetch")
		}
		return func(ctx context.Context) error {
			_, _, err := client.Blob(ctx, names[rand.Intn(len(names))])
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown job %q (must be list or blob)", name)
	}
}

func runBench(ctx context.Context, out io.Writer) error {
	interval, err := intervalFunc(benchInterval)
	if err != nil {
		return err
	}

	client, err := rpc.Dial(benchAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	job, err := benchJobFor(ctx, client, benchJob)
	if err != nil {
		return err
	}

	if benchMetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: fmt.Sprintf(":%d", benchMetricsPort), Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.ErrorS(err, "metrics server failed")
			}
		}()
		defer srv.Close()
	}

	s, err := bench.Run(ctx, bench.Config{
		Name:     benchJob,
		InFlight: benchInFlight,
		Qps:      benchQps,
		Interval: interval,
		Timeout:  benchTimeout,
		Duration: benchDuration,
	}, job)
	if err != nil {
		return err
	}

	printSummary(out, s)
	return nil
}

func printSummary(out io.Writer, s bench.Summary) {
	fmt.Fprintf(out, "Requests:   %d (%d errors)\n", s.Requests, s.Errors)
	fmt.Fprintf(out, "Elapsed:    %v\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Throughput: %.1f req/s\n", s.Rate())
	fmt.Fprintf(out, "Latency:    p50 %v  p95 %v  p99 %v\n",
		s.Percentile(50).Round(time.Microsecond),
		s.Percentile(95).Round(time.Microsecond),
		s.Percentile(99).Round(time.Microsecond))
}
