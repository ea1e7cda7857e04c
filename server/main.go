package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/mhbvr/shutter/config"
	"github.com/mhbvr/shutter/rpc"
	"github.com/mhbvr/shutter/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/orca"
	"k8s.io/klog/v2"
)

var (
	host          = flag.String("host", "localhost", "Server host")
	port          = flag.Int("port", 8081, "Server port")
	metricsPort   = flag.Int("metrics-port", 8082, "Prometheus metrics port")
	orcaEnabled   = flag.Bool("orca", false, "Enable ORCA load reporting")
	orcaThreshold = flag.Int("orca-num-req-report", 10, "Update utilization after every N requests")
)

func main() {
	klog.InitFlags(nil)
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Resolve(flag.CommandLine)
	if err != nil {
		klog.Exitf("Invalid configuration: %v", err)
	}

	tracez, cleanup, err := tracing.Init("shutter-server")
	if err != nil {
		klog.Exitf("Failed to initialize tracing: %v", err)
	}
	defer cleanup()

	lib, store, err := cfg.OpenLibrary()
	if err != nil {
		klog.Exitf("Failed to open library: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = lib.Load(ctx)
	cancel()
	if err != nil {
		klog.Exitf("Failed to load photos: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", *host, *port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		klog.Exitf("Failed to listen: %v", err)
	}

	interceptors := []grpc.UnaryServerInterceptor{grpc_prometheus.UnaryServerInterceptor}
	serverOptions := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}

	if *orcaEnabled {
		reporter := NewORCAReporter(*orcaThreshold)
		serverOptions = append(serverOptions, orca.CallMetricsServerOption(reporter.ServerMetricsProvider()))
		interceptors = append(interceptors, reporter.UnaryInterceptor)
		klog.InfoS("ORCA load reporting enabled", "reportEvery", *orcaThreshold)
	}
	serverOptions = append(serverOptions, grpc.ChainUnaryInterceptor(interceptors...))

	s := grpc.NewServer(serverOptions...)
	rpc.RegisterPhotoLibraryServer(s, rpc.NewServer(lib))

	// Register Channelz service for gRPC debugging and monitoring
	service.RegisterChannelzServiceToServer(s)

	grpc_prometheus.Register(s)
	grpc_prometheus.EnableHandlingTimeHistogram()

	go func() {
		metricsAddr := fmt.Sprintf("%s:%d", *host, *metricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/tracez", tracez)
		klog.InfoS("metrics server listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			klog.Exitf("Failed to serve metrics: %v", err)
		}
	}()

	klog.InfoS("gRPC server listening", "addr", addr, "dbType", cfg.DB.Type, "db", cfg.DB.Path, "photos", len(lib.Snapshot()))
	if err := s.Serve(lis); err != nil {
		klog.Exitf("Failed to serve: %v", err)
	}
}
