package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/mhbvr/shutter/config"
	"github.com/mhbvr/shutter/controller"
	"github.com/mhbvr/shutter/rpc"
	"github.com/mhbvr/shutter/tracing"
	"k8s.io/klog/v2"
)

var (
	addr       = flag.String("addr", ":8080", "Address to listen on")
	serverAddr = flag.String("server", "", "gRPC server address; empty opens the library locally")
	thumbWidth = flag.Int("thumb-width", 320, "Thumbnail width in pixels")
)

func main() {
	klog.InitFlags(nil)
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	tracez, cleanup, err := tracing.Init("shutter-web")
	if err != nil {
		klog.Exitf("Failed to initialize tracing: %v", err)
	}
	defer cleanup()

	var (
		lib  controller.Library
		blob BlobFunc
	)

	if *serverAddr != "" {
		client, err := rpc.Dial(*serverAddr)
		if err != nil {
			klog.Exitf("Failed to connect: %v", err)
		}
		defer client.Close()

		updates, err := client.Watch(context.Background())
		if err != nil {
			klog.Exitf("Failed to watch %s: %v", *serverAddr, err)
		}
		go func() {
			for range updates {
			}
		}()

		lib = client
		blob = func(ctx context.Context, name string) ([]byte, error) {
			data, _, err := client.Blob(ctx, name)
			return data, err
		}
		klog.InfoS("using remote library", "server", *serverAddr)
	} else {
		cfg, err := flags.Resolve(flag.CommandLine)
		if err != nil {
			klog.Exitf("Invalid configuration: %v", err)
		}
		local, store, err := cfg.OpenLibrary()
		if err != nil {
			klog.Exitf("Failed to open library: %v", err)
		}
		defer store.Close()

		lib = local
		blob = local.Blob
		klog.InfoS("using local library", "db", cfg.DB.Path, "dbType", cfg.DB.Type, "camera", cfg.Camera.Type)
	}

	ctrl := controller.New(lib)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = ctrl.Activate(ctx)
	cancel()
	if err != nil {
		klog.Exitf("Failed to load photos: %v", err)
	}

	gallery, err := NewGallery(ctrl, blob, *thumbWidth)
	if err != nil {
		klog.Exitf("Failed to parse templates: %v", err)
	}

	klog.InfoS("starting web gallery", "addr", *addr)
	klog.Info("Endpoints:")
	for _, e := range []string{
		"GET / - Gallery",
		"GET /api/photos - Photo index as JSON",
		"POST /capture - Take a photo",
		"POST /photos/{position}/delete - Ask to delete a photo",
		"POST /prompt - Answer the delete prompt",
		"GET /photos/{name} - Stored photo",
		"GET /thumb/{name} - Thumbnail",
		"GET /metrics - Prometheus metrics",
		"GET /tracez - OpenTelemetry trace debugging",
	} {
		klog.Infof("  %s", e)
	}

	if err := http.ListenAndServe(*addr, SetupServer(gallery, tracez)); err != nil {
		klog.Exitf("Server failed: %v", err)
	}
}
