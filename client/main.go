package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	v3orcapb "github.com/cncf/xds/go/xds/data/orca/v3"
	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"k8s.io/klog/v2"
)

var (
	list        = flag.Bool("list", false, "List the photo index")
	capture     = flag.Bool("capture", false, "Take a photo")
	deleteAt    = flag.Int("delete", -1, "Delete the photo at this position")
	get         = flag.String("get", "", "Fetch the stored photo with this file name")
	outputFile  = flag.String("output", "", "Output file for photo data")
	serverAddr  = flag.String("addr", "localhost:8081", "Server address")
	showMetrics = flag.Bool("show-metrics", false, "Show ORCA metrics from trailers")
	timeout     = flag.Duration("timeout", 10*time.Second, "Request timeout")
)

const ORCAMetadataKey = "endpoint-load-metrics-bin"

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	client, err := rpc.Dial(*serverAddr)
	if err != nil {
		klog.Exitf("Failed to connect: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *list:
		err = listPhotos(ctx, client, os.Stdout)
	case *capture:
		err = capturePhoto(ctx, client, os.Stdout)
	case *deleteAt >= 0:
		err = deletePhoto(ctx, client, *deleteAt, os.Stdout)
	case *get != "":
		err = getPhoto(ctx, client, *get, *outputFile, os.Stdout)
	default:
		flag.Usage()
		return
	}
	if err != nil {
		klog.Exitf("%v", err)
	}
}

// ORCAReports decodes the load reports a server attached to a trailer.
func ORCAReports(trailer metadata.MD) ([]*v3orcapb.OrcaLoadReport, error) {
	var reports []*v3orcapb.OrcaLoadReport
	for _, v := range trailer.Get(ORCAMetadataKey) {
		report := &v3orcapb.OrcaLoadReport{}
		if err := proto.Unmarshal([]byte(v), report); err != nil {
			return reports, fmt.Errorf("failed to unmarshal load report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func printORCAMetrics(out io.Writer, trailer metadata.MD) {
	if !*showMetrics {
		return
	}
	reports, err := ORCAReports(trailer)
	if err != nil {
		klog.ErrorS(err, "bad ORCA trailer")
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "No ORCA metrics")
	}
	for _, r := range reports {
		fmt.Fprintf(out, "ORCA report: cpu=%.3f qps=%.2f app=%.3f\n",
			r.GetCpuUtilization(), r.GetRpsFractional(), r.GetApplicationUtilization())
	}
}

func printRecords(out io.Writer, records []shutter.Record) {
	for i, r := range records {
		fmt.Fprintf(out, "%3d  %-9s  %s\n", i, r.State, r.FilePath)
	}
	fmt.Fprintf(out, "%d photos\n", len(records))
}

func listPhotos(ctx context.Context, client *rpc.Client, out io.Writer) error {
	var trailer metadata.MD
	records, err := client.List(ctx, grpc.Trailer(&trailer))
	if err != nil {
		return fmt.Errorf("List failed: %w", err)
	}
	printRecords(out, records)
	printORCAMetrics(out, trailer)
	return nil
}

func capturePhoto(ctx context.Context, client *rpc.Client, out io.Writer) error {
	rec, err := client.Capture(ctx)
	if err != nil {
		return fmt.Errorf("Capture failed: %w", err)
	}
	fmt.Fprintf(out, "Captured %s\n", rec.FilePath)
	return nil
}

func deletePhoto(ctx context.Context, client *rpc.Client, position int, out io.Writer) error {
	records, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("List failed: %w", err)
	}
	if position >= len(records) {
		return fmt.Errorf("no photo at position %d, the index holds %d", position, len(records))
	}

	if err := client.Delete(ctx, records[position], position); err != nil {
		return fmt.Errorf("Delete failed: %w", err)
	}
	fmt.Fprintf(out, "Deleted %s\n", records[position].FilePath)
	return nil
}

func getPhoto(ctx context.Context, client *rpc.Client, name, output string, out io.Writer) error {
	var trailer metadata.MD
	data, mediaType, err := client.Blob(ctx, name, grpc.Trailer(&trailer))
	if err != nil {
		return fmt.Errorf("GetBlob failed: %w", err)
	}

	if output != "" {
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Fprintf(out, "Photo saved to %s (%d bytes, %s)\n", output, len(data), mediaType)
	} else {
		fmt.Fprintf(out, "Photo %s: %d bytes, %s\n", name, len(data), mediaType)
	}

	printORCAMetrics(out, trailer)
	return nil
}
