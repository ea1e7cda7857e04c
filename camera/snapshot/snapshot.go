// Package snapshot implements a camera that pulls a still frame from an HTTP
// snapshot endpoint, such as the one most IP cameras expose, and stores it
// as a JPEG in a spool directory.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mhbvr/shutter"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"k8s.io/klog/v2"
)

// maxFrameBytes bounds a fetched frame.
const maxFrameBytes = 32 << 20

// Config configures a snapshot camera.
type Config struct {
	// URL of the snapshot endpoint.
	URL string
	// SpoolDir receives the normalized frames.
	SpoolDir string
	// MaxWidth downscales wider frames. Zero keeps the original size.
	MaxWidth int
	// Timeout bounds one fetch. Zero means no timeout.
	Timeout time.Duration
}

// Camera fetches frames over HTTP.
type Camera struct {
	cfg    Config
	fs     afero.Fs
	client *http.Client
	seq    atomic.Uint64
}

// New returns a camera writing frames to cfg.SpoolDir on the host file system.
func New(cfg Config) (*Camera, error) {
	return NewWithFs(cfg, afero.NewOsFs(), nil)
}

// NewWithFs is New with an explicit file system and HTTP client. A nil
// client gets an instrumented default.
func NewWithFs(cfg Config, fs afero.Fs, client *http.Client) (*Camera, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("snapshot URL must be http or https, got %q", cfg.URL)
	}
	if cfg.SpoolDir == "" {
		return nil, fmt.Errorf("spool directory must be set")
	}
	if err := fs.MkdirAll(cfg.SpoolDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Camera{cfg: cfg, fs: fs, client: client}, nil
}

// Capture fetches one frame, re-encodes it at opts.Quality and writes it to
// the spool directory.
func (c *Camera) Capture(ctx context.Context, opts shutter.CaptureOptions) (shutter.Photo, error) {
	if opts.Source != shutter.SourceCamera {
		return shutter.Photo{}, fmt.Errorf("unsupported source %v", opts.Source)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	raw, err := c.fetch(ctx)
	if err != nil {
		return shutter.Photo{}, err
	}

	frame, err := Normalize(raw, c.cfg.MaxWidth, opts.Quality)
	if err != nil {
		return shutter.Photo{}, err
	}

	name := filepath.Join(c.cfg.SpoolDir, "frame-"+strconv.FormatUint(c.seq.Add(1), 10)+"-"+
		strconv.FormatInt(time.Now().UnixNano(), 36)+".jpg")
	if err := afero.WriteFile(c.fs, name, frame, 0644); err != nil {
		return shutter.Photo{}, fmt.Errorf("failed to spool frame: %w", err)
	}

	klog.V(1).InfoS("spooled frame", "path", name, "bytes", len(frame))
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(name)}
	return shutter.Photo{URI: u.String(), Path: name}, nil
}

func (c *Camera) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) > maxFrameBytes {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", maxFrameBytes)
	}
	return data, nil
}
