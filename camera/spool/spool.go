// Package spool implements a camera that waits for frames dropped into an
// inbox directory, the way tethered capture software delivers them.
package spool

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mhbvr/shutter"
	"k8s.io/klog/v2"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// taken as a complete frame.
const DefaultSettle = 250 * time.Millisecond

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Camera hands out the next image file written to its inbox.
type Camera struct {
	dir    string
	settle time.Duration
}

// New returns a camera watching dir. A non-positive settle uses DefaultSettle.
func New(dir string, settle time.Duration) (*Camera, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid inbox %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", abs)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Camera{dir: abs, settle: settle}, nil
}

// Dir returns the watched inbox.
func (c *Camera) Dir() string {
	return c.dir
}

// Capture blocks until a new image file appears in the inbox and has
// stopped changing, or ctx is done. Files present before the call are ignored.
func (c *Camera) Capture(ctx context.Context, opts shutter.CaptureOptions) (shutter.Photo, error) {
	if opts.Source != shutter.SourceCamera {
		return shutter.Photo{}, fmt.Errorf("unsupported source %v", opts.Source)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return shutter.Photo{}, fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return shutter.Photo{}, fmt.Errorf("watch %s: %w", c.dir, err)
	}
	klog.V(1).InfoS("waiting for frame", "inbox", c.dir)

	var candidate string
	settled := time.NewTimer(c.settle)
	settled.Stop()
	defer settled.Stop()

	for {
		select {
		case <-ctx.Done():
			return shutter.Photo{}, ctx.Err()

		case event, ok := <-w.Events:
			if !ok {
				return shutter.Photo{}, errors.New("watcher closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !imageExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			candidate = event.Name
			settled.Reset(c.settle)

		case err, ok := <-w.Errors:
			if !ok {
				return shutter.Photo{}, errors.New("watcher closed")
			}
			return shutter.Photo{}, fmt.Errorf("watch %s: %w", c.dir, err)

		case <-settled.C:
			klog.InfoS("frame arrived", "path", candidate)
			return photoAt(candidate), nil
		}
	}
}

func photoAt(path string) shutter.Photo {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return shutter.Photo{URI: u.String(), Path: path}
}
