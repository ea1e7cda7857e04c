package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mhbvr/shutter"
	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

// maxPhotoBytes bounds a single captured image.
const maxPhotoBytes = 64 << 20

// readCaptured returns the bytes of a freshly captured photo. A native host
// reads the file the camera reported; anything else fetches the URI.
func (l *Library) readCaptured(ctx context.Context, photo shutter.Photo) ([]byte, error) {
	if l.native && photo.Path != "" {
		klog.V(1).InfoS("reading captured photo from path", "path", photo.Path)
		data, err := afero.ReadFile(l.fs, photo.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", photo.Path, err)
		}
		return data, nil
	}

	if photo.URI == "" {
		return nil, fmt.Errorf("camera returned neither a path nor a URI")
	}

	klog.V(1).InfoS("fetching captured photo", "uri", photo.URI)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo.URI, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid photo URI %q: %w", photo.URI, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", photo.URI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", photo.URI, resp.Status)
	}

	return decode(ctx, resp.Body)
}

type decodeResult struct {
	data []byte
	err  error
}

// decode reads an image body in the background and hands the result back
// on a channel. The caller waits until the decode finishes or ctx is done.
func decode(ctx context.Context, body io.Reader) ([]byte, error) {
	done := make(chan decodeResult, 1)

	go func() {
		data, err := io.ReadAll(io.LimitReader(body, maxPhotoBytes+1))
		switch {
		case err != nil:
			err = fmt.Errorf("failed to read photo body: %w", err)
		case len(data) > maxPhotoBytes:
			err = fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
		case !strings.HasPrefix(mimetype.Detect(data).String(), "image/"):
			err = fmt.Errorf("fetched content is %s, not an image", mimetype.Detect(data))
		}
		done <- decodeResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.data, nil
	}
}
