package library

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mhbvr/shutter"
)

// Resolver turns a stored record into a reference a UI can render.
type Resolver interface {
	Resolve(ctx context.Context, rec shutter.Record) (string, error)
}

// NativeResolver points at the host's own photo serving endpoint.
type NativeResolver struct {
	Prefix string
}

func (r NativeResolver) Resolve(_ context.Context, rec shutter.Record) (string, error) {
	return strings.TrimSuffix(r.Prefix, "/") + "/" + url.PathEscape(BlobName(rec)), nil
}

// InlineResolver embeds the photo bytes into a data URI so the UI needs no
// further host calls.
type InlineResolver struct {
	Blobs shutter.BlobStore
}

func (r InlineResolver) Resolve(ctx context.Context, rec shutter.Record) (string, error) {
	data, err := r.Blobs.ReadBlob(ctx, BlobName(rec))
	if err != nil {
		return "", fmt.Errorf("failed to read photo %s: %w", rec.FilePath, err)
	}
	return DataURI(data), nil
}

// DataURI encodes data as a base64 data URI with its detected media type.
func DataURI(data []byte) string {
	mime := mimetype.Detect(data).String()
	// drop parameters such as "; charset=utf-8"
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BlobName is the trailing path segment of the record's file path.
func BlobName(rec shutter.Record) string {
	return path.Base(rec.FilePath)
}
