package library

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mhbvr/shutter"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/klog/v2"
)

// ImportItem is one existing photo to add to the library.
type ImportItem struct {
	Source string // where the photo came from, for logs only
	Data   []byte
}

// Import stores a batch of photos and adds them to the top of the index
// with a single index write. Items are taken oldest first, so the last item
// becomes the newest record. If any blob write fails nothing is added to the
// index and the blobs already written are left for Prune.
func (l *Library) Import(ctx context.Context, items []ImportItem) (records []shutter.Record, err error) {
	ctx, span := tracer.Start(ctx, "import")
	defer endSpan(span, &err)
	defer func(start time.Time) { observe("import", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("photos.count", len(items)))

	names := make([]string, 0, len(items))
	defer func() {
		for _, name := range names {
			l.release(name)
		}
	}()

	var written int
	for _, item := range items {
		if len(item.Data) == 0 {
			return nil, fmt.Errorf("empty photo %s", item.Source)
		}

		name := l.reserveName()
		names = append(names, name)

		path, err := l.store.WriteBlob(ctx, name, item.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to write photo %s from %s: %w", name, item.Source, err)
		}
		written += len(item.Data)

		rec := shutter.Record{FilePath: path, State: shutter.Committed}
		display, err := l.resolver.Resolve(ctx, rec)
		if err != nil {
			return nil, err
		}
		rec.DisplayPath = display
		rec.StoredPath = path
		records = append(records, rec)

		klog.V(1).InfoS("imported photo", "source", item.Source, "file", path, "bytes", len(item.Data))
	}
	blobBytesWritten.Add(float64(written))

	slices.Reverse(records)

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range records {
		l.nextID++
		records[i].ID = l.nextID
	}
	l.photos = slices.Insert(l.photos, 0, records...)
	l.publishLocked()

	if err := l.persistLocked(ctx); err != nil {
		return records, err
	}
	return records, nil
}
