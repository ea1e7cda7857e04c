// Package library keeps the photo index in step with the blob store.
//
// A Library owns the ordered, newest-first list of photo records. Capture
// stores a new photo, Load rebuilds the list from the key-value store and
// Delete removes a photo from both stores. Every mutation re-serializes the
// committed records under one key.
package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mhbvr/shutter"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

const photoExt = ".jpeg"

var (
	// ErrPosition is returned by Delete when the position is outside the index.
	ErrPosition = errors.New("position out of range")

	// ErrInFlight is returned by Delete for a record whose capture has not finished.
	ErrInFlight = errors.New("capture still in progress")

	tracer = otel.Tracer("library")
)

// Library maintains the photo index and keeps it consistent with the blob store.
// It is safe for concurrent use.
type Library struct {
	store    shutter.Store
	camera   shutter.Camera
	resolver Resolver

	native      bool
	provisional bool
	indexKey    string
	fs          afero.Fs
	client      *http.Client
	now         func() time.Time

	mu       sync.Mutex
	photos   []shutter.Record
	nextID   uint64
	inflight map[uint64]struct{} // IDs of pending records still being captured
	issued   map[string]struct{} // blob names handed out or loaded
	writing  map[string]struct{} // blob names of captures not committed yet
	subs     map[chan []shutter.Record]struct{}
}

// New creates a Library on top of store, capturing from cam.
func New(store shutter.Store, cam shutter.Camera, opts ...Option) *Library {
	l := &Library{
		store:    store,
		camera:   cam,
		indexKey: DefaultIndexKey,
		fs:       afero.NewOsFs(),
		now:      time.Now,
		photos:   []shutter.Record{},
		inflight: make(map[uint64]struct{}),
		issued:   make(map[string]struct{}),
		writing:  make(map[string]struct{}),
		subs:     make(map[chan []shutter.Record]struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		l.client = defaultHTTPClient()
	}
	if l.resolver == nil {
		if l.native {
			l.resolver = NativeResolver{Prefix: DefaultPhotoPrefix}
		} else {
			l.resolver = InlineResolver{Blobs: store}
		}
	}

	return l
}

// Native reports whether the library was configured for a native host.
func (l *Library) Native() bool {
	return l.native
}

// Snapshot returns a copy of the current index, newest first.
func (l *Library) Snapshot() []shutter.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.photos)
}

// Subscribe returns a channel that receives the current index and a new
// snapshot after every change. A slow reader only sees the latest snapshot.
// The channel is closed when ctx is done.
func (l *Library) Subscribe(ctx context.Context) <-chan []shutter.Record {
	ch := make(chan []shutter.Record, 1)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	ch <- slices.Clone(l.photos)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		close(ch)
		l.mu.Unlock()
	}()

	return ch
}

// publishLocked pushes the current index to every subscriber, replacing
// any snapshot the subscriber has not read yet.
func (l *Library) publishLocked() {
	indexEntries.Set(float64(len(l.photos)))

	for ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- slices.Clone(l.photos):
		default:
		}
	}
}

// persistLocked writes the committed records to the key-value store.
func (l *Library) persistLocked(ctx context.Context) error {
	value, err := shutter.EncodeIndex(l.photos)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, l.indexKey, value); err != nil {
		return fmt.Errorf("failed to store index: %w", err)
	}
	return nil
}

// readIndex returns the stored records, or shutter.ErrEmptyIndex when
// nothing has been stored yet.
func (l *Library) readIndex(ctx context.Context) ([]shutter.Record, error) {
	value, err := l.store.Get(ctx, l.indexKey)
	if errors.Is(err, shutter.ErrNotFound) {
		return nil, shutter.ErrEmptyIndex
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return shutter.DecodeIndex(value)
}

// Load replaces the in-memory index with the stored one and re-derives
// every display path. Records of captures still in flight are kept on top.
func (l *Library) Load(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "load")
	defer endSpan(span, &err)
	defer func(start time.Time) { observe("load", start, err) }(time.Now())

	records, err := l.readIndex(ctx)
	if errors.Is(err, shutter.ErrEmptyIndex) {
		records, err = []shutter.Record{}, nil
	}
	if err != nil {
		return err
	}

	for i := range records {
		display, err := l.resolver.Resolve(ctx, records[i])
		if err != nil {
			// the stored display path is still usable, and a missing blob
			// only happens when an index write failed after a delete
			klog.ErrorS(err, "failed to resolve photo", "file", records[i].FilePath)
			continue
		}
		records[i].StoredPath = records[i].DisplayPath
		records[i].DisplayPath = display
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// committed records keep their ID across loads so a running Delete
	// still finds its target
	ids := make(map[string]uint64, len(l.photos))
	var kept []shutter.Record
	for _, r := range l.photos {
		if _, ok := l.inflight[r.ID]; ok {
			kept = append(kept, r)
			continue
		}
		if r.State == shutter.Committed {
			ids[r.FilePath] = r.ID
		}
	}
	for i := range records {
		if id, ok := ids[records[i].FilePath]; ok {
			records[i].ID = id
			delete(ids, records[i].FilePath)
		} else {
			l.nextID++
			records[i].ID = l.nextID
		}
		l.issued[BlobName(records[i])] = struct{}{}
	}
	l.photos = append(kept, records...)
	l.publishLocked()

	span.SetAttributes(attribute.Int("photos.count", len(records)))
	klog.InfoS("loaded photo index", "photos", len(records))
	return nil
}

// Capture takes a photo, shows it immediately as a pending record, stores
// its bytes and commits the record. The index is written once the record is
// committed. On failure the pending record stays in memory unpersisted.
func (l *Library) Capture(ctx context.Context) (rec shutter.Record, err error) {
	ctx, span := tracer.Start(ctx, "capture")
	defer endSpan(span, &err)
	defer func(start time.Time) { observe("capture", start, err) }(time.Now())

	photo, err := l.camera.Capture(ctx, shutter.DefaultCaptureOptions())
	if err != nil {
		return shutter.Record{}, fmt.Errorf("camera capture failed: %w", err)
	}
	span.SetAttributes(attribute.String("photo.uri", photo.URI))

	pending := l.addPending(photo.URI)
	defer l.finish(pending.ID)

	data, err := l.readCaptured(ctx, photo)
	if err != nil {
		return shutter.Record{}, err
	}

	name := l.reserveName()
	defer l.release(name)

	path, err := l.store.WriteBlob(ctx, name, data)
	if err != nil {
		return shutter.Record{}, fmt.Errorf("failed to write photo %s: %w", name, err)
	}
	blobBytesWritten.Add(float64(len(data)))
	span.SetAttributes(attribute.String("photo.file", path), attribute.Int("photo.bytes", len(data)))

	rec, err = l.commit(ctx, pending.ID, shutter.Record{
		FilePath:    path,
		DisplayPath: photo.URI,
	})
	if err != nil {
		return rec, err
	}

	klog.InfoS("captured photo", "file", rec.FilePath, "bytes", len(data))
	return rec, nil
}

func (l *Library) addPending(uri string) shutter.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	rec := shutter.Record{
		FilePath:    shutter.PendingPath,
		DisplayPath: uri,
		ID:          l.nextID,
		State:       shutter.Pending,
	}
	l.inflight[rec.ID] = struct{}{}
	l.photos = slices.Insert(l.photos, 0, rec)
	l.publishLocked()
	return rec
}

func (l *Library) finish(id uint64) {
	l.mu.Lock()
	delete(l.inflight, id)
	l.mu.Unlock()
}

// commit turns the pending record into rec and writes the index.
func (l *Library) commit(ctx context.Context, pendingID uint64, rec shutter.Record) (shutter.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.photos, func(r shutter.Record) bool { return r.ID == pendingID })
	switch {
	case l.provisional || i < 0:
		l.nextID++
		rec.ID = l.nextID
		l.photos = slices.Insert(l.photos, 0, rec)
	default:
		rec.ID = pendingID
		l.photos[i] = rec
	}
	l.issued[BlobName(rec)] = struct{}{}
	l.publishLocked()

	return rec, l.persistLocked(ctx)
}

// reserveName returns a timestamp file name no other capture of this
// library has been given.
func (l *Library) reserveName() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ms := l.now().UnixMilli()
	for {
		name := strconv.FormatInt(ms, 10) + photoExt
		if _, taken := l.issued[name]; !taken {
			l.issued[name] = struct{}{}
			l.writing[name] = struct{}{}
			return name
		}
		ms++
	}
}

func (l *Library) release(name string) {
	l.mu.Lock()
	delete(l.writing, name)
	l.mu.Unlock()
}

// Delete removes the photo at position. The blob named by the last path
// segment of rec.FilePath is deleted first, then the index entry, so a
// failed blob delete never leaves an unreferenced blob behind.
func (l *Library) Delete(ctx context.Context, rec shutter.Record, position int) (err error) {
	ctx, span := tracer.Start(ctx, "delete")
	defer endSpan(span, &err)
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("photo.position", position), attribute.String("photo.file", rec.FilePath))

	l.mu.Lock()
	if position < 0 || position >= len(l.photos) {
		n := len(l.photos)
		l.mu.Unlock()
		return fmt.Errorf("delete at %d of %d: %w", position, n, ErrPosition)
	}
	target := l.photos[position]
	_, busy := l.inflight[target.ID]
	l.mu.Unlock()

	if busy {
		return fmt.Errorf("delete at %d: %w", position, ErrInFlight)
	}

	name := BlobName(rec)
	if err := l.store.DeleteBlob(ctx, name); err != nil {
		if !errors.Is(err, shutter.ErrNotFound) {
			return fmt.Errorf("failed to delete photo %s: %w", name, err)
		}
		klog.V(1).InfoS("photo already gone from blob store", "file", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// the index may have shifted while the blob was deleted
	i := position
	if i >= len(l.photos) || l.photos[i].ID != target.ID {
		i = slices.IndexFunc(l.photos, func(r shutter.Record) bool { return r.ID == target.ID })
	}
	if i < 0 && target.State == shutter.Committed {
		i = slices.IndexFunc(l.photos, func(r shutter.Record) bool {
			return r.State == shutter.Committed && r.FilePath == target.FilePath
		})
	}
	if i < 0 {
		return fmt.Errorf("photo %s left the index during delete: %w", target.FilePath, shutter.ErrNotFound)
	}

	l.photos = slices.Delete(l.photos, i, i+1)
	l.publishLocked()

	if err := l.persistLocked(ctx); err != nil {
		return err
	}

	klog.InfoS("deleted photo", "file", name, "position", position)
	return nil
}

// Blob returns the stored bytes of one photo.
func (l *Library) Blob(ctx context.Context, name string) ([]byte, error) {
	return l.store.ReadBlob(ctx, name)
}

// Orphans lists stored blobs that no committed record references.
// Blobs of captures still being written are not reported.
func (l *Library) Orphans(ctx context.Context) ([]string, error) {
	names, err := l.store.ListBlobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	referenced := make(map[string]struct{}, len(l.photos))
	for _, r := range l.photos {
		referenced[BlobName(r)] = struct{}{}
	}

	var orphans []string
	for _, name := range names {
		if _, ok := referenced[name]; ok {
			continue
		}
		if _, ok := l.writing[name]; ok {
			continue
		}
		orphans = append(orphans, name)
	}
	return orphans, nil
}

// Prune deletes every orphaned blob and returns the names it removed.
func (l *Library) Prune(ctx context.Context) ([]string, error) {
	orphans, err := l.Orphans(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range orphans {
		if err := l.store.DeleteBlob(ctx, name); err != nil && !errors.Is(err, shutter.ErrNotFound) {
			return removed, fmt.Errorf("failed to delete orphan %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
