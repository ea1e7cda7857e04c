package library

import (
	"net/http"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultIndexKey is the key-value entry holding the serialized index.
const DefaultIndexKey = "photos"

// DefaultPhotoPrefix is the URL prefix a native host serves stored photos under.
const DefaultPhotoPrefix = "/photos"

type Option func(*Library)

// WithNativeHost tells the library whether the host can read camera files
// directly and serve stored photos itself. Defaults to false.
func WithNativeHost(native bool) Option {
	return func(l *Library) {
		l.native = native
	}
}

// WithFs sets the filesystem camera paths are read from on a native host.
func WithFs(fs afero.Fs) Option {
	return func(l *Library) {
		l.fs = fs
	}
}

// WithHTTPClient sets the client used to fetch camera URIs.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Library) {
		l.client = client
	}
}

// WithClock sets the time source used to name new photos.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// WithIndexKey sets the key-value entry the index is stored under.
func WithIndexKey(key string) Option {
	return func(l *Library) {
		l.indexKey = key
	}
}

// WithResolver overrides the resolver picked from the host capability.
func WithResolver(r Resolver) Option {
	return func(l *Library) {
		l.resolver = r
	}
}

// WithProvisionalEntries keeps the provisional entry of every capture and
// prepends the finalized one next to it instead of committing in place.
// Provisional entries are never stored, so N captures show 2N entries until
// the next Load, which returns only the N finalized ones.
func WithProvisionalEntries(keep bool) Option {
	return func(l *Library) {
		l.provisional = keep
	}
}

// defaultHTTPClient fetches http, https and file URIs.
func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
	}
}
