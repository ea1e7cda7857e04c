package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	mu       sync.Mutex
	photos   []shutter.Record
	captures int
	deleted  []int
}

func (f *fakeLibrary) Load(context.Context) error { return nil }

func (f *fakeLibrary) Capture(context.Context) (shutter.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	return shutter.Record{}, nil
}

func (f *fakeLibrary) Delete(_ context.Context, _ shutter.Record, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, position)
	f.photos = append(f.photos[:position:position], f.photos[position+1:]...)
	return nil
}

func (f *fakeLibrary) Snapshot() []shutter.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shutter.Record(nil), f.photos...)
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type fixture struct {
	lib     *fakeLibrary
	ctrl    *controller.Controller
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	photo := testJPEG(t, 64, 48)
	blobs := map[string][]byte{
		"1730000000002.jpeg": photo,
		"1730000000001.jpeg": photo,
		"1730000000000.jpeg": photo,
	}
	lib := &fakeLibrary{photos: []shutter.Record{
		{FilePath: "1730000000002.jpeg", DisplayPath: "/photos/1730000000002.jpeg"},
		{FilePath: "1730000000001.jpeg", DisplayPath: "/photos/1730000000001.jpeg"},
		{FilePath: "1730000000000.jpeg", DisplayPath: "/photos/1730000000000.jpeg"},
	}}

	ctrl := controller.New(lib)
	t.Cleanup(func() { ctrl.Close() })

	blob := func(_ context.Context, name string) ([]byte, error) {
		data, ok := blobs[name]
		if !ok {
			return nil, shutter.ErrNotFound
		}
		return data, nil
	}

	g, err := NewGallery(ctrl, blob, 32)
	require.NoError(t, err)

	return &fixture{lib: lib, ctrl: ctrl, handler: SetupServer(g, nil)}
}

func (f *fixture) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `src="/thumb/1730000000002.jpeg"`)
	assert.Contains(t, body, `action="/photos/2/delete"`)
	assert.NotContains(t, body, `action="/prompt"`)
}

func TestList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/photos", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var photos []PhotoView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &photos))
	require.Len(t, photos, 3)
	assert.Equal(t, "/photos/1730000000000.jpeg", photos[2].Src)
}

func TestCapture(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/capture", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	f.ctrl.Wait()
	assert.Equal(t, 1, f.lib.captures)

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/capture", nil).Code)
}

func TestDeleteFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/photos/0/delete", url.Values{"file": {"1730000000002.jpeg"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := f.do(http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, page, `value="Delete"`)
	assert.Contains(t, page, `value="Cancel"`)
	assert.Contains(t, page, `data-icon="trash"`)

	rec = f.do(http.MethodPost, "/prompt", url.Values{"option": {"Delete"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	f.ctrl.Wait()

	assert.Equal(t, []int{0}, f.lib.deleted)
	assert.Len(t, f.lib.Snapshot(), 2)
	_, shown := f.ctrl.Prompt()
	assert.False(t, shown)
}

func TestDeleteCancelled(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodPost, "/photos/1/delete", nil)
	rec := f.do(http.MethodPost, "/prompt", url.Values{"option": {"Cancel"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	f.ctrl.Wait()

	assert.Empty(t, f.lib.deleted)
	assert.Len(t, f.lib.Snapshot(), 3)
}

func TestDeleteErrors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/photos/7/delete", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/photos/x/delete", nil).Code)
	assert.Equal(t, http.StatusConflict,
		f.do(http.MethodPost, "/photos/0/delete", url.Values{"file": {"other.jpeg"}}).Code)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/prompt", url.Values{"option": {"Delete"}}).Code)

	f.do(http.MethodPost, "/photos/0/delete", nil)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/prompt", url.Values{"option": {"Share"}}).Code)
}

func TestPhoto(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/photos/1730000000001.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/photos/missing.jpeg", nil).Code)
}

func TestThumb(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/thumb/1730000000000.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cfg, err := jpeg.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 24, cfg.Height)

	// served from the cache the second time
	again := f.do(http.MethodGet, "/thumb/1730000000000.jpeg", nil)
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/", nil)

	rec := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutter_web_http_requests_total")
}

func TestViews(t *testing.T) {
	photos, busy := views([]shutter.Record{
		{FilePath: "1.jpeg", DisplayPath: "file:///inbox/a.jpg"},
		{FilePath: shutter.PendingPath, DisplayPath: "file:///inbox/a.jpg", State: shutter.Pending},
	})
	assert.False(t, busy)
	assert.True(t, photos[1].Pending)
	assert.Empty(t, photos[1].Src)

	_, busy = views([]shutter.Record{
		{FilePath: shutter.PendingPath, DisplayPath: "file:///inbox/b.jpg", State: shutter.Pending},
	})
	assert.True(t, busy)
}
