package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mhbvr/shutter"
	"github.com/mhbvr/shutter/controller"
	"github.com/mhbvr/shutter/library"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// BlobFunc reads one stored photo by name.
type BlobFunc func(ctx context.Context, name string) ([]byte, error)

type Gallery struct {
	ctrl       *controller.Controller
	blob       BlobFunc
	templates  *template.Template
	tracer     oteltrace.Tracer
	thumbs     *thumbCache
	thumbWidth int
}

type PageData struct {
	Title string
	Error string
}

type PhotoView struct {
	Position int
	FilePath string
	Display  string
	Src      string
	Thumb    string
	Pending  bool
}

type GalleryPageData struct {
	PageData
	Photos []PhotoView
	Prompt *controller.Prompt
	Busy   bool
}

func NewGallery(ctrl *controller.Controller, blob BlobFunc, thumbWidth int) (*Gallery, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Gallery{
		ctrl:       ctrl,
		blob:       blob,
		templates:  templates,
		tracer:     otel.Tracer("web"),
		thumbs:     newThumbCache(),
		thumbWidth: thumbWidth,
	}, nil
}

// views turns the index into what the page renders. Stored photos are
// always served by this host, pending ones show their capture reference.
// A pending photo whose capture reference has no stored photo yet keeps
// the page refreshing.
func views(photos []shutter.Record) ([]PhotoView, bool) {
	stored := make(map[string]bool, len(photos))
	for _, p := range photos {
		if p.State == shutter.Committed && p.FilePath != shutter.PendingPath {
			stored[p.Stored()] = true
		}
	}

	out := make([]PhotoView, 0, len(photos))
	busy := false
	for i, p := range photos {
		v := PhotoView{
			Position: i,
			FilePath: p.FilePath,
			Display:  p.DisplayPath,
			Pending:  p.State == shutter.Pending || p.FilePath == shutter.PendingPath,
		}
		if v.Pending {
			busy = busy || !stored[p.DisplayPath]
		} else {
			name := library.BlobName(p)
			v.Src = "/photos/" + name
			v.Thumb = "/thumb/" + name
		}
		out = append(out, v)
	}
	return out, busy
}

func (g *Gallery) render(w http.ResponseWriter, status int, data GalleryPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := g.templates.ExecuteTemplate(w, "gallery.html", data); err != nil {
		klog.ErrorS(err, "failed to render gallery")
	}
}

func (g *Gallery) page(errMsg string) GalleryPageData {
	photos, busy := views(g.ctrl.Photos())
	data := GalleryPageData{
		PageData: PageData{Title: controller.PromptHeader, Error: errMsg},
		Photos:   photos,
		Busy:     busy,
	}
	if p, ok := g.ctrl.Prompt(); ok {
		data.Prompt = &p
	}
	return data
}

func (g *Gallery) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, span := g.tracer.Start(r.Context(), "gallery")
	defer span.End()

	data := g.page("")
	span.SetAttributes(attribute.Int("photos.count", len(data.Photos)))
	g.render(w, http.StatusOK, data)
}

// handleList returns the index as JSON.
func (g *Gallery) handleList(w http.ResponseWriter, r *http.Request) {
	photos, _ := views(g.ctrl.Photos())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(photos); err != nil {
		klog.ErrorS(err, "failed to encode photo list")
	}
}

func (g *Gallery) handleCapture(w http.ResponseWriter, r *http.Request) {
	g.ctrl.Capture()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDelete shows the confirmation prompt for one photo. The optional
// file form value guards against a page rendered from an older index.
func (g *Gallery) handleDelete(w http.ResponseWriter, r *http.Request) {
	_, span := g.tracer.Start(r.Context(), "request_delete")
	defer span.End()

	position, err := strconv.Atoi(r.PathValue("position"))
	photos := g.ctrl.Photos()
	if err != nil || position < 0 || position >= len(photos) {
		g.render(w, http.StatusBadRequest, g.page("No photo at position "+r.PathValue("position")))
		return
	}

	rec := photos[position]
	if file := r.FormValue("file"); file != "" && file != rec.FilePath {
		g.render(w, http.StatusConflict, g.page("The gallery changed, please try again"))
		return
	}

	span.SetAttributes(attribute.Int("photo.position", position), attribute.String("photo.file", rec.FilePath))
	g.ctrl.RequestDelete(rec, position)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (g *Gallery) handlePrompt(w http.ResponseWriter, r *http.Request) {
	option := r.FormValue("option")
	if p, ok := g.ctrl.Prompt(); ok && option == controller.OptionDelete {
		g.thumbs.drop(library.BlobName(p.Record))
	}

	err := g.ctrl.Choose(option)
	switch {
	case errors.Is(err, controller.ErrNoPrompt):
		g.render(w, http.StatusConflict, g.page("Nothing to confirm"))
		return
	case errors.Is(err, controller.ErrUnknownOption):
		g.render(w, http.StatusBadRequest, g.page("Unknown option "+option))
		return
	case err != nil:
		g.render(w, http.StatusInternalServerError, g.page(err.Error()))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (g *Gallery) readBlob(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	name := r.PathValue("name")
	if !validName(name) {
		http.Error(w, "Invalid photo name", http.StatusBadRequest)
		return "", nil, false
	}

	data, err := g.blob(r.Context(), name)
	switch {
	case errors.Is(err, shutter.ErrNotFound):
		http.Error(w, "Photo not found", http.StatusNotFound)
		return "", nil, false
	case err != nil:
		klog.ErrorS(err, "failed to read photo", "name", name)
		http.Error(w, "Failed to read photo", http.StatusInternalServerError)
		return "", nil, false
	}
	return name, data, true
}

func (g *Gallery) handlePhoto(w http.ResponseWriter, r *http.Request) {
	_, span := g.tracer.Start(r.Context(), "serve_photo")
	defer span.End()

	name, data, ok := g.readBlob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	n, err := w.Write(data)
	if err != nil {
		span.RecordError(err)
		return
	}

	photosServed.Inc()
	bytesServed.Add(float64(n))
	span.SetAttributes(attribute.String("photo.name", name), attribute.Int("bytes.served", n))
}

func (g *Gallery) handleThumb(w http.ResponseWriter, r *http.Request) {
	_, span := g.tracer.Start(r.Context(), "serve_thumbnail")
	defer span.End()

	thumb, ok := g.thumbs.get(r.PathValue("name"))
	if !ok {
		name, data, ok := g.readBlob(w, r)
		if !ok {
			return
		}
		var err error
		if thumb, err = thumbnail(data, g.thumbWidth); err != nil {
			span.RecordError(err)
			klog.ErrorS(err, "failed to render thumbnail", "name", name)
			http.Error(w, "Failed to render thumbnail", http.StatusUnprocessableEntity)
			return
		}
		g.thumbs.put(name, thumb)
		thumbsRendered.Inc()
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb)))
	n, _ := w.Write(thumb)
	bytesServed.Add(float64(n))
}

// SetupServer wires the gallery routes with metrics, tracing and logging.
func SetupServer(g *Gallery, tracez http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", instrument("gallery", g.handleIndex))
	mux.Handle("GET /api/photos", instrument("list", g.handleList))
	mux.Handle("POST /capture", instrument("capture", g.handleCapture))
	mux.Handle("POST /photos/{position}/delete", instrument("delete", g.handleDelete))
	mux.Handle("POST /prompt", instrument("prompt", g.handlePrompt))
	mux.Handle("GET /photos/{name}", instrument("photo", g.handlePhoto))
	mux.Handle("GET /thumb/{name}", instrument("thumbnail", g.handleThumb))
	mux.Handle("GET /metrics", promhttp.Handler())
	if tracez != nil {
		mux.Handle("GET /tracez", tracez)
	}

	return loggingMiddleware(otelhttp.NewHandler(mux, "request"))
}
