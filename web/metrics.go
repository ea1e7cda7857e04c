package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shutter_web_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "handler"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shutter_web_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "handler", "code"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutter_web_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	photosServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shutter_web_photos_served_total",
			Help: "Total number of full size photos served",
		},
	)

	bytesServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shutter_web_bytes_served_total",
			Help: "Total photo and thumbnail bytes served",
		},
	)

	thumbsRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shutter_web_thumbnails_rendered_total",
			Help: "Thumbnails resized from stored photos, cache misses only",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestsInFlight)
	prometheus.MustRegister(photosServed)
	prometheus.MustRegister(bytesServed)
	prometheus.MustRegister(thumbsRendered)
}

// instrument wraps h with the request duration, count and in-flight metrics.
func instrument(name string, h http.HandlerFunc) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerDuration(
		httpRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(
			httpRequestsTotal.MustCurryWith(labels),
			promhttp.InstrumentHandlerInFlight(httpRequestsInFlight, h),
		),
	)
}
