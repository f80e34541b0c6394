package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_resolutions_total",
			Help:      "Booking payload resolutions by source (navigation, persisted, fallback, absent).",
		},
		[]string{"source"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking lifecycle events by type.",
		},
		[]string{"type"},
	)

	calendarExports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_exports_total",
			Help:      "Calendar documents handed out for download.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, resolutions, bookingEvents, calendarExports)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncResolution counts a payload resolution.
func IncResolution(source string) {
	resolutions.WithLabelValues(source).Inc()
}

// IncBookingEvent counts a published booking event.
func IncBookingEvent(eventType string) {
	bookingEvents.WithLabelValues(eventType).Inc()
}

// IncCalendarExport counts a calendar download.
func IncCalendarExport() {
	calendarExports.Inc()
}
