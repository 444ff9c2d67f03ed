// Package metrics exposes checkout and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kasirpos"

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	salesCreated     *prometheus.CounterVec
	saleFailures     *prometheus.CounterVec
	saleCancellation prometheus.Counter
	itemsSold        prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		salesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_created_total",
			Help:      "Completed checkouts by payment method.",
		}, []string{"payment_method"}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_failures_total",
			Help:      "Rejected or failed checkouts by reason.",
		}, []string{"reason"}),
		saleCancellation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_cancellations_total",
			Help:      "Completed sales cancelled with stock restored.",
		}),
		itemsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_sold_total",
			Help:      "Units sold across all completed checkouts.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.salesCreated,
		r.saleFailures,
		r.saleCancellation,
		r.itemsSold,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Recorder) SaleCreated(paymentMethod string, items int) {
	if r == nil {
		return
	}
	r.salesCreated.WithLabelValues(paymentMethod).Inc()
	r.itemsSold.Add(float64(items))
}

func (r *Recorder) SaleFailed(reason string) {
	if r == nil {
		return
	}
	r.saleFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) SaleCancelled() {
	if r == nil {
		return
	}
	r.saleCancellation.Inc()
}

func (r *Recorder) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
