package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the pagination engine.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsonapi_stream_pages_fetched_total",
		Help: "Total pages integrated into sequences",
	})

	resourcesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsonapi_stream_resources_delivered_total",
		Help: "Total resources delivered to callers across all sequences",
	})

	fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jsonapi_stream_fetch_errors_total",
		Help: "Total page fetches or unwraps that failed a pull",
	})
)
