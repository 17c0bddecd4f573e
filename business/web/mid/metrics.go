package mid

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/blockfeed/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockfeed",
		Name:      "http_requests_total",
		Help:      "Number of requests handled, by method and status code.",
	}, []string{"method", "code"})

	metricErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfeed",
		Name:      "http_errors_total",
		Help:      "Number of requests that returned an error.",
	})

	metricPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfeed",
		Name:      "http_panics_total",
		Help:      "Number of requests that panicked.",
	})

	metricLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockfeed",
		Name:      "http_request_duration_seconds",
		Help:      "Request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// Metrics updates program counters.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Errors sits outside this middleware, so a failed request has no
			// status code yet and is counted under the error label.
			code := "error"
			if err != nil {
				metricErrors.Inc()
			}

			if v, verr := web.GetValues(ctx); verr == nil {
				if err == nil {
					code = strconv.Itoa(v.StatusCode)
				}
				metricLatency.WithLabelValues(r.Method).Observe(time.Since(v.Now).Seconds())
			}
			metricRequests.WithLabelValues(r.Method, code).Inc()

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
