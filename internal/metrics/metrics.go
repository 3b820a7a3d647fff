package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reviews"

// Recorder owns the service's collectors. A nil *Recorder records nothing.
type Recorder struct {
	votesCast       *prometheus.CounterVec
	voteConflicts   prometheus.Counter
	operations      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDurations   *prometheus.HistogramVec
	httpInFlight    prometheus.Gauge
	ledgerDriftSeen prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		votesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Votes committed to the ledger, by value",
		}, []string{"value"}),
		voteConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_conflicts_total",
			Help:      "Vote transactions rolled back by a concurrent vote from the same voter",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Review service operations by outcome kind",
		}, []string{"operation", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		}),
		ledgerDriftSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_drift_repaired_total",
			Help:      "Recounts that found counters out of step with the ledger",
		}),
	}
}

func (r *Recorder) VoteCast(value int) {
	if r == nil {
		return
	}
	r.votesCast.WithLabelValues(strconv.Itoa(value)).Inc()
}

func (r *Recorder) VoteConflict() {
	if r == nil {
		return
	}
	r.voteConflicts.Inc()
}

func (r *Recorder) Operation(operation, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) LedgerDrift() {
	if r == nil {
		return
	}
	r.ledgerDriftSeen.Inc()
}

// WatchDroppedLogs exports dropped, a running count of log lines the remote
// sink discarded, as a counter read at scrape time.
func WatchDroppedLogs(reg prometheus.Registerer, dropped func() uint64) prometheus.CounterFunc {
	return promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "log_lines_dropped_total",
		Help:      "Log lines discarded because the Logstash sink was unavailable",
	}, func() float64 {
		return float64(dropped())
	})
}

// Middleware records request counts and latency keyed by the echo route pattern.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r == nil {
				return next(c)
			}
			start := time.Now()
			r.httpInFlight.Inc()
			defer r.httpInFlight.Dec()

			err := next(c)
			if err != nil && !c.Response().Committed {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			r.httpRequests.WithLabelValues(method, path, status).Inc()
			r.httpDurations.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
