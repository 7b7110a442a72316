// Package metrics exposes server counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powquote"

// Solution results.
const (
	ResultValid          = "valid"
	ResultInvalid        = "invalid"
	ResultUnknownSession = "unknown_session"
)

// Connection error classes.
const (
	ClassTransport = "transport"
	ClassMemLimit  = "memlimit"
	ClassDecode    = "decode"
	ClassProtocol  = "protocol"
)

// Collectors groups every metric the server updates. The zero value is not
// usable; a nil *Collectors disables recording.
type Collectors struct {
	registry *prometheus.Registry

	ChallengesIssued prometheus.Counter
	Solutions        *prometheus.CounterVec
	Connections      prometheus.Counter
	ConnectionErrors *prometheus.CounterVec
	ActiveConns      prometheus.Gauge
	SolveSeconds     prometheus.Histogram
}

// New registers a fresh set of collectors on their own registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		ChallengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Challenges sent in response to requests.",
		}),
		Solutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solutions_total",
			Help:      "Solutions received, by verification result.",
		}, []string{"result"}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted connections.",
		}),
		ConnectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Connections terminated by an error, by class.",
		}, []string{"class"}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently being served.",
		}),
		SolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_seconds",
			Help:      "Time between issuing a challenge and receiving a valid solution.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	c.registry.MustRegister(
		c.ChallengesIssued,
		c.Solutions,
		c.Connections,
		c.ConnectionErrors,
		c.ActiveConns,
		c.SolveSeconds,
	)
	return c
}

func (c *Collectors) Challenge() {
	if c == nil {
		return
	}
	c.ChallengesIssued.Inc()
}

func (c *Collectors) Solution(result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Solutions.WithLabelValues(result).Inc()
	if result == ResultValid {
		c.SolveSeconds.Observe(elapsed.Seconds())
	}
}

// ConnOpened records an accepted connection and returns the matching close
// hook.
func (c *Collectors) ConnOpened() func() {
	if c == nil {
		return func() {}
	}
	c.Connections.Inc()
	c.ActiveConns.Inc()
	return c.ActiveConns.Dec
}

func (c *Collectors) ConnError(class string) {
	if c == nil {
		return
	}
	c.ConnectionErrors.WithLabelValues(class).Inc()
}

// Gatherer exposes the registry for tests and custom handlers.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Router serves /metrics and a trivial /healthz.
func (c *Collectors) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics endpoint on addr until ctx is done.
func (c *Collectors) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
