package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aep/oairepo/oai"
	"github.com/aep/oairepo/token"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Global registry so it can be accessed from middleware
var promRegistry *prometheus.Registry

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	oaiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oai_requests_total",
			Help: "Total number of OAI-PMH requests by verb",
		},
		[]string{"verb"},
	)

	oaiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oai_errors_total",
			Help: "Total number of OAI-PMH protocol errors by code",
		},
		[]string{"code"},
	)

	tokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oai_resumption_tokens_issued_total",
			Help: "Total number of resumption tokens issued",
		},
		[]string{"verb"},
	)

	tokensPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oai_resumption_tokens_purged_total",
			Help: "Total number of expired resumption tokens deleted",
		},
	)
)

func init() {
	promRegistry = prometheus.NewRegistry()

	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())

	promRegistry.MustRegister(httpRequestsTotal)
	promRegistry.MustRegister(httpRequestDuration)
	promRegistry.MustRegister(oaiRequestsTotal)
	promRegistry.MustRegister(oaiErrorsTotal)
	promRegistry.MustRegister(tokensIssuedTotal)
	promRegistry.MustRegister(tokensPurgedTotal)
}

func observeResponse(resp *oai.Response) {
	verb := string(resp.Verb())
	if verb == "" {
		verb = "none"
	}
	oaiRequestsTotal.WithLabelValues(verb).Inc()
	for _, e := range resp.Errors() {
		oaiErrorsTotal.WithLabelValues(string(e.Code)).Inc()
	}
}

// meteredTokens counts issued and purged tokens.
type meteredTokens struct {
	*token.Store
}

func (m meteredTokens) Create(ctx context.Context, p token.Params, ttl time.Duration) (*token.Token, error) {
	tok, err := m.Store.Create(ctx, p, ttl)
	if err == nil {
		tokensIssuedTotal.WithLabelValues(p.Verb).Inc()
	}
	return tok, err
}

func (m meteredTokens) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := m.Store.PurgeExpired(ctx, now)
	tokensPurgedTotal.Add(float64(n))
	return n, err
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.kv.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "kv: %v", err)
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "store: %v", err)
		return
	}
	w.Write([]byte("OK"))
}

func (s *server) statsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	return mux
}

func (s *server) statsd(addr string) {
	healthServer := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(s.statsMux(), "stats"),
	}

	err := healthServer.ListenAndServe()
	panic(err)
}

// PrometheusMiddleware records HTTP request metrics
func PrometheusMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		duration := time.Since(start).Seconds()
		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}
		method := c.Request().Method
		path := c.Path()

		httpRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
		httpRequestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration)

		return err
	}
}
