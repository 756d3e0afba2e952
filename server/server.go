// Package server implements the OpenID Authentication 2.0 Provider
// protocol engine: the HTTP-mounted request handler that multiplexes
// discovery, association, authentication-assertion, and verification
// flows, plus the Attribute Exchange 1.0 fetch extension.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/codeaholics/skylith/assoc"
	"github.com/codeaholics/skylith/nonce"
)

// Config configures a Server.
type Config struct {
	// ProviderEndpoint is this OP's absolute, externally reachable URL --
	// the single path the engine is mounted at. Required.
	ProviderEndpoint string

	// CheckAuth authenticates end users for checkid_setup/checkid_immediate
	// requests. Required.
	CheckAuth AuthHandler

	// AssociationStore backs association handles. Defaults to an
	// in-memory store.
	AssociationStore assoc.Store
	// NonceStore backs response nonces. Defaults to an in-memory store.
	NonceStore nonce.Store

	// AssociationExpiry is how long a newly created association remains
	// valid. Defaults to 30 seconds -- intentionally short; production
	// deployments are expected to override it.
	AssociationExpiry time.Duration
	// NonceExpiry is how long a newly issued nonce remains consumable.
	// Defaults to 30 seconds.
	NonceExpiry time.Duration

	// AllowedOrigins/AllowedHeaders configure CORS on the endpoint, for
	// RPs that call associate/discovery directly from a browser. CORS is
	// left disabled (no header added) when AllowedOrigins is empty.
	AllowedOrigins []string
	AllowedHeaders []string

	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// PrometheusRegistry, if non-nil, receives request count/duration
	// metrics for the mounted endpoint.
	PrometheusRegistry *prometheus.Registry

	// Now overrides time.Now, for deterministic tests.
	Now func() time.Time
}

func durationOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Server is the OpenID 2.0 Provider protocol engine. It performs no
// background work of its own beyond what its stores do; construct one per
// process and mount it at a single path in the host's router.
type Server struct {
	endpoint *url.URL

	assocs assoc.Store
	nonces nonce.Store

	assocExpiry time.Duration
	nonceExpiry time.Duration

	checkAuth AuthHandler

	logger *slog.Logger
	now    func() time.Time

	handler http.Handler
}

// NewServer constructs a Server from cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.ProviderEndpoint == "" {
		return nil, fmt.Errorf("server: ProviderEndpoint is required")
	}
	endpoint, err := url.Parse(cfg.ProviderEndpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("server: invalid ProviderEndpoint %q", cfg.ProviderEndpoint)
	}
	if cfg.CheckAuth == nil {
		return nil, fmt.Errorf("server: CheckAuth is required")
	}

	assocs := cfg.AssociationStore
	if assocs == nil {
		assocs = assoc.NewMemoryStore()
	}
	nonces := cfg.NonceStore
	if nonces == nil {
		nonces = nonce.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		endpoint:    endpoint,
		assocs:      assocs,
		nonces:      nonces,
		assocExpiry: durationOrDefault(cfg.AssociationExpiry, 30*time.Second),
		nonceExpiry: durationOrDefault(cfg.NonceExpiry, 30*time.Second),
		checkAuth:   cfg.CheckAuth,
		logger:      logger,
		now:         now,
	}

	var core http.Handler = http.HandlerFunc(s.serve)
	if cfg.PrometheusRegistry != nil {
		core = instrument(cfg.PrometheusRegistry, core)
	}
	if len(cfg.AllowedOrigins) > 0 {
		core = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedHeaders(cfg.AllowedHeaders),
		)(core)
	}
	s.handler = withRequestID(core)

	return s, nil
}

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), requestIDKey{}, uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID returns the request ID the engine generated for the request
// carried by ctx, or "" if ctx didn't come from one of the engine's
// handlers. Embedders can use this to correlate their own logging (e.g.
// inside an AuthHandler) with the engine's.
func RequestID(ctx context.Context) string {
	return requestID(ctx)
}

func instrument(reg *prometheus.Registry, next http.Handler) http.Handler {
	requestCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skylith_http_requests_total",
		Help: "Count of all HTTP requests handled by the OpenID provider endpoint.",
	}, []string{"code", "method"})
	durationHist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skylith_http_request_duration_seconds",
		Help:    "Latency of requests handled by the OpenID provider endpoint.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"code", "method"})
	reg.MustRegister(requestCounter, durationHist)

	return promhttp.InstrumentHandlerDuration(durationHist,
		promhttp.InstrumentHandlerCounter(requestCounter, next))
}

// ServeHTTP implements http.Handler, declining non-OpenID requests with a
// 404. Use Mount to decline to an arbitrary fallback handler instead.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Mount(http.NotFoundHandler()).ServeHTTP(w, r)
}

// Mount returns an http.Handler serving OpenID 2.0 traffic at the
// endpoint's mount path and passing everything else -- non-OpenID
// requests, or any request on a different path -- to next. This is the
// "handle(request, response, next)" entry point of spec §6.
func (s *Server) Mount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != s.endpoint.Path {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), nextHandlerKey{}, next)
		s.handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

type nextHandlerKey struct{}

func nextOf(r *http.Request) http.Handler {
	if h, ok := r.Context().Value(nextHandlerKey{}).(http.Handler); ok {
		return h
	}
	return http.NotFoundHandler()
}
