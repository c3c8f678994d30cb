// Package httpapi exposes the orchestrator over HTTP.
//
// Routes:
//
//	GET  /health                         liveness plus the cached backend health
//	GET  /metrics                        Prometheus exposition
//	POST /api/v1/orchestrate             full orchestration (?mode=hybrid races both paths)
//	POST /api/v1/sessions/{session_type} orchestration for one session type
//	POST /api/v1/route                   single-agent answer for simple queries
//	POST /api/v1/estimate                cost comparison of the two paths
//
// Orchestration endpoints always answer 200 with a result once the body
// decodes; invalid requests come back as degraded results.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/routing"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// maxBodyBytes bounds request bodies; inputs are capped well below this.
const maxBodyBytes = 1 << 20

// RequestIDHeader carries the correlation id of a call.
const RequestIDHeader = "X-Request-ID"

// Engine runs orchestrations. *orchestrator.Orchestrator implements it.
type Engine interface {
	Orchestrate(ctx context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult
	OrchestrateHybrid(ctx context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult
}

// QueryRouter answers simple queries with one agent. *routing.Router
// implements it.
type QueryRouter interface {
	RouteSimpleQuery(ctx context.Context, req *triad.OrchestrationRequest) (triad.AgentResponse, error)
}

// HealthReporter exposes the cached backend state. *health.HealthCache
// implements it.
type HealthReporter interface {
	Snapshot() health.Snapshot
	Refresh(ctx context.Context) bool
}

// Server holds the handlers.
type Server struct {
	engine  Engine
	router  QueryRouter
	health  HealthReporter
	pricing *routing.Pricing
	model   string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRouter enables /api/v1/route.
func WithRouter(r QueryRouter) Option {
	return func(s *Server) { s.router = r }
}

// WithHealth reports backend health on /health.
func WithHealth(h HealthReporter) Option {
	return func(s *Server) { s.health = h }
}

// WithModel sets the default model for cost estimates.
func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithPricing replaces the default price table.
func WithPricing(p *routing.Pricing) Option {
	return func(s *Server) { s.pricing = p }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server over engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		pricing: routing.NewPricing(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orchestrate", s.handleOrchestrate).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{session_type}", s.handleSession).Methods(http.MethodPost)
	api.HandleFunc("/route", s.handleRoute).Methods(http.MethodPost)
	api.HandleFunc("/estimate", s.handleEstimate).Methods(http.MethodPost)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := observability.ExtractTraceContext(r.Context(), r.Header)
		ctx, span := observability.StartSpan(ctx, "http "+r.Method+" "+r.URL.Path,
			attribute.String("http.request_id", id),
		)
		observability.InjectTraceContext(ctx, w.Header())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		observability.EndSpan(span, nil)

		s.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", id,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.health != nil {
		// ?refresh=1 checks the backend now instead of returning the cached state.
		if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
			s.health.Refresh(r.Context())
		}
		body["backend"] = s.health.Snapshot()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	var result *triad.OrchestrationResult
	if strings.EqualFold(r.URL.Query().Get("mode"), string(triad.ModeHybrid)) {
		result = s.engine.OrchestrateHybrid(r.Context(), req)
	} else {
		result = s.engine.Orchestrate(r.Context(), req)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := triad.SessionType(mux.Vars(r)["session_type"])
	if !session.Valid() {
		writeError(w, http.StatusNotFound, "unknown session type "+string(session))
		return
	}
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	scoped := req.WithSessionType(session)
	writeJSON(w, http.StatusOK, s.engine.Orchestrate(r.Context(), &scoped))
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusNotImplemented, "routing is not configured")
		return
	}
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.router.RouteSimpleQuery(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type estimateRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type estimateResponse struct {
	routing.CostEstimate
	Complexity string `json:"complexity"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var body estimateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	model := body.Model
	if model == "" {
		model = s.model
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		CostEstimate: s.pricing.Estimate(body.Input, model),
		Complexity:   routing.Complexity(body.Input),
	})
}

// decodeRequest reads an OrchestrationRequest. Personality types are
// accepted in any case.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*triad.OrchestrationRequest, bool) {
	var req triad.OrchestrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	if p, err := triad.ParsePersonalityType(string(req.PersonalityType)); err == nil {
		req.PersonalityType = p
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
