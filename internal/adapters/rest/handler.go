// Package rest exposes the pipeline, the run queue and the A/B tests over HTTP.
package rest

import (
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/services"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/worker"
)

// pendingTTL bounds how long an unanswered blind test stays votable.
const pendingTTL = 24 * time.Hour

var validate = validator.New()

// RunQueue is the background run executor. *worker.Pool implements it.
type RunQueue interface {
	Submit(query string, limit int) (string, error)
	Get(id string) (worker.Job, bool)
}

var _ RunQueue = (*worker.Pool)(nil)

// Handler manages the HTTP interface for our application.
type Handler struct {
	runner       services.Runner
	abtests      *services.ABTestManager
	queue        RunQueue
	catalog      *services.CatalogService
	defaultLimit int

	mu      sync.Mutex
	pending map[string]domain.BlindSetup

	router chi.Router
	log    zerolog.Logger
}

type Option func(*Handler)

// WithRunQueue enables POST /runs and GET /runs/{id}.
func WithRunQueue(q RunQueue) Option {
	return func(h *Handler) { h.queue = q }
}

// WithCatalog enables GET /catalog/recommendations.
func WithCatalog(c *services.CatalogService) Option {
	return func(h *Handler) { h.catalog = c }
}

// WithDefaultLimit sets the candidate count used when a request omits it.
func WithDefaultLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.defaultLimit = n
		}
	}
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(runner services.Runner, abtests *services.ABTestManager, opts ...Option) *Handler {
	h := &Handler{
		runner:       runner,
		abtests:      abtests,
		defaultLimit: 20,
		pending:      make(map[string]domain.BlindSetup),
		log:          logging.Component("http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/recommendations", h.Recommend)

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.SubmitRun)
		r.Get("/{id}", h.GetRun)
	})

	r.Route("/abtests", func(r chi.Router) {
		r.Post("/", h.CreateABTest)
		r.Get("/stats", h.ABTestStats)
		r.Post("/{id}/votes", h.Vote)
	})

	r.Get("/catalog/recommendations", h.CatalogRecommend)

	h.router = r
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// decodeAndValidate reads a JSON body into dst and applies its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
		return false
	}
	return true
}

func isJSONContentType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
