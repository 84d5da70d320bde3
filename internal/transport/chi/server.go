// Package chi exposes the recommendation service over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/rec"
	"github.com/inkvine/manrec/internal/logger"
	"github.com/inkvine/manrec/internal/metrics"
	healthuc "github.com/inkvine/manrec/internal/usecase/health"
	recommenduc "github.com/inkvine/manrec/internal/usecase/recommend"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest        = "bad_request"
	codeIndexNotReady     = "index_not_ready"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternalError     = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server handles the recommendation HTTP API.
type Server struct {
	recommend     *recommenduc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(recommend *recommenduc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		recommend: recommend,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, codeIndexNotReady),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/recommend", s.Recommend)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// recommendRequest is the POST /v1/recommend body.
type recommendRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// recommendationItem is one ranked entry in the response.
type recommendationItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	AltTitles      []string `json:"alt_titles,omitempty"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Year           *int     `json:"year,omitempty"`
	CoverArt       string   `json:"cover_art,omitempty"`
	OfficialEnLink string   `json:"official_en_link,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	Score          float64  `json:"score"`
	DenseScore     float64  `json:"dense_score"`
	SparseScore    float64  `json:"sparse_score"`
	TitleBoost     float64  `json:"title_boost"`
	Reason         string   `json:"reason"`
}

type recommendResponse struct {
	Results []recommendationItem `json:"results"`
}

// Recommend handles POST /v1/recommend.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > rec.MaxTopK {
			writeError(w, http.StatusBadRequest, codeBadRequest, "top_k must be between 1 and 500")
			return
		}
		topK = *req.TopK
	}

	results, err := s.recommend.Recommend(r.Context(), rec.New(req.Query, topK))
	if err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, r, err)
		return
	}

	metrics.RecommendRequestsTotal.WithLabelValues("success").Inc()
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	metrics.RecommendResults.Observe(float64(len(results)))

	items := make([]recommendationItem, len(results))
	for i := range results {
		items[i] = resultToItem(&results[i])
	}
	writeJSON(w, http.StatusOK, recommendResponse{Results: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultToItem(res *rec.Result) recommendationItem {
	e := res.Entry
	return recommendationItem{
		ID:             e.ID,
		Title:          e.Title,
		AltTitles:      e.AltTitles,
		Description:    e.Description,
		Tags:           e.Tags,
		Year:           e.Year,
		CoverArt:       e.CoverArt,
		OfficialEnLink: e.OfficialEnLink,
		Rating:         e.Rating,
		Score:          res.Score,
		DenseScore:     res.DenseScore,
		SparseScore:    res.SparseScore,
		TitleBoost:     res.TitleBoost,
		Reason:         res.Reason,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexNotReady,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The request-scoped logger carries the request id when the wide-event
	// middleware is mounted; fall back to the server logger otherwise.
	log := logger.FromContextOr(r.Context(), s.logger)

	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
