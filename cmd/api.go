package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/monitoring"
)

const apiVersion = "1.0.0"

// comparer runs a two-product comparison.
type comparer interface {
	Compare(ctx context.Context, rawA, rawB string) (*model.ComparisonResult, error)
}

// snapshotter reports service health.
type snapshotter interface {
	Collect(ctx context.Context) *monitoring.Snapshot
}

type apiServer struct {
	cmp    comparer
	health snapshotter
}

// buildRouter wires the HTTP API. health may be nil.
func buildRouter(cmp comparer, health snapshotter, allowedOrigins []string) http.Handler {
	s := &apiServer{cmp: cmp, health: health}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Post("/compare", s.handleCompare)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Product Battle API is running",
	})
}

type endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type healthResponse struct {
	Status     string     `json:"status"`
	APIVersion string     `json:"api_version"`
	StoreOK    *bool      `json:"store_ok,omitempty"`
	Endpoints  []endpoint `json:"endpoints"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		APIVersion: apiVersion,
		Endpoints: []endpoint{
			{Path: "/", Method: "GET", Description: "Root health check"},
			{Path: "/api/compare", Method: "POST", Description: "Compare two products"},
			{Path: "/api/health", Method: "GET", Description: "Detailed health check"},
			{Path: "/api/stats", Method: "GET", Description: "Cache and upstream health metrics"},
		},
	}
	status := http.StatusOK
	if s.health != nil {
		snap := s.health.Collect(r.Context())
		ok := snap.StoreOK
		resp.StoreOK = &ok
		if !ok {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, resp)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errorBody{
			Kind:    "unavailable",
			Message: "monitoring is not configured",
		}})
		return
	}
	respondJSON(w, http.StatusOK, s.health.Collect(r.Context()))
}

type compareRequest struct {
	Laptop1 string `json:"laptop1"`
	Laptop2 string `json:"laptop2"`
}

// productAnalysis keeps the field names existing frontends read.
type productAnalysis struct {
	LaptopName           string   `json:"laptop_name"`
	Key                  string   `json:"key"`
	SentimentScore       int      `json:"sentiment_score"`
	Pros                 []string `json:"pros"`
	Cons                 []string `json:"cons"`
	KeyThemes            []string `json:"key_themes"`
	SentimentExplanation string   `json:"sentiment_explanation"`
	UserRecommendation   string   `json:"user_recommendation"`
	PostsAnalyzed        int      `json:"posts_analyzed"`
	Error                *string  `json:"error"`
}

type compareResponse struct {
	Laptop1         productAnalysis `json:"laptop1"`
	Laptop2         productAnalysis `json:"laptop2"`
	Winner          string          `json:"winner"` // laptop1, laptop2 or tie
	ScoreDifference int             `json:"score_difference"`
}

func (s *apiServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Kind:    "invalid_request",
			Message: "invalid request body",
		}})
		return
	}

	res, err := s.cmp.Compare(r.Context(), req.Laptop1, req.Laptop2)
	if err != nil {
		zap.L().Warn("api: compare failed",
			zap.String("laptop1", req.Laptop1),
			zap.String("laptop2", req.Laptop2),
			zap.Error(err),
		)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCompareResponse(res, req.Laptop1, req.Laptop2))
}

// newCompareResponse echoes the names as sent; the cached records may have
// been built under another spelling of the same key.
func newCompareResponse(res *model.ComparisonResult, name1, name2 string) compareResponse {
	out := compareResponse{
		Laptop1:         newProductAnalysis(res.A, name1),
		Laptop2:         newProductAnalysis(res.B, name2),
		Winner:          "tie",
		ScoreDifference: res.ScoreDifference,
	}
	switch {
	case res.Tie:
	case res.WinnerKey == res.A.Key:
		out.Winner = "laptop1"
	case res.WinnerKey == res.B.Key:
		out.Winner = "laptop2"
	}
	return out
}

func newProductAnalysis(r *model.AnalysisRecord, name string) productAnalysis {
	if name = strings.TrimSpace(name); name == "" {
		name = r.DisplayName
	}
	return productAnalysis{
		LaptopName:           name,
		Key:                  r.Key,
		SentimentScore:       r.SentimentScore,
		Pros:                 r.Pros,
		Cons:                 r.Cons,
		KeyThemes:            r.KeyThemes,
		SentimentExplanation: r.Explanation,
		UserRecommendation:   r.Recommendation,
		PostsAnalyzed:        r.PostsAnalyzed,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}
