// Package server exposes the FoodieBot JSON API over HTTP. Handlers are a
// thin layer: all logic lives in the core components, and errors map from
// the shared sentinels onto status codes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"foodiebot/internal/analytics"
	"foodiebot/internal/catalog"
	"foodiebot/internal/pipeline"
	"foodiebot/internal/recommend"
	"foodiebot/internal/session"
	"foodiebot/internal/types"
)

const defaultLimit = 6

// Server holds the handler dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	sessions    *session.Store
	catalog     *catalog.Store
	recommender *recommend.Recommender
	sink        *analytics.Sink
	logger      *zap.Logger
}

// New creates a Server. sink may be nil; the analytics endpoints then
// return 404.
func New(p *pipeline.Pipeline, sessions *session.Store, cat *catalog.Store, rec *recommend.Recommender, sink *analytics.Sink, logger *zap.Logger) *Server {
	return &Server{
		pipeline:    p,
		sessions:    sessions,
		catalog:     cat,
		recommender: rec,
		sink:        sink,
		logger:      logger.Named("server"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /recommend", s.handleRecommend)
	mux.HandleFunc("GET /recommend_from_context", s.handleRecommendFromContext)
	mux.HandleFunc("GET /collab", s.handleCollab)
	mux.HandleFunc("GET /product/{id}", s.handleProduct)
	mux.HandleFunc("GET /search", s.handleSearch)

	mux.HandleFunc("POST /admin/products", s.handleCreateProduct)
	mux.HandleFunc("PUT /admin/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("DELETE /admin/products/{id}", s.handleDeleteProduct)

	mux.HandleFunc("GET /analytics/conversations", s.handleConversations)
	mux.HandleFunc("GET /analytics/recent_queries", s.handleRecentQueries)
	mux.HandleFunc("GET /debug/sessions", s.handleDebugSessions)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "foodiebot"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res := s.pipeline.Chat(r.Context(), req.SessionID, req.Message)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var budget *float64
	if raw := q.Get("budget"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "budget must be numeric")
			return
		}
		budget = &v
	}

	var dietary []string
	if raw := q.Get("dietary"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dietary = append(dietary, d)
			}
		}
	}

	products, err := s.recommender.ByPreferences(r.Context(),
		q.Get("mood"), budget, dietary, q.Get("nutrient"), limitParam(q.Get("limit")))
	if err != nil {
		s.writeInternal(w, "recommend failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": productList(products)})
}

func (s *Server) handleRecommendFromContext(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sctx, err := s.sessions.Snapshot(sessionID)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	in := sctx.Intents
	products, err := s.recommender.ByPreferences(r.Context(),
		in.Mood, in.Budget, in.Dietary, in.Nutrient, limitParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeInternal(w, "recommend failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sessionID,
		"intent":          in,
		"recommendations": productList(products),
	})
}

func (s *Server) handleCollab(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	products, err := s.recommender.Collaborative(r.Context(), productID, limitParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeInternal(w, "collaborative lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": productList(products)})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.LookupByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown product")
		return
	}
	if err != nil {
		s.writeInternal(w, "product lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	products, err := s.catalog.Search(r.Context(), q, limitParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeInternal(w, "search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": productList(products)})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p types.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product body")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := s.catalog.Create(r.Context(), p)
	if err != nil {
		s.writeInternal(w, "create failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"product_id": id})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p types.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product body")
		return
	}
	p.ProductID = r.PathValue("id")

	err := s.catalog.Update(r.Context(), p)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown product")
		return
	}
	if err != nil {
		s.writeInternal(w, "update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"product_id": p.ProductID})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := s.catalog.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown product")
		return
	}
	if err != nil {
		s.writeInternal(w, "delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusNotFound, "analytics disabled")
		return
	}
	recs, err := s.sink.RecentConversations(r.Context(), limitParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeInternal(w, "analytics read failed", err)
		return
	}
	if recs == nil {
		recs = []analytics.TurnRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": recs})
}

func (s *Server) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusNotFound, "analytics disabled")
		return
	}
	recs, err := s.sink.RecentQueries(r.Context(), limitParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeInternal(w, "analytics read failed", err)
		return
	}
	if recs == nil {
		recs = []analytics.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": recs})
}

func (s *Server) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.Summaries()})
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// shutdown budget.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func limitParam(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}

// productList normalizes a nil slice so the JSON field is always an array.
func productList(products []types.Product) []types.Product {
	if products == nil {
		return []types.Product{}
	}
	return products
}

func (s *Server) writeInternal(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
