// Package server exposes the catalog over HTTP: item listings, price
// histories, trends, and on-demand checks.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/checker"
	"github.com/sells-group/pricewatch/internal/history"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/store"
)

// Server wires the HTTP API over the store and checker.
type Server struct {
	store   store.Store
	checker *checker.Checker
}

// New creates a Server.
func New(st store.Store, chk *checker.Checker) *Server {
	return &Server{store: st, checker: chk}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/items", s.handleListItems)
	r.Get("/items/{id}", s.handleGetItem)
	r.Get("/items/{id}/history", s.handleHistory)
	r.Get("/items/{id}/trend", s.handleTrend)
	r.Post("/items/{id}/check", s.handleCheck)
	r.Get("/failures", s.handleFailures)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := store.ItemFilter{
		Category: model.Category(r.URL.Query().Get("category")),
	}
	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []model.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	hist := item.PriceHistory
	if hist == nil {
		hist = []model.PriceHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	trend, ok := history.ComputeTrend(item.PriceHistory)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity,
			eris.Errorf("item %s has too few data points for a trend", item.ID))
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupItem(w, r)
	if !ok {
		return
	}
	updated, err := s.checker.CheckOne(r.Context(), *item)
	if err != nil {
		zap.L().Warn("on-demand check failed",
			zap.String("item", item.ID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid since parameter"))
			return
		}
		since = t
	}
	failures, err := s.store.ListCheckFailures(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if failures == nil {
		failures = []store.CheckFailure{}
	}
	writeJSON(w, http.StatusOK, failures)
}

// lookupItem resolves the {id} path param, accepting catalog IDs and
// external IDs.
func (s *Server) lookupItem(w http.ResponseWriter, r *http.Request) (*model.CatalogItem, bool) {
	id := chi.URLParam(r, "id")
	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if item == nil {
		item, err = s.store.GetItemByExternalID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return nil, false
		}
	}
	if item == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("item %s not found", id))
		return nil, false
	}
	return item, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
