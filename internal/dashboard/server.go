// Package dashboard serves a small read-only HTTP API over the stored
// predictions, ratings and clone pairs, plus health and metrics endpoints.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/models"
	"github.com/mrenaud/footoracle/internal/storage"
)

// Store is the subset of storage the dashboard reads from.
type Store interface {
	PredictionsOn(day time.Time) ([]models.Prediction, error)
	ClonePairsOn(day time.Time) ([]models.ClonePair, error)
	TopRatings(n int) ([]storage.TeamRating, error)
}

// Server exposes the read-only HTTP API.
type Server struct {
	store      Store
	topRatings int
	httpServer *http.Server
}

// New builds the server and its routes.
func New(store Store, listenAddr string, topRatings int) *Server {
	s := &Server{store: store, topRatings: topRatings}

	r := mux.NewRouter()
	r.HandleFunc("/api/predictions", s.handlePredictions).Methods("GET")
	r.HandleFunc("/api/ratings", s.handleRatings).Methods("GET")
	r.HandleFunc("/api/clones", s.handleClones).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route tree, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	logger.Info("dashboard listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// dayParam reads the optional ?date=YYYY-MM-DD query parameter, defaulting to
// today (UTC).
func dayParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	preds, err := s.store.PredictionsOn(day)
	if err != nil {
		logger.Error("listing predictions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	if preds == nil {
		preds = []models.Prediction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":        day.Format("2006-01-02"),
		"count":       len(preds),
		"predictions": preds,
	})
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.store.TopRatings(s.topRatings)
	if err != nil {
		logger.Error("listing ratings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load ratings")
		return
	}
	if ratings == nil {
		ratings = []storage.TeamRating{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(ratings),
		"ratings": ratings,
	})
}

func (s *Server) handleClones(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pairs, err := s.store.ClonePairsOn(day)
	if err != nil {
		logger.Error("listing clone pairs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load clone pairs")
		return
	}
	if pairs == nil {
		pairs = []models.ClonePair{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"count": len(pairs),
		"pairs": pairs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
