package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/config"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/database"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/middleware"
	syncengine "github.com/judyjanx-jpg/inventory-advisor-sub003/internal/sync"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/websocket"
)

// Router wraps the mux router and shared dependencies
type Router struct {
	*mux.Router
	db  *database.DB
	cfg *config.Config
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, engine *syncengine.Engine, hub *websocket.Hub) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		cfg:    cfg,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Sync control surface
	sh := NewSyncHandler(engine, syncengine.NewGormStore(db))
	sh.RegisterRoutes(r.Router, cfg)

	// Order/product read surface
	oh := NewOrderHandler(db)
	oh.RegisterRoutes(r.Router)

	// Live progress push for dashboard clients
	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	return r
}

// protect wraps a handler with JWT auth when a secret is configured
func protect(cfg *config.Config, h http.HandlerFunc) http.Handler {
	if cfg.JWTSecret == "" {
		return h
	}
	return middleware.AuthMiddleware(cfg.JWTSecret, h)
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
