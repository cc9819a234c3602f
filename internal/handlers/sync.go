package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/config"
	syncengine "github.com/judyjanx-jpg/inventory-advisor-sub003/internal/sync"
)

const (
	defaultBatchSizeDays     = 90
	defaultTotalLookbackDays = 720
	historyLimit             = 20
)

// SyncHandler exposes the historical import control surface
type SyncHandler struct {
	engine    *syncengine.Engine
	publisher *syncengine.Publisher
	store     *syncengine.GormStore
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(engine *syncengine.Engine, store *syncengine.GormStore) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		publisher: syncengine.NewPublisher(engine.State()),
		store:     store,
	}
}

// RegisterRoutes registers sync routes. Mutating endpoints are protected
// when a JWT secret is configured.
func (sh *SyncHandler) RegisterRoutes(r *mux.Router, cfg *config.Config) {
	r.Handle("/api/sync/start", protect(cfg, sh.StartSync)).Methods("POST")
	r.Handle("/api/sync/stop", protect(cfg, sh.StopSync)).Methods("DELETE")
	r.HandleFunc("/api/sync/status", sh.GetStatus).Methods("GET")
	r.HandleFunc("/api/sync/history", sh.GetHistory).Methods("GET")
}

// StartSync launches a historical import run
func (sh *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultBatchSizeDays)
	total := queryInt(r, "total", defaultTotalLookbackDays)

	result, err := sh.engine.Start(size, total)
	if err != nil {
		if errors.Is(err, syncengine.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "sync already running")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, result)
}

// StopSync stops the current run. Always succeeds.
func (sh *SyncHandler) StopSync(w http.ResponseWriter, r *http.Request) {
	sh.engine.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "sync stopped",
	})
}

// GetStatus returns the current sync state, or streams it as server-sent
// events when ?stream=true
func (sh *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("stream") != "true" {
		respondJSON(w, http.StatusOK, sh.publisher.Snapshot())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for snap := range sh.publisher.Subscribe(r.Context()) {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// GetHistory lists recent run summaries
func (sh *SyncHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := sh.store.RecentRunLogs(historyLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// queryInt reads a positive integer query parameter with a default
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
