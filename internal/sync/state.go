package sync

import (
	"sync"
	"time"
)

// BatchResult records the outcome of one processed batch. Appended once per
// batch, append-only within a run.
type BatchResult struct {
	BatchNumber     int    `json:"batch_number"`
	DateRange       string `json:"date_range"`
	OrdersProcessed int    `json:"orders_processed"`
	ItemsProcessed  int    `json:"items_processed"`
	Error           string `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of the sync state, safe to hand to
// readers while the run keeps mutating the live record.
type Snapshot struct {
	IsRunning       bool          `json:"is_running"`
	CurrentBatch    int           `json:"current_batch"`
	TotalBatches    int           `json:"total_batches"`
	CurrentPhase    string        `json:"current_phase"`
	OrdersProcessed int           `json:"orders_processed"`
	OrdersCreated   int           `json:"orders_created"`
	OrdersUpdated   int           `json:"orders_updated"`
	ItemsProcessed  int           `json:"items_processed"`
	Skipped         int           `json:"skipped"`
	Errors          int           `json:"errors"`
	RateLimitResets int           `json:"rate_limit_resets"`
	StartTime       time.Time     `json:"start_time"`
	BatchResults    []BatchResult `json:"batch_results"`
}

// State is the single mutable record of sync progress. Only the running job
// writes it; everything else reads snapshots. All access goes through the
// mutex so status/stream consumers never observe a torn write.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState creates an empty state record
func NewState() *State {
	return &State{}
}

// Reset clears the record and marks a new run as started
func (s *State) Reset(totalBatches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{
		IsRunning:    true,
		TotalBatches: totalBatches,
		CurrentPhase: "Starting",
		StartTime:    time.Now(),
		BatchResults: nil,
	}
}

// SetPhase updates the current phase message
func (s *State) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentPhase = phase
}

// SetCurrentBatch advances the batch pointer. The pointer is monotonic
// within a run: attempts to move it backwards are ignored.
func (s *State) SetCurrentBatch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.snap.CurrentBatch {
		s.snap.CurrentBatch = n
	}
}

// Add folds merge counters into the cumulative totals
func (s *State) Add(c MergeCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.OrdersProcessed += c.OrdersProcessed
	s.snap.OrdersCreated += c.OrdersCreated
	s.snap.OrdersUpdated += c.OrdersUpdated
	s.snap.ItemsProcessed += c.ItemsProcessed
	s.snap.Skipped += c.Skipped
}

// AddSkipped counts rows dropped for per-row data errors
func (s *State) AddSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Skipped += n
}

// IncrErrors counts a failed batch
func (s *State) IncrErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Errors++
}

// IncrRateLimitResets counts a rate-limit wait
func (s *State) IncrRateLimitResets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.RateLimitResets++
}

// AppendBatchResult records the outcome of one batch
func (s *State) AppendBatchResult(r BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.BatchResults = append(s.snap.BatchResults, r)
}

// RequestStop marks the run as no longer running while retaining the
// results accumulated so far. The record is wiped at the next Reset.
func (s *State) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.IsRunning {
		s.snap.IsRunning = false
		s.snap.CurrentPhase = "Stopped"
	}
}

// Finish marks the run as done with a summary phase message
func (s *State) Finish(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsRunning = false
	s.snap.CurrentPhase = phase
}

// Snapshot returns a copy of the current state, including a copied results
// slice so callers can't alias the live record
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.BatchResults = make([]BatchResult, len(s.snap.BatchResults))
	copy(snap.BatchResults, s.snap.BatchResults)
	return snap
}

// IsRunning reports whether a run is active
func (s *State) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.IsRunning
}
