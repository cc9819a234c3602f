package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/services/amazon"
)

// ErrAlreadyRunning is returned by Start while a run is in flight
var ErrAlreadyRunning = errors.New("sync already running")

// errStopped aborts a batch when a cooperative stop is observed mid-wait
var errStopped = errors.New("sync stopped")

// ReportAPI is the provider surface the engine drives. amazon.Client
// implements it; tests substitute a fake.
type ReportAPI interface {
	CreateReport(ctx context.Context, reportType string, start, end time.Time) (string, error)
	GetReport(ctx context.Context, reportID string) (*amazon.Report, error)
	GetReportDocument(ctx context.Context, documentID string) (*amazon.ReportDocument, error)
	DownloadDocument(ctx context.Context, doc *amazon.ReportDocument) (string, error)
}

// RunLogger persists the append-only summary of a finished run
type RunLogger interface {
	SaveRunLog(run *models.SyncRunLog) error
}

// Timings holds every interval the engine sleeps on. Production values
// follow the provider's reporting quota; tests shrink them to milliseconds.
type Timings struct {
	PollInterval      time.Duration // report status poll cadence
	MaxReportWait     time.Duration // give up waiting for DONE after this
	PollRateLimitWait time.Duration // fixed wait after a 429 on a status check
	BetweenBatches    time.Duration // quota-respecting pause between batches
	ErrorPause        time.Duration // longer pause after a failed batch
	EmptyBatchPause   time.Duration // short pause after an empty report
	CountdownTick     time.Duration // phase-update granularity during backoff
	MaxCreateAttempts int           // create retries before the batch fails

	// Backoff computes the wait after a rate-limited report creation.
	// Nil means RateLimitWait.
	Backoff func(attempt int) time.Duration
}

// DefaultTimings returns the production intervals
func DefaultTimings() Timings {
	return Timings{
		PollInterval:      15 * time.Second,
		MaxReportWait:     15 * time.Minute,
		PollRateLimitWait: 60 * time.Second,
		BetweenBatches:    4 * time.Minute,
		ErrorPause:        5 * time.Minute,
		EmptyBatchPause:   10 * time.Second,
		CountdownTick:     10 * time.Second,
		MaxCreateAttempts: 5,
	}
}

// StartResult is returned to the caller when a run is accepted
type StartResult struct {
	TotalBatches      int `json:"totalBatches"`
	BatchSizeDays     int `json:"batchSize"`
	TotalLookbackDays int `json:"totalDays"`
}

// Engine owns the historical import run: it enforces single-flight
// execution, drives the per-batch report lifecycle sequentially, and is the
// only writer of the shared State. Stopping is cooperative: Stop flips a
// flag that every wait observes, in-flight HTTP calls finish on their own.
type Engine struct {
	api     ReportAPI
	store   OrderStore
	timings Timings
	state   *State

	// RunLogger, when set, receives one SyncRunLog per finished run
	RunLogger RunLogger

	mu            stdsync.Mutex
	running       bool
	stopRequested bool
	stopChan      chan struct{}
	runID         string
}

// NewEngine creates a sync engine over the given provider and store
func NewEngine(api ReportAPI, store OrderStore, timings Timings) *Engine {
	return &Engine{
		api:     api,
		store:   store,
		timings: timings,
		state:   NewState(),
	}
}

// State exposes the progress record for publishers and handlers
func (e *Engine) State() *State {
	return e.state
}

// Status returns a snapshot of the current run state. Never blocks on the
// running job.
func (e *Engine) Status() Snapshot {
	return e.state.Snapshot()
}

// Start plans the batches, resets the state and launches the background
// run. Returns ErrAlreadyRunning without touching the in-progress run if
// one is active.
func (e *Engine) Start(batchSizeDays, totalLookbackDays int) (StartResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return StartResult{}, ErrAlreadyRunning
	}

	batches, err := PlanBatches(batchSizeDays, totalLookbackDays, time.Now())
	if err != nil {
		return StartResult{}, err
	}

	e.state.Reset(len(batches))
	e.stopChan = make(chan struct{})
	e.running = true
	e.stopRequested = false
	e.runID = uuid.NewString()

	log.Printf("🔄 Sync: starting run %s (%d batches of %d days over %d days)",
		e.runID, len(batches), batchSizeDays, totalLookbackDays)

	go e.run(batches)

	return StartResult{
		TotalBatches:      len(batches),
		BatchSizeDays:     batchSizeDays,
		TotalLookbackDays: totalLookbackDays,
	}, nil
}

// Stop requests a cooperative stop. The running job observes the flag at
// its next checkpoint; completed batch results are retained until the next
// Start resets the state.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.running && !e.stopRequested {
		e.stopRequested = true
		close(e.stopChan)
		log.Printf("🛑 Sync: stop requested for run %s", e.runID)
	}
	e.mu.Unlock()

	e.state.RequestStop()
}

// backoff resolves the configured create-retry backoff
func (e *Engine) backoff(attempt int) time.Duration {
	if e.timings.Backoff != nil {
		return e.timings.Backoff(attempt)
	}
	return RateLimitWait(attempt)
}

// stopped reports whether a stop was requested, without blocking
func (e *Engine) stopped() bool {
	select {
	case <-e.stopChan:
		return true
	default:
		return false
	}
}

// waitOrStop sleeps for d unless a stop interrupts the wait. Returns false
// when the wait was interrupted.
func (e *Engine) waitOrStop(d time.Duration) bool {
	if d <= 0 {
		return !e.stopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.stopChan:
		return false
	}
}

// countdownWait sleeps for total in CountdownTick steps, updating the phase
// with a live countdown so observers see the remaining backoff
func (e *Engine) countdownWait(total time.Duration, prefix string) bool {
	deadline := time.Now().Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		e.state.SetPhase(fmt.Sprintf("%s: rate limited, retrying in %s", prefix, remaining.Round(time.Second)))
		step := e.timings.CountdownTick
		if step <= 0 || step > remaining {
			step = remaining
		}
		if !e.waitOrStop(step) {
			return false
		}
	}
}

// run executes the planned batches strictly in order. A batch failure is
// recorded and the run continues; only a credential failure ends the run.
func (e *Engine) run(batches []Batch) {
	started := time.Now()
	stopped := false

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for i, batch := range batches {
		if e.stopped() {
			stopped = true
			break
		}
		e.state.SetCurrentBatch(batch.Number)

		skipDelay, err := e.runBatch(batch, len(batches))
		if err == nil {
			if !skipDelay && i < len(batches)-1 {
				e.state.SetPhase(fmt.Sprintf("Batch %d/%d done, next batch in %s",
					batch.Number, len(batches), e.timings.BetweenBatches))
				if !e.waitOrStop(e.timings.BetweenBatches) {
					stopped = true
					break
				}
			}
			continue
		}

		if errors.Is(err, errStopped) {
			stopped = true
			break
		}

		var credErr *amazon.CredentialError
		if errors.As(err, &credErr) {
			log.Printf("❌ Sync: fatal credential error: %v", err)
			e.state.Finish("Credential error: " + err.Error())
			e.persistRunLog(started, "error")
			return
		}

		log.Printf("⚠️ Sync: batch %d failed: %v", batch.Number, err)
		e.state.IncrErrors()
		e.state.AppendBatchResult(BatchResult{
			BatchNumber: batch.Number,
			DateRange:   batch.Label,
			Error:       err.Error(),
		})
		if i < len(batches)-1 {
			e.state.SetPhase(fmt.Sprintf("Batch %d/%d failed, pausing %s before next batch",
				batch.Number, len(batches), e.timings.ErrorPause))
			if !e.waitOrStop(e.timings.ErrorPause) {
				stopped = true
				break
			}
		}
	}

	snap := e.state.Snapshot()
	duration := time.Since(started).Round(time.Second)
	summary := fmt.Sprintf("Done: %d/%d batches in %s, %d orders created, %d updated, %d errors, %d rate-limit waits",
		len(snap.BatchResults), snap.TotalBatches, duration,
		snap.OrdersCreated, snap.OrdersUpdated, snap.Errors, snap.RateLimitResets)

	status := "success"
	switch {
	case stopped:
		status = "stopped"
		// RequestStop already set the phase
	case snap.Errors > 0:
		status = "partial"
		e.state.Finish(summary)
	default:
		e.state.Finish(summary)
	}

	log.Printf("✅ Sync: run %s finished: %s", e.runID, summary)
	e.persistRunLog(started, status)
}

// runBatch drives one batch through the create, poll, download and process
// phases. skipDelay is true when the batch already paused on its own
// (empty report) and the inter-batch delay should not apply.
func (e *Engine) runBatch(b Batch, total int) (skipDelay bool, err error) {
	ctx := context.Background()
	prefix := fmt.Sprintf("Batch %d/%d", b.Number, total)

	// CreatingReport
	e.state.SetPhase(prefix + ": creating report")
	var reportID string
	for attempt := 1; ; attempt++ {
		id, err := e.api.CreateReport(ctx, amazon.ReportTypeAllOrders, b.Start, b.End)
		if err == nil {
			reportID = id
			break
		}
		if errors.Is(err, amazon.ErrRateLimited) {
			e.state.IncrRateLimitResets()
			if attempt >= e.timings.MaxCreateAttempts {
				return false, fmt.Errorf("report creation rate limited after %d attempts", attempt)
			}
			if !e.countdownWait(e.backoff(attempt), prefix) {
				return false, errStopped
			}
			continue
		}
		// CredentialError propagates as fatal; any other failure ends the
		// batch without retry
		return false, err
	}

	// WaitingForReport
	e.state.SetPhase(prefix + ": waiting for report " + reportID)
	deadline := time.Now().Add(e.timings.MaxReportWait)
	var documentID string
	for documentID == "" {
		if !e.waitOrStop(e.timings.PollInterval) {
			return false, errStopped
		}

		report, err := e.api.GetReport(ctx, reportID)
		switch {
		case errors.Is(err, amazon.ErrRateLimited):
			// A throttled status check retries after a fixed wait and does
			// not count against the create attempt budget
			e.state.IncrRateLimitResets()
			if !e.waitOrStop(e.timings.PollRateLimitWait) {
				return false, errStopped
			}
		case err != nil:
			return false, err
		default:
			switch report.ProcessingStatus {
			case amazon.ReportStatusDone:
				documentID = report.ReportDocumentID
			case amazon.ReportStatusCancelled, amazon.ReportStatusFatal:
				return false, &amazon.ReportError{ReportID: reportID, Status: report.ProcessingStatus}
			}
		}

		if documentID == "" && time.Now().After(deadline) {
			return false, fmt.Errorf("report %s not ready after %s", reportID, e.timings.MaxReportWait)
		}
	}

	// Downloading
	e.state.SetPhase(prefix + ": downloading report document")
	doc, err := e.api.GetReportDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	payload, err := e.api.DownloadDocument(ctx, doc)
	if err != nil {
		return false, err
	}

	// Processing
	report := ParseReport(payload)
	if len(report.Rows) == 0 {
		e.state.AppendBatchResult(BatchResult{BatchNumber: b.Number, DateRange: b.Label})
		e.state.SetPhase(prefix + ": empty report, moving to next batch")
		if !e.waitOrStop(e.timings.EmptyBatchPause) {
			return true, errStopped
		}
		return true, nil
	}

	e.state.SetPhase(fmt.Sprintf("%s: processing %d rows", prefix, len(report.Rows)))
	groups, missingID := report.GroupByOrder()
	if missingID > 0 {
		e.state.AddSkipped(missingID)
	}

	merger := NewMerger(e.store)
	merger.OnFlush = e.state.Add
	counts, err := merger.MergeGroups(report, groups)
	if err != nil {
		return false, err
	}

	e.state.AppendBatchResult(BatchResult{
		BatchNumber:     b.Number,
		DateRange:       b.Label,
		OrdersProcessed: counts.OrdersProcessed,
		ItemsProcessed:  counts.ItemsProcessed,
	})
	return false, nil
}

// persistRunLog appends the run summary row, if a logger is configured
func (e *Engine) persistRunLog(started time.Time, status string) {
	if e.RunLogger == nil {
		return
	}

	snap := e.state.Snapshot()
	results, _ := json.Marshal(snap.BatchResults)
	completed := time.Now()

	run := &models.SyncRunLog{
		RunID:         e.runID,
		Provider:      "amazon",
		Status:        status,
		StartedAt:     started,
		CompletedAt:   &completed,
		Duration:      int(completed.Sub(started).Milliseconds()),
		TotalBatches:  snap.TotalBatches,
		OrdersCreated: snap.OrdersCreated,
		OrdersUpdated: snap.OrdersUpdated,
		ItemsSynced:   snap.ItemsProcessed,
		Skipped:       snap.Skipped,
		Errors:        snap.Errors,
		RateLimitHits: snap.RateLimitResets,
		BatchResults:  results,
	}

	if err := e.RunLogger.SaveRunLog(run); err != nil {
		log.Printf("⚠️ Sync: failed to persist run log: %v", err)
	}
}
