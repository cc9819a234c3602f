package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/models"
	"github.com/judyjanx-jpg/inventory-advisor-sub003/internal/services/amazon"
)

// fakeReportAPI scripts the provider's report lifecycle. The engine drives
// it from a single goroutine, so plain fields are safe.
type fakeReportAPI struct {
	payload string

	creates            int
	rateLimitedCreates int               // first N creates answer 429
	pollsBeforeDone    int               // polls each report needs before DONE
	finalStatus        map[string]string // reportID -> terminal status override
	createErr          error             // returned by every create when set

	polls map[string]int
}

func newFakeReportAPI(payload string) *fakeReportAPI {
	return &fakeReportAPI{
		payload:     payload,
		finalStatus: make(map[string]string),
		polls:       make(map[string]int),
	}
}

func (f *fakeReportAPI) CreateReport(ctx context.Context, reportType string, start, end time.Time) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates++
	if f.creates <= f.rateLimitedCreates {
		return "", amazon.ErrRateLimited
	}
	return fmt.Sprintf("report-%d", f.creates), nil
}

func (f *fakeReportAPI) GetReport(ctx context.Context, reportID string) (*amazon.Report, error) {
	f.polls[reportID]++
	if f.polls[reportID] <= f.pollsBeforeDone {
		return &amazon.Report{ReportID: reportID, ProcessingStatus: amazon.ReportStatusInProgress}, nil
	}
	status := amazon.ReportStatusDone
	if s, ok := f.finalStatus[reportID]; ok {
		status = s
	}
	report := &amazon.Report{ReportID: reportID, ProcessingStatus: status}
	if status == amazon.ReportStatusDone {
		report.ReportDocumentID = "doc-" + reportID
	}
	return report, nil
}

func (f *fakeReportAPI) GetReportDocument(ctx context.Context, documentID string) (*amazon.ReportDocument, error) {
	return &amazon.ReportDocument{ReportDocumentID: documentID, URL: "https://example.test/" + documentID}, nil
}

func (f *fakeReportAPI) DownloadDocument(ctx context.Context, doc *amazon.ReportDocument) (string, error) {
	return f.payload, nil
}

// fakeRunLogger signals run completion through a channel
type fakeRunLogger struct {
	ch chan *models.SyncRunLog
}

func newFakeRunLogger() *fakeRunLogger {
	return &fakeRunLogger{ch: make(chan *models.SyncRunLog, 1)}
}

func (l *fakeRunLogger) SaveRunLog(run *models.SyncRunLog) error {
	l.ch <- run
	return nil
}

func (l *fakeRunLogger) wait(t *testing.T) *models.SyncRunLog {
	t.Helper()
	select {
	case run := <-l.ch:
		return run
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not finish in time")
		return nil
	}
}

func testTimings() Timings {
	return Timings{
		PollInterval:      time.Millisecond,
		MaxReportWait:     time.Second,
		PollRateLimitWait: time.Millisecond,
		BetweenBatches:    time.Millisecond,
		ErrorPause:        time.Millisecond,
		EmptyBatchPause:   time.Millisecond,
		CountdownTick:     time.Millisecond,
		MaxCreateAttempts: 5,
		Backoff:           func(int) time.Duration { return time.Millisecond },
	}
}

const enginePayload = "amazon-order-id\tsku\tquantity\titem-price\torder-status\n" +
	"201-0000001-0000001\tSKU-A\t1\t10.00\tShipped\n" +
	"201-0000002-0000002\tSKU-A\t2\t20.00\tPending\n"

func TestEngineRunsAllBatches(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.pollsBeforeDone = 2
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	result, err := engine.Start(90, 180)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if result.TotalBatches != 2 {
		t.Fatalf("Expected 2 batches, got %d", result.TotalBatches)
	}

	run := logger.wait(t)
	if run.Status != "success" {
		t.Errorf("Run status = %q, want success", run.Status)
	}
	if run.TotalBatches != 2 {
		t.Errorf("Run log TotalBatches = %d", run.TotalBatches)
	}

	snap := engine.Status()
	if snap.IsRunning {
		t.Error("Run should be finished")
	}
	if len(snap.BatchResults) != 2 {
		t.Fatalf("Expected 2 batch results, got %d", len(snap.BatchResults))
	}
	// Same payload in both batches: the second merge updates instead of
	// creating, so the import stays idempotent across batches
	if snap.OrdersCreated != 2 || snap.OrdersUpdated != 2 {
		t.Errorf("Created/Updated = %d/%d, want 2/2", snap.OrdersCreated, snap.OrdersUpdated)
	}
	if len(store.orders) != 2 {
		t.Errorf("Store holds %d orders, want 2", len(store.orders))
	}
	if !strings.Contains(snap.CurrentPhase, "Done") {
		t.Errorf("Final phase = %q", snap.CurrentPhase)
	}
	if api.creates != 2 {
		t.Errorf("Expected 2 report creations, got %d", api.creates)
	}
}

func TestEngineRejectsConcurrentStart(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.pollsBeforeDone = 1000 // keep the run busy polling
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	timings := testTimings()
	timings.PollInterval = 10 * time.Millisecond
	engine := NewEngine(api, store, timings)
	engine.RunLogger = logger

	if _, err := engine.Start(90, 90); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if _, err := engine.Start(90, 90); err != ErrAlreadyRunning {
		t.Errorf("Second start returned %v, want ErrAlreadyRunning", err)
	}

	engine.Stop()
	run := logger.wait(t)
	if run.Status != "stopped" {
		t.Errorf("Run status = %q, want stopped", run.Status)
	}
}

func TestEngineStopRetainsCompletedBatches(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	timings := testTimings()
	timings.BetweenBatches = time.Minute // park the run between batches
	engine := NewEngine(api, store, timings)
	engine.RunLogger = logger

	if _, err := engine.Start(90, 360); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the first batch to land, then stop during the pause
	deadline := time.Now().Add(5 * time.Second)
	for len(engine.Status().BatchResults) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("First batch never completed")
		}
		time.Sleep(time.Millisecond)
	}
	engine.Stop()

	run := logger.wait(t)
	if run.Status != "stopped" {
		t.Errorf("Run status = %q, want stopped", run.Status)
	}

	snap := engine.Status()
	if snap.IsRunning {
		t.Error("Stopped run should not be running")
	}
	if snap.CurrentPhase != "Stopped" {
		t.Errorf("Phase = %q, want Stopped", snap.CurrentPhase)
	}
	if len(snap.BatchResults) == 0 {
		t.Error("Completed batch results must survive the stop")
	}
	if len(snap.BatchResults) >= 4 {
		t.Errorf("Stop during pause should prevent later batches, got %d results", len(snap.BatchResults))
	}

	// Stop is idempotent
	engine.Stop()
}

func TestEngineBacksOffOnCreateRateLimit(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.rateLimitedCreates = 2
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	if _, err := engine.Start(90, 90); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run := logger.wait(t)
	if run.Status != "success" {
		t.Errorf("Run status = %q, want success", run.Status)
	}
	if run.RateLimitHits != 2 {
		t.Errorf("RateLimitHits = %d, want 2", run.RateLimitHits)
	}
	if api.creates != 3 {
		t.Errorf("Expected 3 create attempts, got %d", api.creates)
	}
	if engine.Status().OrdersCreated != 2 {
		t.Errorf("Batch should succeed after backoff, created %d orders", engine.Status().OrdersCreated)
	}
}

func TestEngineFailsBatchAfterExhaustedCreateAttempts(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.rateLimitedCreates = 100
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	timings := testTimings()
	timings.MaxCreateAttempts = 3
	engine := NewEngine(api, store, timings)
	engine.RunLogger = logger

	if _, err := engine.Start(90, 90); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run := logger.wait(t)
	if run.Status != "partial" {
		t.Errorf("Run status = %q, want partial", run.Status)
	}
	if run.Errors != 1 {
		t.Errorf("Errors = %d, want 1", run.Errors)
	}

	snap := engine.Status()
	if len(snap.BatchResults) != 1 || snap.BatchResults[0].Error == "" {
		t.Errorf("Expected one failed batch result, got %+v", snap.BatchResults)
	}
}

func TestEngineContinuesAfterCancelledReport(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.finalStatus["report-1"] = amazon.ReportStatusCancelled
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	if _, err := engine.Start(90, 180); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run := logger.wait(t)
	if run.Status != "partial" {
		t.Errorf("Run status = %q, want partial", run.Status)
	}

	snap := engine.Status()
	if len(snap.BatchResults) != 2 {
		t.Fatalf("Expected 2 batch results, got %d", len(snap.BatchResults))
	}
	if snap.BatchResults[0].Error == "" {
		t.Error("Cancelled batch should record an error")
	}
	if snap.BatchResults[1].Error != "" {
		t.Errorf("Second batch should succeed, got error %q", snap.BatchResults[1].Error)
	}
	if snap.OrdersCreated != 2 {
		t.Errorf("Second batch should still merge orders, created %d", snap.OrdersCreated)
	}
}

func TestEngineAbortsOnCredentialError(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	api.createErr = &amazon.CredentialError{Err: fmt.Errorf("refresh token rejected")}
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	if _, err := engine.Start(90, 360); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run := logger.wait(t)
	if run.Status != "error" {
		t.Errorf("Run status = %q, want error", run.Status)
	}

	snap := engine.Status()
	if snap.IsRunning {
		t.Error("Run should have ended")
	}
	if !strings.Contains(snap.CurrentPhase, "Credential error") {
		t.Errorf("Phase = %q", snap.CurrentPhase)
	}
	if len(snap.BatchResults) != 0 {
		t.Errorf("No batch should complete on a credential failure, got %d", len(snap.BatchResults))
	}
}

func TestEngineHandlesEmptyReports(t *testing.T) {
	api := newFakeReportAPI("")
	store := newFakeStore()
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	if _, err := engine.Start(90, 180); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run := logger.wait(t)
	if run.Status != "success" {
		t.Errorf("Run status = %q, want success", run.Status)
	}

	snap := engine.Status()
	if len(snap.BatchResults) != 2 {
		t.Fatalf("Empty batches still get results, got %d", len(snap.BatchResults))
	}
	for _, r := range snap.BatchResults {
		if r.OrdersProcessed != 0 || r.Error != "" {
			t.Errorf("Empty batch result should be zeroed, got %+v", r)
		}
	}
	if snap.OrdersProcessed != 0 {
		t.Errorf("OrdersProcessed = %d, want 0", snap.OrdersProcessed)
	}
}

func TestEngineRestartsAfterCompletedRun(t *testing.T) {
	api := newFakeReportAPI(enginePayload)
	store := newFakeStore("SKU-A")
	logger := newFakeRunLogger()

	engine := NewEngine(api, store, testTimings())
	engine.RunLogger = logger

	if _, err := engine.Start(90, 90); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	logger.wait(t)

	// The run goroutine releases the single-flight slot right after
	// persisting the log; give it a moment
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := engine.Start(90, 90)
		if err == nil {
			break
		}
		if err != ErrAlreadyRunning {
			t.Fatalf("Restart failed: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Engine never released the single-flight slot")
		}
		time.Sleep(time.Millisecond)
	}

	run := logger.wait(t)
	if run.Status != "success" {
		t.Errorf("Second run status = %q, want success", run.Status)
	}
}

func TestEngineRejectsInvalidPlan(t *testing.T) {
	engine := NewEngine(newFakeReportAPI(""), newFakeStore(), testTimings())
	if _, err := engine.Start(0, 720); err == nil {
		t.Error("Expected error for zero batch size")
	}
	if engine.Status().IsRunning {
		t.Error("Failed start must not leave the engine running")
	}
}
