package amazon

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient wires a client against a fake API server and a fake token
// endpoint that always grants the same token
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"test-token"}`))
	}))
	t.Cleanup(auth.Close)

	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	return NewClient(testConfig(api.URL, auth.URL)), api
}

func TestCreateReport(t *testing.T) {
	var gotBody createReportRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/reports/2021-06-30/reports" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-amz-access-token"); got != "test-token" {
			t.Errorf("Access token header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		w.Write([]byte(`{"reportId":"RPT-1"}`))
	}))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	id, err := client.CreateReport(context.Background(), ReportTypeAllOrders, start, end)
	if err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}
	if id != "RPT-1" {
		t.Errorf("Report id = %q, want RPT-1", id)
	}
	if gotBody.ReportType != ReportTypeAllOrders {
		t.Errorf("ReportType = %q", gotBody.ReportType)
	}
	if len(gotBody.MarketplaceIDs) != 1 || gotBody.MarketplaceIDs[0] != "ATVPDKIKX0DER" {
		t.Errorf("MarketplaceIDs = %v", gotBody.MarketplaceIDs)
	}
	if gotBody.DataStartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("DataStartTime = %q", gotBody.DataStartTime)
	}
	if gotBody.DataEndTime != "2026-03-31T00:00:00Z" {
		t.Errorf("DataEndTime = %q", gotBody.DataEndTime)
	}
}

func TestCreateReportRateLimited(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.CreateReport(context.Background(), ReportTypeAllOrders, time.Now().AddDate(0, 0, -90), time.Now())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestGetReport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/2021-06-30/reports/RPT-1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"reportId":"RPT-1","processingStatus":"DONE","reportDocumentId":"DOC-1"}`))
	}))

	report, err := client.GetReport(context.Background(), "RPT-1")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.ProcessingStatus != ReportStatusDone {
		t.Errorf("ProcessingStatus = %q", report.ProcessingStatus)
	}
	if report.ReportDocumentID != "DOC-1" {
		t.Errorf("ReportDocumentID = %q", report.ReportDocumentID)
	}
}

func TestGetReportDocumentRequiresURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reportDocumentId":"DOC-1"}`))
	}))

	if _, err := client.GetReportDocument(context.Background(), "DOC-1"); err == nil {
		t.Error("Expected error for document without download URL")
	}
}

func TestDownloadDocumentPlain(t *testing.T) {
	payload := "amazon-order-id\tsku\nA\tSKU-1\n"
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer files.Close()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	got, err := client.DownloadDocument(context.Background(), &ReportDocument{URL: files.URL})
	if err != nil {
		t.Fatalf("DownloadDocument failed: %v", err)
	}
	if got != payload {
		t.Errorf("Payload = %q", got)
	}
}

func TestDownloadDocumentGzip(t *testing.T) {
	payload := "amazon-order-id\tsku\nA\tSKU-1\n"
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte(payload))
		gz.Close()
	}))
	defer files.Close()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	got, err := client.DownloadDocument(context.Background(), &ReportDocument{
		URL:                  files.URL,
		CompressionAlgorithm: "GZIP",
	})
	if err != nil {
		t.Fatalf("DownloadDocument failed: %v", err)
	}
	if got != payload {
		t.Errorf("Decompressed payload = %q", got)
	}
}

func TestDoJSONSurfacesAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":"Unauthorized"}]}`))
	}))

	_, err := client.GetReport(context.Background(), "RPT-1")
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("403 must not be reported as rate limiting")
	}
}

func TestClientPropagatesCredentialError(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer auth.Close()

	client := NewClient(testConfig("http://unused.invalid", auth.URL))

	var credErr *CredentialError
	if _, err := client.GetReport(context.Background(), "RPT-1"); !errors.As(err, &credErr) {
		t.Errorf("Expected CredentialError, got %v", err)
	}
}
