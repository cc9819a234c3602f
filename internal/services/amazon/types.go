package amazon

import (
	"errors"
	"fmt"
)

// Report processing statuses returned by the reports API
const (
	ReportStatusDone       = "DONE"
	ReportStatusCancelled  = "CANCELLED"
	ReportStatusFatal      = "FATAL"
	ReportStatusInQueue    = "IN_QUEUE"
	ReportStatusInProgress = "IN_PROGRESS"
)

// ReportTypeAllOrders is the flat-file order report used for historical imports
const ReportTypeAllOrders = "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL"

// ErrRateLimited is returned when the provider answers 429
var ErrRateLimited = errors.New("rate limited by provider")

// CredentialError wraps a failed token exchange. It is fatal to a whole
// sync run and never retried.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ReportError is a provider-side report failure (CANCELLED/FATAL status)
type ReportError struct {
	ReportID string
	Status   string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s failed with status %s", e.ReportID, e.Status)
}

// createReportRequest is the JSON body for report creation
type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
	DataStartTime  string   `json:"dataStartTime"`
	DataEndTime    string   `json:"dataEndTime"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

// Report is the status record of a requested report
type Report struct {
	ReportID         string `json:"reportId"`
	ProcessingStatus string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId"`
}

// ReportDocument points at the downloadable payload
type ReportDocument struct {
	ReportDocumentID     string `json:"reportDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm"` // "GZIP" or empty
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
