package resilience

import (
	"time"

	"github.com/sells-group/openers/internal/model"
)

// Error classes recorded on DLQ entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DLQEntry is a lead whose result could not be delivered and can be retried
// later. Result is nil when the failure happened before a line existed.
type DLQEntry struct {
	ID           string        `json:"id"`
	Lead         model.Lead    `json:"lead"`
	Result       *model.Result `json:"result,omitempty"`
	Error        string        `json:"error"`
	ErrorType    string        `json:"error_type"` // "transient" or "permanent"
	FailedPhase  string        `json:"failed_phase,omitempty"`
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	NextRetryAt  time.Time     `json:"next_retry_at"`
	CreatedAt    time.Time     `json:"created_at"`
	LastFailedAt time.Time     `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// NewDLQEntry builds an entry for a failed delivery. Transient failures are
// retried after backoff; permanent ones get a single manual retry.
func NewDLQEntry(lead model.Lead, result *model.Result, phase string, err error, now time.Time) DLQEntry {
	errType := ClassifyError(err)
	maxRetries := 3
	if errType == ErrorPermanent {
		maxRetries = 1
	}
	return DLQEntry{
		Lead:         lead,
		Result:       result,
		Error:        err.Error(),
		ErrorType:    errType,
		FailedPhase:  phase,
		MaxRetries:   maxRetries,
		NextRetryAt:  NextRetryAt(0, now),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

// NextRetryAt returns when an entry that has failed retryCount times may be
// tried again: 1m, 5m, 25m, capped at 2h.
func NextRetryAt(retryCount int, now time.Time) time.Time {
	delay := time.Minute
	for i := 0; i < retryCount; i++ {
		delay *= 5
		if delay >= 2*time.Hour {
			delay = 2 * time.Hour
			break
		}
	}
	return now.Add(delay)
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}
