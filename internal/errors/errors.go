/**
 * Structured error types for the hybrid OCR worker.
 *
 * Every failure a job can surface carries a stable code so the API layer
 * and the task table can present it without parsing message strings.
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error codes recorded on failed tasks.
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeEngineFailed      = "ENGINE_FAILED"
	CodeRuleLoadFailed    = "RULE_LOAD_FAILED"
	CodeStorageFailed     = "STORAGE_FAILED"
	CodeProcessingTimeout = "PROCESSING_TIMEOUT"
	CodeCropFailed        = "CROP_FAILED"
	CodeInvalidInput      = "INVALID_INPUT"
)

// ProcessingError is the error type attached to a failed document job.
type ProcessingError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	JobID     string                 `json:"job_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// ToMap renders the error for JSON persistence on the task row.
func (e *ProcessingError) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"code":      e.Code,
		"message":   e.Message,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.JobID != "" {
		m["job_id"] = e.JobID
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.Error()
	}
	return m
}

func newError(code, message, jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		Message:   message,
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewUnsupportedFormat reports a file the worker cannot process. Terminal:
// the job fails without partial output.
func NewUnsupportedFormat(jobID, mimeType string) *ProcessingError {
	e := newError(CodeUnsupportedFormat, fmt.Sprintf("unsupported file format: %s", mimeType), jobID, nil)
	e.Details = map[string]interface{}{"mime_type": mimeType}
	return e
}

// NewEngineFailed reports a recognition engine error on one page.
func NewEngineFailed(jobID, engine string, cause error) *ProcessingError {
	e := newError(CodeEngineFailed, fmt.Sprintf("engine %s failed", engine), jobID, cause)
	e.Details = map[string]interface{}{"engine": engine}
	return e
}

// NewRuleLoadFailed reports a correction rule source that could not be read.
func NewRuleLoadFailed(source string, cause error) *ProcessingError {
	e := newError(CodeRuleLoadFailed, fmt.Sprintf("failed to load rules from %s", source), "", cause)
	e.Details = map[string]interface{}{"source": source}
	return e
}

// NewStorageFailed reports a persistence failure for the job.
func NewStorageFailed(jobID, operation string, cause error) *ProcessingError {
	e := newError(CodeStorageFailed, fmt.Sprintf("storage operation %s failed", operation), jobID, cause)
	e.Details = map[string]interface{}{"operation": operation}
	return e
}

// NewProcessingTimeout reports that the job exceeded its deadline.
func NewProcessingTimeout(jobID string, timeout time.Duration) *ProcessingError {
	e := newError(CodeProcessingTimeout, fmt.Sprintf("processing exceeded %s", timeout), jobID, nil)
	e.Details = map[string]interface{}{"timeout_seconds": timeout.Seconds()}
	return e
}

// NewCropFailed reports a region crop that could not be produced.
func NewCropFailed(jobID string, regionID int, cause error) *ProcessingError {
	e := newError(CodeCropFailed, fmt.Sprintf("failed to crop region %d", regionID), jobID, cause)
	e.Details = map[string]interface{}{"region_id": regionID}
	return e
}

// NewInvalidInput reports a malformed job payload.
func NewInvalidInput(jobID, reason string) *ProcessingError {
	return newError(CodeInvalidInput, reason, jobID, nil)
}

// AsProcessingError unwraps err to a *ProcessingError when one is in the chain.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
