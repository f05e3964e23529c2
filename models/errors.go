package models

import "fmt"

// Error codes used in logging and internal error handling. The codes mirror
// the scopes at which failures are handled: FATAL_INIT and exhausted
// SEARCH_FAILED abort the run, ROW_FAILED is contained at the row boundary,
// CAPTURE_FAILED is contained inside document capture, and the rest are
// logged and ignored.
const (
	ErrCodeFatalInit      = "FATAL_INIT"
	ErrCodeSearchFailed   = "SEARCH_FAILED"
	ErrCodeRowFailed      = "ROW_FAILED"
	ErrCodeCaptureFailed  = "CAPTURE_FAILED"
	ErrCodeCheckpointRead = "CHECKPOINT_READ_FAILED"
	ErrCodeExportFailed   = "EXPORT_FAILED"
)

// PipelineError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PipelineError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}
