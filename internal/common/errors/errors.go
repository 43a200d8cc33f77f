package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Input validation
	ErrCodeCaseContextMissing    ErrorCode = "CASE_CONTEXT_MISSING"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeCaseFinancialsMissing ErrorCode = "CASE_FINANCIALS_MISSING"
	ErrCodeIncomeNotComputed     ErrorCode = "INCOME_NOT_COMPUTED"

	// Evidence
	ErrCodeExtractionParseFailed  ErrorCode = "EXTRACTION_PARSE_FAILED"
	ErrCodeDataIntegrityViolation ErrorCode = "DATA_INTEGRITY_VIOLATION"
	ErrCodeStatutoryTablesInvalid ErrorCode = "STATUTORY_TABLES_INVALID"

	// Document-understanding collaborator
	ErrCodeDocIntelUnavailable ErrorCode = "DOCINTEL_UNAVAILABLE"
	ErrCodeDocIntelTimeout     ErrorCode = "DOCINTEL_TIMEOUT"

	// Storage
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeCaseLockTimeout          ErrorCode = "CASE_LOCK_TIMEOUT"
	ErrCodeCaseLockFailed           ErrorCode = "CASE_LOCK_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewCaseContextMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCaseContextMissing,
		Message:   "Required case context is missing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCaseFinancialsMissingError(caseID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCaseFinancialsMissing,
		Message:   "No financial facts recorded for case",
		Details:   fmt.Sprintf("caseId: %s", caseID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewIncomeNotComputedError(caseID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncomeNotComputed,
		Message:   "Income has not been reconciled for case",
		Details:   fmt.Sprintf("caseId: %s", caseID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExtractionParseFailedError(extractionID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionParseFailed,
		Message:   "Extraction could not be parsed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"extractionId": extractionID},
		Timestamp: time.Now().UTC(),
	}
}

func NewDataIntegrityViolationError(extractionID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataIntegrityViolation,
		Message:   "Evidence violates a data integrity invariant",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"extractionId": extractionID},
		Timestamp: time.Now().UTC(),
	}
}

func NewStatutoryTablesInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatutoryTablesInvalid,
		Message:   "Statutory tables are invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocIntelUnavailableError(documentID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocIntelUnavailable,
		Message:   "Document intelligence service error",
		Details:   fmt.Sprintf("documentId: %s, error: %s", documentID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocIntelTimeoutError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocIntelTimeout,
		Message:   "Document intelligence service timeout",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCaseLockTimeoutError(caseID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCaseLockTimeout,
		Message:   "Timed out waiting for case lock",
		Details:   fmt.Sprintf("caseId: %s", caseID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCaseLockFailedError(caseID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCaseLockFailed,
		Message:   "Case lock operation failed",
		Details:   fmt.Sprintf("caseId: %s, error: %s", caseID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeCaseContextMissing:       "CASE_CONTEXT_MISSING",
	ErrCodeInvalidRequest:           "INVALID_REQUEST",
	ErrCodeCaseFinancialsMissing:    "CASE_FINANCIALS_MISSING",
	ErrCodeIncomeNotComputed:        "INCOME_NOT_COMPUTED",
	ErrCodeExtractionParseFailed:    "EXTRACTION_PARSE_FAILED",
	ErrCodeDataIntegrityViolation:   "DATA_INTEGRITY_VIOLATION",
	ErrCodeStatutoryTablesInvalid:   "STATUTORY_TABLES_INVALID",
	ErrCodeDocIntelUnavailable:      "DOCINTEL_UNAVAILABLE",
	ErrCodeDocIntelTimeout:          "DOCINTEL_TIMEOUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeCaseLockTimeout:          "CASE_LOCK_TIMEOUT",
	ErrCodeCaseLockFailed:           "CASE_LOCK_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeCaseLockFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeDocIntelUnavailable:
		return 3
	case ErrCodeQueryTimeout,
		ErrCodeCaseLockTimeout,
		ErrCodeDocIntelTimeout:
		return 2
	default:
		// validation and integrity errors go straight to the BPMN boundary
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err is, or wraps, a StandardError with code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CASE_CONTEXT") || strings.Contains(codeStr, "INVALID_REQUEST") || strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "NOT_COMPUTED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "INTEGRITY") || strings.Contains(codeStr, "TABLES"):
		return "EVIDENCE"
	case strings.Contains(codeStr, "DOCINTEL"):
		return "COLLABORATOR"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "LOCK"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
