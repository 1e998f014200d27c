package common

import (
	"errors"
	"fmt"
)

// Error codes, one per failure kind the tool can surface. Pre-run codes
// (config, credentials, input path) are fatal; the rest are caught at the
// document boundary.
const (
	CodeConfigNotFound         = "CONFIG_NOT_FOUND"
	CodeConfigParseError       = "CONFIG_PARSE_ERROR"
	CodePathNotFound           = "PATH_NOT_FOUND"
	CodeUnsupportedFileType    = "UNSUPPORTED_FILE_TYPE"
	CodeNoDocumentsFound       = "NO_DOCUMENTS_FOUND"
	CodeExtractionServiceError = "EXTRACTION_SERVICE_ERROR"
	CodeExtractionTimeout      = "EXTRACTION_TIMEOUT"
	CodeTemplateError          = "TEMPLATE_ERROR"
	CodePromptTooLarge         = "PROMPT_TOO_LARGE"
	CodeCompletionServiceError = "COMPLETION_SERVICE_ERROR"
	CodeCompletionTimeout      = "COMPLETION_TIMEOUT"
	CodeMalformedResponse      = "MALFORMED_RESPONSE"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeWriteError             = "WRITE_ERROR"
	CodeMissingCredential      = "MISSING_CREDENTIAL"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewAppErrorf(code string, cause error, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// ErrorCode returns the code of the outermost AppError in err's chain,
// or "UNKNOWN" when there is none.
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "UNKNOWN"
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
