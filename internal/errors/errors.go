package errors

import "fmt"

// ErrorCode represents a Murmur error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrInputAccessDenied  ErrorCode = "INPUT_ACCESS_DENIED" // 403
	ErrInputAccessFailed  ErrorCode = "INPUT_ACCESS_FAILED" // 500
	ErrEmptyCapture       ErrorCode = "EMPTY_CAPTURE"       // 422
	ErrFileTooLarge       ErrorCode = "FILE_TOO_LARGE"      // 413
	ErrTranscriptionEmpty ErrorCode = "TRANSCRIPTION_EMPTY" // 502
	ErrPolishingEmpty     ErrorCode = "POLISHING_EMPTY"     // 502
	ErrTimeout            ErrorCode = "TIMEOUT"             // 504
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// MurmurError represents a structured error with code, status, and details.
type MurmurError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MurmurError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MurmurError {
	return &MurmurError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(id string) *MurmurError {
	return &MurmurError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInputAccessDenied creates an error for a refused microphone request.
// Terminal for that recording attempt; the user must retry manually.
func NewInputAccessDenied(err error) *MurmurError {
	msg := "microphone access denied"
	if err != nil {
		msg = fmt.Sprintf("microphone access denied: %v", err)
	}
	return &MurmurError{
		Code:    ErrInputAccessDenied,
		Status:  403,
		Message: msg,
	}
}

// NewInputAccessFailed creates an error for an unavailable or misconfigured
// input device.
func NewInputAccessFailed(err error) *MurmurError {
	msg := "audio input unavailable"
	if err != nil {
		msg = fmt.Sprintf("audio input unavailable: %v", err)
	}
	return &MurmurError{
		Code:    ErrInputAccessFailed,
		Status:  500,
		Message: msg,
	}
}

// NewEmptyCapture creates an error for a recording that buffered no data.
func NewEmptyCapture() *MurmurError {
	return &MurmurError{
		Code:    ErrEmptyCapture,
		Status:  422,
		Message: "recording produced no audio data",
	}
}

// NewFileTooLarge creates a 413 error when a file exceeds the upload limit.
func NewFileTooLarge(name string, max, actual int64) *MurmurError {
	return &MurmurError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file %q exceeds maximum size: %d bytes (max %d)", name, actual, max),
		Details: map[string]any{"file": name, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewTranscriptionEmpty creates an error for a transcription call that
// returned no usable text.
func NewTranscriptionEmpty() *MurmurError {
	return &MurmurError{
		Code:    ErrTranscriptionEmpty,
		Status:  502,
		Message: "transcription returned empty",
	}
}

// NewNoTranscriptions creates an error for a batch where every file
// failed to produce a transcript. Polishing is never attempted.
func NewNoTranscriptions() *MurmurError {
	return &MurmurError{
		Code:    ErrTranscriptionEmpty,
		Status:  502,
		Message: "no transcriptions generated",
	}
}

// NewPolishingEmpty creates an error for a polishing call that returned no
// usable text. Any raw transcript committed before this stage is retained.
func NewPolishingEmpty() *MurmurError {
	return &MurmurError{
		Code:    ErrPolishingEmpty,
		Status:  502,
		Message: "polishing returned empty",
	}
}

// NewTimeout creates a 504 error for a model call that exceeded the
// configured request timeout.
func NewTimeout(stage string) *MurmurError {
	return &MurmurError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s timed out", stage),
		Details: map[string]any{"stage": stage},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MurmurError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MurmurError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a MurmurError with the given code.
func Is(err error, code ErrorCode) bool {
	if mErr, ok := err.(*MurmurError); ok {
		return mErr.Code == code
	}
	return false
}
