package bridge

import "fmt"

// Code identifies a bridge failure on the wire
type Code string

const (
	CodeAlreadyListening  Code = "ALREADY_LISTENING"
	CodeNotListening      Code = "NOT_LISTENING"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeFingerprintError  Code = "FINGERPRINT_ERROR"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotSetUp          Code = "NOT_SET_UP"
	CodeSetUpFailed       Code = "SETUP_FAILED"
	CodeRecordingError    Code = "RECORDING_ERROR"
	CodeRecognitionError  Code = "RECOGNITION_ERROR"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodePermissionPending Code = "PERMISSION_PENDING"
	CodeInvalidMessage    Code = "INVALID_MESSAGE"
)

// Error is a failure reported to the caller of an operation
type Error struct {
	Code    Code   `json:"error_code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with a formatted message
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// failureCodes maps each operation to the code reported when its vendor call
// panics.
var failureCodes = map[string]Code{
	MethodSetUp:                CodeSetUpFailed,
	MethodListen:               CodeRecordingError,
	MethodCancel:               CodeRecordingError,
	MethodCreateFingerprint:    CodeFingerprintError,
	MethodRecognizeFingerprint: CodeRecognitionError,
}
