package relay

// FailureKind is the deterministic classification of a failed operation.
// The kinds and messages here are the only failure detail a caller ever
// sees; raw provider and store errors stay inside the components.
type FailureKind string

const (
	FailureUnauthenticated   FailureKind = "unauthenticated"
	FailureConsentRequired   FailureKind = "consent_required"
	FailureExchange          FailureKind = "exchange_failed"
	FailureExchangeRetryable FailureKind = "exchange_failed_retryable"
	FailureExecution         FailureKind = "execution_failed"
	FailureNotFound          FailureKind = "not_found"
	FailureInvalidArguments  FailureKind = "invalid_arguments"
)

// Error is a caller-safe operation failure. Message is always generic
// for authentication and exchange failures; only validation errors are
// specific, since those are caller-caused.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind FailureKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
