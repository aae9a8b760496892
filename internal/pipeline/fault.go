package pipeline

// Error codes surfaced in failed results. The boundary layer renders these
// verbatim, so the strings are load-bearing for existing callers.
const (
	CodePromptNotFound    = "PROMPT_NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeExecutionFailed   = "EXECUTION_FAILED"
	CodeNetworkError      = "NETWORK_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeBlockchainError   = "BLOCKCHAIN_ERROR"
)

// Fault is the structured error carried inside a failed result. The pipeline
// never lets a raw error escape to its caller; every failure becomes one of
// these.
type Fault struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *Fault) Error() string {
	return f.Code + ": " + f.Message
}
