package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Hint narrows an upstream failure to a user-actionable category. The vendor
// encodes most of this only in the error message text, so classification is
// substring matching, centralized here.
type Hint string

// Upstream failure hints.
const (
	HintNone     Hint = ""
	HintQuota    Hint = "quota"
	HintSafety   Hint = "safety"
	HintBilling  Hint = "billing"
	HintNotFound Hint = "not_found"
)

// CredentialError indicates a missing credential or an authorization or
// permission failure reported by the vendor. It is never retried
// automatically and should be surfaced as "check your API key/permissions".
type CredentialError struct {
	Message string
}

// Error implements the error interface.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %s", e.Message)
}

// UpstreamError indicates any other vendor-reported failure (quota, content
// safety, malformed request, not found). The vendor message is retained for
// display.
type UpstreamError struct {
	StatusCode int
	Status     string
	Message    string
	Hint       Hint
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream error (code %d, status %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error (code %d): %s", e.StatusCode, e.Message)
}

// TransportError indicates a network-level failure reaching the vendor at
// all, including fetching a completed video artifact.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// vendorErrorBody is the error envelope the vendor returns on non-2xx
// responses.
type vendorErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// classifyHTTPError maps a non-2xx vendor response to the local error
// taxonomy. Authorization failures become CredentialError; everything else
// becomes UpstreamError with a hint derived from the message text.
func classifyHTTPError(statusCode int, body []byte) error {
	var envelope vendorErrorBody
	message := strings.TrimSpace(string(body))
	status := ""
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		status = envelope.Error.Status
	}

	if isCredentialFailure(statusCode, status) {
		return &CredentialError{Message: message}
	}

	return &UpstreamError{
		StatusCode: statusCode,
		Status:     status,
		Message:    message,
		Hint:       classifyHint(statusCode, message),
	}
}

// isCredentialFailure reports whether the vendor classified the failure as an
// authorization/permission problem.
func isCredentialFailure(statusCode int, status string) bool {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	return false
}

// classifyHint derives a tailored hint from the vendor's message text. The
// message is the only signal the vendor provides for these cases.
func classifyHint(statusCode int, message string) Hint {
	lower := strings.ToLower(message)

	switch {
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "resource_exhausted"):
		return HintQuota
	case strings.Contains(lower, "safety"),
		strings.Contains(lower, "blocked"),
		strings.Contains(lower, "prohibited"):
		return HintSafety
	case strings.Contains(lower, "billing"),
		strings.Contains(lower, "billed"):
		return HintBilling
	case statusCode == http.StatusNotFound,
		strings.Contains(lower, "not found"):
		return HintNotFound
	default:
		return HintNone
	}
}
