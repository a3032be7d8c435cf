package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCred   bool
		wantHint   Hint
	}{
		{
			name:       "401 is a credential error",
			statusCode: http.StatusUnauthorized,
			body:       `{"error":{"code":401,"status":"UNAUTHENTICATED","message":"API key not valid"}}`,
			wantCred:   true,
		},
		{
			name:       "permission denied is a credential error",
			statusCode: http.StatusForbidden,
			body:       `{"error":{"code":403,"status":"PERMISSION_DENIED","message":"denied"}}`,
			wantCred:   true,
		},
		{
			name:       "quota exhaustion",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"Quota exceeded"}}`,
			wantHint:   HintQuota,
		},
		{
			name:       "safety block",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"Request blocked by safety filters"}}`,
			wantHint:   HintSafety,
		},
		{
			name:       "billing required",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"This model requires a billed account"}}`,
			wantHint:   HintBilling,
		},
		{
			name:       "model not found",
			statusCode: http.StatusNotFound,
			body:       `{"error":{"code":404,"message":"model not found"}}`,
			wantHint:   HintNotFound,
		},
		{
			name:       "plain server error carries no hint",
			statusCode: http.StatusInternalServerError,
			body:       `{"error":{"code":500,"message":"internal"}}`,
			wantHint:   HintNone,
		},
		{
			name:       "non-JSON body still classifies",
			statusCode: http.StatusBadGateway,
			body:       "upstream timeout",
			wantHint:   HintNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyHTTPError(tt.statusCode, []byte(tt.body))
			require.Error(t, err)

			if tt.wantCred {
				var credErr *CredentialError
				assert.ErrorAs(t, err, &credErr)
				return
			}

			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.statusCode, upErr.StatusCode)
			assert.Equal(t, tt.wantHint, upErr.Hint)
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{Op: "generate", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "generate")
}
