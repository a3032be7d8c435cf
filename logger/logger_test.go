package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSensitiveData_GoogleKey(t *testing.T) {
	input := "calling https://api.example.com with AIzaSyA1234567890abcdefghijklmnopqrstuvw"
	result := RedactSensitiveData(input)

	assert.NotContains(t, result, "AIzaSyA1234567890abcdefghijklmnopqrstuvw")
	assert.Contains(t, result, "[REDACTED]")
}

func TestRedactSensitiveData_QueryStringKey(t *testing.T) {
	input := "POST /v1beta/models/gen:generateContent?key=abcdefghij1234567890xyz"
	result := RedactSensitiveData(input)

	assert.NotContains(t, result, "abcdefghij1234567890xyz")
	assert.Contains(t, result, "key=[REDACTED]")
}

func TestRedactSensitiveData_BearerToken(t *testing.T) {
	input := "Authorization: Bearer abc.def.ghi"
	result := RedactSensitiveData(input)

	assert.Equal(t, "Authorization: Bearer [REDACTED]", result)
}

func TestRedactSensitiveData_NoSensitiveData(t *testing.T) {
	input := "plain log line with nothing secret"
	assert.Equal(t, input, RedactSensitiveData(input))
}
