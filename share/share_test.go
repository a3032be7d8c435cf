package share

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p := &Payload{
		Tab:     TabScript,
		Title:   "Lighthouse scene",
		Content: "INT. LIGHTHOUSE - NIGHT\n\nThe keeper climbs the stairs.",
	}

	encoded, err := Encode(p)
	require.NoError(t, err)
	// URL-safe: no padding, plus, or slash.
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecode_UnknownTabFallsBack(t *testing.T) {
	encoded, err := Encode(&Payload{Tab: "settings", Content: "x"})
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, TabScript, decoded.Tab)
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(&Payload{Content: strings.Repeat("a", MaxEncodedLen)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecode_Malformed(t *testing.T) {
	for _, input := range []string{
		"",
		"not!!base64url",
		"aGVsbG8", // valid base64url, not JSON
		strings.Repeat("a", MaxEncodedLen+1),
	} {
		_, err := Decode(input)
		assert.ErrorIs(t, err, ErrMalformedPayload, "input %q", input)
	}
}
