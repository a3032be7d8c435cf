package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateImage(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	var gotReq imageRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(imageResponse{
			Predictions: []imagePrediction{{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(raw),
				MimeType:           "image/png",
			}},
		})
	})

	result, err := g.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "a lighthouse",
		AspectRatio: "16:9",
	})

	require.NoError(t, err)
	assert.Equal(t, raw, result.Data)
	assert.Equal(t, "image/png", result.MimeType)
	require.Len(t, gotReq.Instances, 1)
	assert.Equal(t, "a lighthouse", gotReq.Instances[0].Prompt)
	assert.Equal(t, "16:9", gotReq.Parameters.AspectRatio)
	assert.Equal(t, 1, gotReq.Parameters.SampleCount)
}

func TestGenerateImage_EmptyPredictions(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(imageResponse{})
	})

	_, err := g.GenerateImage(context.Background(), ImageRequest{Prompt: "blocked"})

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, HintSafety, upErr.Hint)
}
