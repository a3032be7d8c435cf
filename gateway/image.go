package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LyrebirdAI/console/media"
	"github.com/LyrebirdAI/console/metrics"
)

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Prompt      string
	AspectRatio string // e.g. "1:1", "16:9"
}

// ImageResult is one generated image.
type ImageResult struct {
	Data     []byte
	MimeType string
}

// GenerateImage generates a single image from a prompt.
func (g *Gateway) GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	start := time.Now()
	result, err := g.generateImage(ctx, req)
	metrics.ObserveRequest("generate_image", time.Since(start), err)
	return result, err
}

func (g *Gateway) generateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	apiReq := imageRequest{
		Instances: []imageInstance{{Prompt: req.Prompt}},
		Parameters: imageParameters{
			SampleCount: 1,
			AspectRatio: req.AspectRatio,
		},
	}

	url := fmt.Sprintf("%s/models/%s:predict?key=%s", g.baseURL, g.imageModel, g.apiKey)
	respBody, err := g.doJSON(ctx, "generate_image", url, apiReq)
	if err != nil {
		return ImageResult{}, err
	}

	var apiResp imageResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return ImageResult{}, &UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if len(apiResp.Predictions) == 0 {
		return ImageResult{}, &UpstreamError{
			Message: "no image in response",
			Hint:    HintSafety, // the common cause: filtered output
		}
	}

	prediction := apiResp.Predictions[0]
	data, err := media.FromBase64(prediction.BytesBase64Encoded)
	if err != nil {
		return ImageResult{}, &UpstreamError{Message: fmt.Sprintf("undecodable image payload: %v", err)}
	}

	mimeType := prediction.MimeType
	if mimeType == "" {
		mimeType = media.MIMETypePNG
	}

	return ImageResult{Data: data, MimeType: mimeType}, nil
}
