package gateway

import "encoding/json"

// Vendor API request/response envelope for text generation. The shapes mirror
// the generateContent family of endpoints.

type apiRequest struct {
	Contents          []apiContent `json:"contents"`
	SystemInstruction *apiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  apiGenConfig `json:"generationConfig"`
	Tools             []apiTool    `json:"tools,omitempty"`
	SafetySettings    []apiSafety  `json:"safetySettings,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inlineData,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type apiGenConfig struct {
	Temperature        float32  `json:"temperature,omitempty"`
	TopK               int      `json:"topK,omitempty"`
	TopP               float32  `json:"topP,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type apiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type apiSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type apiResponse struct {
	Candidates     []apiCandidate  `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type apiCandidate struct {
	Content           apiContent         `json:"content"`
	FinishReason      string             `json:"finishReason"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// groundingMetadata carries the citations for search-grounded generation.
type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks,omitempty"`
}

type groundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

// Image generation (predict-style endpoint).

type imageRequest struct {
	Instances  []imageInstance `json:"instances"`
	Parameters imageParameters `json:"parameters"`
}

type imageInstance struct {
	Prompt string `json:"prompt"`
}

type imageParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type imageResponse struct {
	Predictions []imagePrediction `json:"predictions"`
}

type imagePrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

// Video generation (long-running operation endpoints).

type videoRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type videoInstance struct {
	Prompt string `json:"prompt"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

type videoOperation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Metadata *videoMetadata  `json:"metadata,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type videoMetadata struct {
	ProgressPercent *int   `json:"progressPercent,omitempty"`
	State           string `json:"state,omitempty"`
}

type videoOperationResponse struct {
	GenerateVideoResponse *struct {
		GeneratedSamples []struct {
			Video *struct {
				URI string `json:"uri"`
			} `json:"video,omitempty"`
		} `json:"generatedSamples,omitempty"`
	} `json:"generateVideoResponse,omitempty"`
}
