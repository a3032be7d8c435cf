// Package media provides image helpers for the console: JPEG encoding of
// captured camera frames for the live channel, downscaling of analysis
// uploads, MIME inference, and base64 transport conversion.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// MIME type constants.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"
)

// Frame encoding defaults. Camera stills sent on the live channel are kept
// small: they ride the same socket as the audio stream.
const (
	DefaultFrameMaxWidth  = 640
	DefaultFrameMaxHeight = 480
	DefaultFrameQuality   = 70

	DefaultAnalysisMaxDim = 1024
	DefaultQuality        = 85
)

// EncodeFrameJPEG downscales an image to fit within maxWidth x maxHeight
// (preserving aspect ratio) and encodes it as JPEG at the given quality.
func EncodeFrameJPEG(img image.Image, maxWidth, maxHeight, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if quality <= 0 {
		quality = DefaultFrameQuality
	}

	bounds := img.Bounds()
	width, height := fitDimensions(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// Downscale re-encodes arbitrary image bytes so the longest side fits within
// maxDim, preserving the original format where possible (JPEG fallback).
// Images already within the limit are returned unchanged.
func Downscale(data []byte, maxDim int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	if maxDim <= 0 {
		maxDim = DefaultAnalysisMaxDim
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return data, FormatToMIMEType(format), nil
	}

	width, height := fitDimensions(bounds.Dx(), bounds.Dy(), maxDim, maxDim)
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, scaled)
		format = "png"
	default:
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: DefaultQuality})
		format = "jpeg"
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), FormatToMIMEType(format), nil
}

// ToBase64 converts raw media bytes to the base64 form the API's inlineData
// fields expect.
func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromBase64 converts base64 inlineData back to raw bytes.
func FromBase64(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 media: %w", err)
	}
	return data, nil
}

// FormatToMIMEType maps an image format name to its MIME type.
// Unknown formats default to JPEG.
func FormatToMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return MIMETypeJPEG
	case "png":
		return MIMETypePNG
	case "gif":
		return MIMETypeGIF
	case "webp":
		return MIMETypeWebP
	default:
		return MIMETypeJPEG
	}
}

// InferKind classifies a MIME type as "image", "audio", or "video".
// Unknown types return an empty string.
func InferKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return ""
	}
}

// fitDimensions shrinks (w, h) to fit within (maxW, maxH) preserving aspect
// ratio. Dimensions already within bounds are returned unchanged.
func fitDimensions(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 {
		return w, h
	}

	scale := 1.0
	if w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	if scale >= 1.0 {
		return w, h
	}

	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)
	return newW, newH
}
