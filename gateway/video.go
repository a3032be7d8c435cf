package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LyrebirdAI/console/jobs"
	"github.com/LyrebirdAI/console/metrics"
)

// VideoRequest describes one video generation job submission.
type VideoRequest struct {
	Prompt      string
	AspectRatio string // e.g. "16:9"
	Resolution  string // e.g. "720p"
}

// StartVideoJob submits a video generation job and returns the operation
// name used for subsequent polls.
func (g *Gateway) StartVideoJob(ctx context.Context, req VideoRequest) (string, error) {
	start := time.Now()
	name, err := g.startVideoJob(ctx, req)
	metrics.ObserveRequest("start_video_job", time.Since(start), err)
	return name, err
}

func (g *Gateway) startVideoJob(ctx context.Context, req VideoRequest) (string, error) {
	apiReq := videoRequest{
		Instances: []videoInstance{{Prompt: req.Prompt}},
		Parameters: videoParameters{
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
		},
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", g.baseURL, g.videoModel, g.apiKey)
	respBody, err := g.doJSON(ctx, "start_video_job", url, apiReq)
	if err != nil {
		return "", err
	}

	var op videoOperation
	if err := json.Unmarshal(respBody, &op); err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if op.Name == "" {
		return "", &UpstreamError{Message: "no operation name in response"}
	}

	return op.Name, nil
}

// PollVideoJob fetches the current status of a video generation operation.
// Numeric progress is surfaced verbatim when present; otherwise only the
// coarse phase label is set and Progress is -1.
func (g *Gateway) PollVideoJob(ctx context.Context, name string) (jobs.Status, error) {
	url := fmt.Sprintf("%s/%s?key=%s", g.baseURL, strings.TrimPrefix(name, "/"), g.apiKey)
	respBody, err := g.doGET(ctx, "poll_video_job", url)
	if err != nil {
		return jobs.Status{}, err
	}

	var op videoOperation
	if err := json.Unmarshal(respBody, &op); err != nil {
		return jobs.Status{}, &UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if op.Error != nil {
		return jobs.Status{}, &UpstreamError{
			StatusCode: op.Error.Code,
			Status:     op.Error.Status,
			Message:    op.Error.Message,
			Hint:       classifyHint(op.Error.Code, op.Error.Message),
		}
	}

	status := jobs.Status{Done: op.Done, Progress: -1}
	if op.Metadata != nil {
		if op.Metadata.ProgressPercent != nil {
			status.Progress = *op.Metadata.ProgressPercent
		}
		status.Phase = strings.ToLower(op.Metadata.State)
	}

	if op.Done && len(op.Response) > 0 {
		var resp videoOperationResponse
		if err := json.Unmarshal(op.Response, &resp); err == nil {
			status.ResultURI = firstVideoURI(&resp)
		}
	}

	return status, nil
}

// DownloadVideo fetches a completed video artifact by its result URI.
func (g *Gateway) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	start := time.Now()

	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	data, err := g.doGET(ctx, "download_video", uri+sep+"key="+g.apiKey)
	metrics.ObserveRequest("download_video", time.Since(start), err)
	return data, err
}

// firstVideoURI extracts the first generated sample's URI, if any.
func firstVideoURI(resp *videoOperationResponse) string {
	if resp.GenerateVideoResponse == nil {
		return ""
	}
	for _, sample := range resp.GenerateVideoResponse.GeneratedSamples {
		if sample.Video != nil && sample.Video.URI != "" {
			return sample.Video.URI
		}
	}
	return ""
}
