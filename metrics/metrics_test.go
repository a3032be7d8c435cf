package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("generate", "success"))
	ObserveRequest("generate", 100*time.Millisecond, nil)
	after := testutil.ToFloat64(requestsTotal.WithLabelValues("generate", "success"))

	assert.Equal(t, before+1, after)
}

func TestObserveRequest_Error(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("generate", "error"))
	ObserveRequest("generate", time.Millisecond, errors.New("boom"))
	after := testutil.ToFloat64(requestsTotal.WithLabelValues("generate", "error"))

	assert.Equal(t, before+1, after)
}

func TestLiveSessionGauge(t *testing.T) {
	base := testutil.ToFloat64(liveSessionsActive)

	LiveSessionStarted()
	assert.Equal(t, base+1, testutil.ToFloat64(liveSessionsActive))

	LiveSessionEnded()
	assert.Equal(t, base, testutil.ToFloat64(liveSessionsActive))
}

func TestAddScheduledPlayback(t *testing.T) {
	before := testutil.ToFloat64(playbackScheduledSeconds)
	AddScheduledPlayback(1.5)
	assert.InDelta(t, before+1.5, testutil.ToFloat64(playbackScheduledSeconds), 1e-9)
}
