package live

import (
	"sync"
	"time"

	"github.com/LyrebirdAI/console/audio"
	"github.com/LyrebirdAI/console/metrics"
)

// PlaybackScheduler assigns a start time to each received audio chunk so
// playback is gapless: a chunk starts at the later of now and the end of
// the previously scheduled chunk. A rate multiplier shortens or stretches
// chunks scheduled after it changes; chunks already scheduled keep their
// timing.
type PlaybackScheduler struct {
	mu     sync.Mutex
	now    func() time.Time
	cursor time.Time
	rate   float64
}

// NewPlaybackScheduler returns a scheduler using the wall clock.
func NewPlaybackScheduler() *PlaybackScheduler {
	return newPlaybackScheduler(time.Now)
}

func newPlaybackScheduler(now func() time.Time) *PlaybackScheduler {
	return &PlaybackScheduler{now: now, rate: 1.0}
}

// SetRate updates the playback rate multiplier for subsequently scheduled
// chunks. Values outside (0, 4] are ignored.
func (p *PlaybackScheduler) SetRate(rate float64) {
	if rate <= 0 || rate > 4 {
		return
	}
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
}

// Schedule assigns playback timing for a 24kHz mono PCM16 chunk and
// returns its start time and effective duration.
func (p *PlaybackScheduler) Schedule(pcm []byte) (start time.Time, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seconds := audio.Duration(pcm, audio.PlaybackSampleRate) / p.rate
	duration = time.Duration(seconds * float64(time.Second))

	start = p.now()
	if p.cursor.After(start) {
		start = p.cursor
	}
	p.cursor = start.Add(duration)

	metrics.AddScheduledPlayback(duration.Seconds())
	return start, duration
}

// Reset drops the cursor so the next chunk plays immediately. Used after
// the model is interrupted and queued audio is flushed.
func (p *PlaybackScheduler) Reset() {
	p.mu.Lock()
	p.cursor = time.Time{}
	p.mu.Unlock()
}
