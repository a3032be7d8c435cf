package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LyrebirdAI/console/audio"
)

// pcmOfDuration builds 24kHz mono PCM16 lasting ms milliseconds.
func pcmOfDuration(ms int) []byte {
	samples := audio.PlaybackSampleRate * ms / 1000
	return make([]byte, samples*2)
}

func TestPlaybackScheduler_GaplessOffsets(t *testing.T) {
	// Frozen clock: all chunks arrive "instantly", so starts must stack
	// back to back at offsets 0, d1, d1+d2.
	epoch := time.Unix(1000, 0)
	p := newPlaybackScheduler(func() time.Time { return epoch })

	durations := []int{100, 250, 40}
	var wantOffset time.Duration
	for _, ms := range durations {
		start, dur := p.Schedule(pcmOfDuration(ms))
		assert.Equal(t, epoch.Add(wantOffset), start)
		assert.Equal(t, time.Duration(ms)*time.Millisecond, dur)
		wantOffset += dur
	}
}

func TestPlaybackScheduler_IdleGapResetsToNow(t *testing.T) {
	now := time.Unix(1000, 0)
	p := newPlaybackScheduler(func() time.Time { return now })

	start, _ := p.Schedule(pcmOfDuration(100))
	assert.Equal(t, now, start)

	// Clock jumps past the cursor: the next chunk plays immediately, not
	// in the past.
	now = now.Add(5 * time.Second)
	start, _ = p.Schedule(pcmOfDuration(100))
	assert.Equal(t, now, start)
}

func TestPlaybackScheduler_RateAffectsNewChunksOnly(t *testing.T) {
	epoch := time.Unix(1000, 0)
	p := newPlaybackScheduler(func() time.Time { return epoch })

	_, first := p.Schedule(pcmOfDuration(100))
	assert.Equal(t, 100*time.Millisecond, first)

	p.SetRate(2.0)
	start, second := p.Schedule(pcmOfDuration(100))
	assert.Equal(t, 50*time.Millisecond, second)
	// The already scheduled chunk keeps its full duration slot.
	assert.Equal(t, epoch.Add(100*time.Millisecond), start)
}

func TestPlaybackScheduler_RejectsBadRates(t *testing.T) {
	epoch := time.Unix(1000, 0)
	p := newPlaybackScheduler(func() time.Time { return epoch })

	p.SetRate(0)
	p.SetRate(-1)
	p.SetRate(100)

	_, dur := p.Schedule(pcmOfDuration(100))
	assert.Equal(t, 100*time.Millisecond, dur)
}

func TestPlaybackScheduler_ResetFlushesCursor(t *testing.T) {
	now := time.Unix(1000, 0)
	p := newPlaybackScheduler(func() time.Time { return now })

	p.Schedule(pcmOfDuration(500))
	p.Reset()

	start, _ := p.Schedule(pcmOfDuration(100))
	assert.Equal(t, now, start)
}
