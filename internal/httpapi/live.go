package httpapi

import (
	"bytes"
	"encoding/base64"
	"image"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LyrebirdAI/console/audio"
	"github.com/LyrebirdAI/console/live"
	"github.com/LyrebirdAI/console/logger"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
}

// liveClientMessage is one browser-to-bridge frame. Type selects the
// payload: "audio" carries base64 PCM16 (sample_rate defaults to the
// 16kHz upload rate), "frame" a base64-encoded camera still, "text" a
// typed user turn, "rate" a playback rate change.
type liveClientMessage struct {
	Type       string  `json:"type"`
	Data       string  `json:"data,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty"`
	Text       string  `json:"text,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
}

// liveServerMessage is one bridge-to-browser frame mirroring session
// events: "audio" (base64 PCM with its playback schedule), "text",
// "transcript", "interrupted", "turn_complete", and a final "closed".
type liveServerMessage struct {
	Type       string     `json:"type"`
	Data       string     `json:"data,omitempty"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	Text       string     `json:"text,omitempty"`
	Speaker    string     `json:"speaker,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// handleLive bridges a browser WebSocket onto an upstream live session:
// microphone audio, camera frames, and typed text go up; scheduled audio,
// text, and transcript events come back down. Voice, system instruction,
// transcription opt-in, and a model override come from query parameters.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.live.URL == "" || s.live.APIKey == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "live sessions are not configured", Kind: "unavailable"})
		return
	}

	q := r.URL.Query()
	cfg := live.Config{
		URL:        s.live.URL + "?key=" + url.QueryEscape(s.live.APIKey),
		Model:      s.live.Model,
		Voice:      q.Get("voice"),
		System:     q.Get("system"),
		Transcribe: q.Get("transcribe") == "true",
	}
	if model := q.Get("model"); model != "" {
		cfg.Model = model
	}

	browser, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer browser.Close()

	session, err := live.Connect(r.Context(), cfg)
	if err != nil {
		logger.Warn("live upstream connect failed", "error", err)
		browser.WriteJSON(liveServerMessage{Type: "closed", Error: err.Error()})
		return
	}
	defer session.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		forwardLiveEvents(browser, session)
	}()

	for {
		var msg liveClientMessage
		if err := browser.ReadJSON(&msg); err != nil {
			break
		}
		if err := dispatchLiveMessage(session, msg); err != nil {
			break
		}
	}

	session.Close()
	<-writerDone
}

// forwardLiveEvents is the single writer on the browser connection. It
// drains session events and sends a close frame once the session ends so
// the read loop unblocks.
func forwardLiveEvents(browser *websocket.Conn, session *live.Session) {
	for ev := range session.Events() {
		msg, ok := liveEventMessage(ev)
		if !ok {
			continue
		}
		if err := browser.WriteJSON(msg); err != nil {
			return
		}
	}
	deadline := time.Now().Add(time.Second)
	browser.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func liveEventMessage(ev live.Event) (liveServerMessage, bool) {
	switch ev.Type {
	case live.EventAudio:
		encoded, err := audio.EncodePCM(ev.PCM)
		if err != nil {
			return liveServerMessage{}, false
		}
		start := ev.StartAt
		return liveServerMessage{
			Type:       "audio",
			Data:       encoded,
			StartAt:    &start,
			DurationMs: ev.Duration.Milliseconds(),
		}, true
	case live.EventText:
		return liveServerMessage{Type: "text", Text: ev.Text}, true
	case live.EventTranscript:
		return liveServerMessage{Type: "transcript", Speaker: ev.Speaker, Text: ev.Text}, true
	case live.EventInterrupted:
		return liveServerMessage{Type: "interrupted"}, true
	case live.EventTurnComplete:
		return liveServerMessage{Type: "turn_complete"}, true
	case live.EventClosed:
		msg := liveServerMessage{Type: "closed"}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		return msg, true
	}
	return liveServerMessage{}, false
}

func dispatchLiveMessage(session *live.Session, msg liveClientMessage) error {
	switch msg.Type {
	case "audio":
		return forwardAudio(session, msg)
	case "frame":
		return forwardFrame(session, msg)
	case "text":
		return session.SendText(msg.Text)
	case "rate":
		session.SetPlaybackRate(msg.Rate)
		return nil
	default:
		logger.Debug("ignoring unknown live message", "type", msg.Type)
		return nil
	}
}

// forwardAudio normalizes a microphone chunk to the upload format:
// resampled to 16kHz when captured at another rate, then split into
// capture-sized frames. Undecodable chunks are dropped, not fatal.
func forwardAudio(session *live.Session, msg liveClientMessage) error {
	pcm, err := audio.DecodePCM(msg.Data)
	if err != nil {
		logger.Debug("dropping undecodable audio chunk", "error", err)
		return nil
	}

	if msg.SampleRate != 0 && msg.SampleRate != audio.UploadSampleRate {
		pcm, err = audio.ResamplePCM16(pcm, msg.SampleRate, audio.UploadSampleRate)
		if err != nil {
			logger.Debug("dropping unresamplable audio chunk", "error", err)
			return nil
		}
	}

	frames, err := audio.SplitFrames(pcm, audio.DefaultFrameSize)
	if err != nil {
		return nil
	}
	for _, frame := range frames {
		if err := session.SendAudio(frame.Data); err != nil {
			return err
		}
	}
	return nil
}

func forwardFrame(session *live.Session, msg liveClientMessage) error {
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		logger.Debug("dropping undecodable camera frame", "error", err)
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Debug("dropping unparseable camera frame", "error", err)
		return nil
	}
	return session.SendFrame(img)
}
