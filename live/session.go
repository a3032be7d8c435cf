// Package live runs a duplex voice and video conversation over the
// vendor's bidirectional WebSocket API: microphone audio and camera frames
// go up as realtime input, synthesized speech and transcriptions come back
// down. The session owns the connection lifecycle, playback scheduling,
// and transcript assembly.
package live

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/LyrebirdAI/console/audio"
	"github.com/LyrebirdAI/console/internal/streaming"
	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/media"
	"github.com/LyrebirdAI/console/metrics"
	"github.com/LyrebirdAI/console/types"
)

// Camera frames are throttled to this rate regardless of how fast the
// caller captures them.
const framesPerSecond = 5

// Camera frames are downscaled and recompressed before upload.
const (
	frameMaxWidth    = 640
	frameMaxHeight   = 480
	frameJPEGQuality = 70
)

const (
	uploadMimeType = "audio/pcm;rate=16000"
	frameMimeType  = "image/jpeg"

	setupTimeout = 10 * time.Second
	heartbeat    = 30 * time.Second
)

// ErrSessionClosed is returned by sends on a closed session.
var ErrSessionClosed = errors.New("live session closed")

// EventType distinguishes session events.
type EventType string

// Session event types.
const (
	// EventAudio carries a decoded model audio chunk with its playback
	// schedule.
	EventAudio EventType = "audio"
	// EventText carries literal text output from the model turn.
	EventText EventType = "text"
	// EventTranscript signals the transcript changed, either a partial
	// fragment or a completed turn.
	EventTranscript EventType = "transcript"
	// EventInterrupted signals the model was cut off; queued playback
	// should be flushed.
	EventInterrupted EventType = "interrupted"
	// EventTurnComplete signals the model finished its turn.
	EventTurnComplete EventType = "turn_complete"
	// EventClosed is the final event on the channel.
	EventClosed EventType = "closed"
)

// Event is one downstream occurrence on a session.
type Event struct {
	Type EventType

	// Audio fields, set for EventAudio.
	PCM      []byte
	StartAt  time.Time
	Duration time.Duration

	// Text is set for EventText and partial EventTranscript updates.
	Text string

	// Speaker attributes transcript events.
	Speaker string

	// Err is set on EventClosed when the session ended abnormally.
	Err error
}

// Config describes one live session.
type Config struct {
	URL    string // WebSocket endpoint, key included by the caller
	Model  string // bare model name, prefixed with "models/" on the wire
	Voice  string // prebuilt voice name, optional
	System string // system instruction, optional

	// Transcribe opts in to server-side transcription of both directions.
	Transcribe bool
}

// transport is the connection surface Session needs. Satisfied by
// *streaming.Conn.
type transport interface {
	Send(msg interface{}) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
	IsClosed() bool
}

// Session is one live duplex conversation. Create with Connect, consume
// Events until it closes, and Close when done. Close is idempotent.
type Session struct {
	conn   transport
	cancel context.CancelFunc

	events     chan Event
	playback   *PlaybackScheduler
	transcript *TranscriptBuilder
	frameGate  *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// Connect dials the endpoint, performs the setup handshake, and starts the
// receive loop. The returned session is live until Close or a transport
// failure.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	conn := streaming.NewConn(&streaming.ConnConfig{URL: cfg.URL})
	if err := conn.ConnectWithRetry(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect live session: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s, err := newSession(sessionCtx, cancel, conn, cfg)
	if err != nil {
		conn.Close()
		cancel()
		return nil, err
	}

	conn.StartHeartbeat(sessionCtx, heartbeat)
	return s, nil
}

// newSession performs the setup handshake on an established transport and
// starts the receive loop.
func newSession(ctx context.Context, cancel context.CancelFunc, conn transport, cfg Config) (*Session, error) {
	setup := setupMessage{
		Setup: setupPayload{
			Model: "models/" + cfg.Model,
			GenerationConfig: liveGenConfig{
				ResponseModalities: []string{"AUDIO"},
			},
		},
	}
	if cfg.Voice != "" {
		sc := &speechConfig{}
		sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
		setup.Setup.GenerationConfig.SpeechConfig = sc
	}
	if cfg.System != "" {
		setup.Setup.SystemInstruction = &clientContent{
			Parts: []clientPart{{Text: cfg.System}},
		}
	}
	if cfg.Transcribe {
		setup.Setup.InputAudioTranscription = &struct{}{}
		setup.Setup.OutputAudioTranscription = &struct{}{}
	}

	if err := conn.Send(setup); err != nil {
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	setupCtx, setupCancel := context.WithTimeout(ctx, setupTimeout)
	defer setupCancel()

	ack, err := receiveMessage(setupCtx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to receive setup ack: %w", err)
	}
	if ack.SetupComplete == nil {
		return nil, errors.New("setup not acknowledged")
	}

	s := &Session{
		conn:       conn,
		cancel:     cancel,
		events:     make(chan Event, 32),
		playback:   NewPlaybackScheduler(),
		transcript: NewTranscriptBuilder(),
		frameGate:  rate.NewLimiter(rate.Limit(framesPerSecond), 1),
	}

	metrics.LiveSessionStarted()
	go s.receiveLoop(ctx)
	return s, nil
}

// Events returns the downstream event channel. It is closed after
// EventClosed is delivered.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Transcript returns the committed transcript turns so far.
func (s *Session) Transcript() []types.TranscriptTurn {
	return s.transcript.Turns()
}

// SetPlaybackRate adjusts the rate multiplier applied to audio scheduled
// from now on.
func (s *Session) SetPlaybackRate(multiplier float64) {
	s.playback.SetRate(multiplier)
}

// SendAudio uploads one microphone frame of 16kHz mono PCM16. Sends are
// fire and forget: a frame lost to a transient write failure is not worth
// stalling capture over, so errors are logged and only a closed session is
// reported.
func (s *Session) SendAudio(pcm []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{
				MimeType: uploadMimeType,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	if err := s.conn.Send(msg); err != nil {
		logger.Debug("dropped audio frame", "error", err)
	}
	return nil
}

// SendFrame uploads one camera frame as JPEG, throttled to 5 frames per
// second. Frames arriving faster are dropped silently.
func (s *Session) SendFrame(img image.Image) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if !s.frameGate.Allow() {
		return nil
	}

	jpegData, err := media.EncodeFrameJPEG(img, frameMaxWidth, frameMaxHeight, frameJPEGQuality)
	if err != nil {
		logger.Warn("failed to encode camera frame", "error", err)
		return nil
	}

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{
				MimeType: frameMimeType,
				Data:     base64.StdEncoding.EncodeToString(jpegData),
			}},
		},
	}
	if err := s.conn.Send(msg); err != nil {
		logger.Debug("dropped camera frame", "error", err)
	}
	return nil
}

// SendText submits a typed message as a completed user turn.
func (s *Session) SendText(text string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	s.transcript.Append(types.SpeakerUser, text)
	s.transcript.CompleteTurn(types.SpeakerUser)

	msg := clientContentMessage{
		ClientContent: clientContentPayload{
			Turns: []clientContent{{
				Role:  types.RoleUser,
				Parts: []clientPart{{Text: text}},
			}},
			TurnComplete: true,
		},
	}
	if err := s.conn.Send(msg); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// Close tears the session down. Safe to call multiple times and
// concurrently with event consumption.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.conn.Close()
	metrics.LiveSessionEnded()
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.conn.IsClosed()
}

// receiveLoop reads server messages until the connection drops or the
// session context ends, translating them into events.
func (s *Session) receiveLoop(ctx context.Context) {
	defer close(s.events)

	var loopErr error
	for {
		msg, err := receiveMessage(ctx, s.conn)
		if err != nil {
			if ctx.Err() == nil && !s.isClosed() {
				loopErr = err
				logger.Warn("live session receive failed", "error", err)
			}
			break
		}
		s.handleServerMessage(ctx, msg)
	}

	s.emit(ctx, Event{Type: EventClosed, Err: loopErr})
}

func (s *Session) handleServerMessage(ctx context.Context, msg *serverMessage) {
	content := msg.ServerContent
	if content == nil {
		return
	}

	if content.Interrupted {
		s.playback.Reset()
		s.emit(ctx, Event{Type: EventInterrupted})
	}

	if content.InputTranscription != nil {
		s.transcript.Append(types.SpeakerUser, content.InputTranscription.Text)
		s.emit(ctx, Event{
			Type:    EventTranscript,
			Speaker: types.SpeakerUser,
			Text:    content.InputTranscription.Text,
		})
	}
	if content.OutputTranscription != nil {
		s.transcript.Append(types.SpeakerModel, content.OutputTranscription.Text)
		s.emit(ctx, Event{
			Type:    EventTranscript,
			Speaker: types.SpeakerModel,
			Text:    content.OutputTranscription.Text,
		})
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			s.handlePart(ctx, part)
		}
	}

	if content.TurnComplete {
		// The user's turn completes when the model starts answering; the
		// model's completes here.
		s.transcript.CompleteTurn(types.SpeakerUser)
		s.transcript.CompleteTurn(types.SpeakerModel)
		s.emit(ctx, Event{Type: EventTurnComplete})
	}
}

func (s *Session) handlePart(ctx context.Context, part serverPart) {
	if part.Text != "" {
		s.emit(ctx, Event{Type: EventText, Text: part.Text})
	}

	if part.InlineData == nil {
		return
	}
	pcm, err := audio.DecodePCM(part.InlineData.Data)
	if err != nil {
		logger.Warn("discarding undecodable audio chunk", "error", err)
		return
	}

	start, duration := s.playback.Schedule(pcm)
	s.emit(ctx, Event{
		Type:     EventAudio,
		PCM:      pcm,
		StartAt:  start,
		Duration: duration,
	})
}

// emit delivers an event unless the session context is already gone.
func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// receiveMessage reads and decodes one server message.
func receiveMessage(ctx context.Context, conn transport) (*serverMessage, error) {
	data, err := conn.Receive(ctx)
	if err != nil {
		return nil, err
	}
	var msg serverMessage
	if err := decodeServerMessage(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
