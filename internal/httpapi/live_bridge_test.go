package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyrebirdAI/console/audio"
	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
)

// liveVendor is a fake upstream live endpoint: it acknowledges setup,
// records everything the bridge sends, and answers client content with a
// text part, a 100ms audio part, and turn completion.
type liveVendor struct {
	srv      *httptest.Server
	setup    chan json.RawMessage
	received chan json.RawMessage
}

func newLiveVendor(t *testing.T) *liveVendor {
	t.Helper()
	v := &liveVendor{
		setup:    make(chan json.RawMessage, 1),
		received: make(chan json.RawMessage, 64),
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, setup, err := conn.ReadMessage()
		if err != nil {
			return
		}
		v.setup <- json.RawMessage(setup)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`)); err != nil {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			v.received <- json.RawMessage(data)

			var msg struct {
				ClientContent *struct{} `json:"clientContent"`
			}
			if json.Unmarshal(data, &msg) == nil && msg.ClientContent != nil {
				pcm := audio.SineWave(440, 100, 0.4, audio.PlaybackSampleRate)
				reply := fmt.Sprintf(
					`{"serverContent":{"modelTurn":{"parts":[{"text":"Sure."},{"inlineData":{"mimeType":"audio/pcm","data":%q}}]},"turnComplete":true}}`,
					base64.StdEncoding.EncodeToString(pcm))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *liveVendor) next(t *testing.T) json.RawMessage {
	t.Helper()
	select {
	case msg := <-v.received:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("vendor received no message")
		return nil
	}
}

func toWS(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func dialBridge(t *testing.T, vendor *liveVendor, query string) *websocket.Conn {
	t.Helper()
	srv := New(gateway.New("test-key"), history.NewMemoryStore(), time.Millisecond,
		WithLive(toWS(vendor.srv.URL), "test-key", "live-model"))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial(toWS(ts.URL)+"/v1/live"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readBridgeMessage(t *testing.T, conn *websocket.Conn, wantType string) liveServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg liveServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, wantType, msg.Type)
	return msg
}

func TestLiveBridge_TextTurnRoundTrip(t *testing.T) {
	vendor := newLiveVendor(t)
	conn := dialBridge(t, vendor, "?voice=Puck")

	// The bridge performed the handshake with the configured model.
	select {
	case setup := <-vendor.setup:
		assert.Contains(t, string(setup), `"models/live-model"`)
		assert.Contains(t, string(setup), `"Puck"`)
	case <-time.After(5 * time.Second):
		t.Fatal("vendor saw no setup")
	}

	require.NoError(t, conn.WriteJSON(liveClientMessage{Type: "text", Text: "hi there"}))

	forwarded := vendor.next(t)
	assert.Contains(t, string(forwarded), `"hi there"`)
	assert.Contains(t, string(forwarded), `"turnComplete":true`)

	text := readBridgeMessage(t, conn, "text")
	assert.Equal(t, "Sure.", text.Text)

	played := readBridgeMessage(t, conn, "audio")
	require.NotNil(t, played.StartAt)
	assert.Equal(t, int64(100), played.DurationMs)
	pcm, err := audio.DecodePCM(played.Data)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, audio.Duration(pcm, audio.PlaybackSampleRate), 0.001)

	readBridgeMessage(t, conn, "turn_complete")
}

func TestLiveBridge_AudioResampledAndFramed(t *testing.T) {
	vendor := newLiveVendor(t)
	conn := dialBridge(t, vendor, "")
	<-vendor.setup

	// 320ms captured at 48kHz resamples to 10240 bytes at 16kHz, which
	// splits into three full 3200-byte frames plus a 640-byte tail.
	captured := audio.SineWave(440, 320, 0.4, 48000)
	require.NoError(t, conn.WriteJSON(liveClientMessage{
		Type:       "audio",
		Data:       base64.StdEncoding.EncodeToString(captured),
		SampleRate: 48000,
	}))

	var sizes []int
	for range 4 {
		var msg struct {
			RealtimeInput struct {
				MediaChunks []struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"mediaChunks"`
			} `json:"realtimeInput"`
		}
		require.NoError(t, json.Unmarshal(vendor.next(t), &msg))
		require.Len(t, msg.RealtimeInput.MediaChunks, 1)
		chunk := msg.RealtimeInput.MediaChunks[0]
		assert.Equal(t, "audio/pcm;rate=16000", chunk.MimeType)
		pcm, err := base64.StdEncoding.DecodeString(chunk.Data)
		require.NoError(t, err)
		sizes = append(sizes, len(pcm))
	}
	assert.Equal(t, []int{3200, 3200, 3200, 640}, sizes)
}

func TestLiveBridge_Unconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/v1/live", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
