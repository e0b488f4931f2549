package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
)

var testCfg = config.ChatConfig{MaxMessageBytes: 1024, SendBuffer: 8, WriteWait: time.Second, PongWait: 10 * time.Second}

func startHub(t *testing.T, cfg config.ChatConfig) *Hub {
	t.Helper()
	h := NewHub(cfg, zap.NewNop())
	h.now = func() time.Time { return time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC) }
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func TestRelayFansOutToEveryClient(t *testing.T) {
	h := startHub(t, testCfg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ana, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=ana", nil)
	require.NoError(t, err)
	defer ana.Close()
	beto, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=beto", nil)
	require.NoError(t, err)
	defer beto.Close()

	// both registrations must land before the broadcast
	require.Eventually(t, func() bool { return h.Online() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ana.WriteMessage(websocket.TextMessage, []byte(`{"text":"vamos river"}`)))

	for _, c := range []*websocket.Conn{ana, beto} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := c.ReadMessage()
		require.NoError(t, err)
		var msg Message
		require.NoError(t, sonic.Unmarshal(raw, &msg))
		assert.Equal(t, "ana", msg.User)
		assert.Equal(t, "vamos river", msg.Text)
		assert.Equal(t, "2025-03-01T20:00:00Z", msg.Time)
		assert.NotEmpty(t, msg.ID)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t, testCfg)
	slow := &Client{hub: h, send: make(chan []byte, 1), user: "slow"}
	h.register <- slow

	_, ok := h.Publish("ana", "one")
	require.True(t, ok)
	_, ok = h.Publish("ana", "two")
	require.True(t, ok)
	require.Eventually(t, func() bool { return h.Online() == 0 }, 2*time.Second, 10*time.Millisecond)

	select {
	case payload := <-slow.send:
		assert.Contains(t, string(payload), `"one"`)
	case <-time.After(time.Second):
		t.Fatal("first message not delivered")
	}
	select {
	case _, open := <-slow.send:
		assert.False(t, open, "send channel should be closed after overflow")
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
}

func TestPublishIgnoresBlank(t *testing.T) {
	h := startHub(t, testCfg)
	_, ok := h.Publish("ana", "   ")
	assert.False(t, ok)
}

func TestDecodeInbound(t *testing.T) {
	assert.Equal(t, "hola", decodeInbound([]byte(`{"text":"hola"}`)))
	assert.Equal(t, "hola", decodeInbound([]byte(`hola`)))
}
