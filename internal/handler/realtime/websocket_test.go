package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	chatservice "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator/simtest"
)

type frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (f frame) kind() string {
	kind, _ := f.Data["type"].(string)
	return kind
}

type fixture struct {
	srv     *httptest.Server
	chatSvc *chatservice.Service
	sched   *simtest.ManualScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := simtest.NewManualScheduler()
	chatSvc := chatservice.NewService(simulator.DefaultConfig(), companion.NewMemoryStore(companion.Seed()),
		chatservice.WithSimulatorOptions(func(string) []simulator.Option {
			return []simulator.Option{simulator.WithScheduler(sched)}
		}))

	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		chatSvc.Close()
		srv.Close()
	})
	return &fixture{srv: srv, chatSvc: chatSvc, sched: sched}
}

func (f *fixture) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips frames until one of the wanted result kind arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) frame {
	t.Helper()
	for {
		f := readFrame(t, conn)
		if f.Type == "result" && f.kind() == kind {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
}

func TestWebSocketChatCycle(t *testing.T) {
	f := newFixture(t)
	session, err := f.chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, session.ID)

	connected := readFrame(t, conn)
	require.Equal(t, "connected", connected.kind())
	assert.Equal(t, companion.DefaultID, connected.Data["companion"])

	send(t, conn, "text", TextMessage{Text: "I'm stressed"})
	accepted := readUntil(t, conn, "accepted")
	message, ok := accepted.Data["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "I'm stressed", message["content"])

	f.sched.Advance(simulator.DefaultReplyDelay)
	metrics := readUntil(t, conn, "metrics")
	event, ok := metrics.Data["event"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, event, "metrics")

	transcript, err := f.chatSvc.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 3)
}

func TestWebSocketBlankTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	session, err := f.chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, session.ID)
	readUntil(t, conn, "connected")

	send(t, conn, "text", TextMessage{Text: "   "})
	readUntil(t, conn, "ignored")
	assert.Zero(t, f.sched.Pending())
}

func TestWebSocketResetReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	session, err := f.chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, session.ID)
	readUntil(t, conn, "connected")

	send(t, conn, "text", TextMessage{Text: "hello"})
	readUntil(t, conn, "accepted")
	send(t, conn, "reset", nil)

	snap := readUntil(t, conn, "snapshot")
	raw, err := json.Marshal(snap.Data["snapshot"])
	require.NoError(t, err)
	var snapshot simulator.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Len(t, snapshot.Transcript, 1)
	assert.False(t, snapshot.Pending)
	assert.Zero(t, f.sched.Pending())
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	f := newFixture(t)
	session, err := f.chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, session.ID)
	readUntil(t, conn, "connected")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "error", readFrame(t, conn).Type)

	send(t, conn, "audio", nil)
	assert.Equal(t, "error", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "reset", "sessionId": "other"}))
	assert.Equal(t, "error", readFrame(t, conn).Type)
}

func TestWebSocketClosesWithSession(t *testing.T) {
	f := newFixture(t)
	session, err := f.chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, session.ID)
	readUntil(t, conn, "connected")

	require.NoError(t, f.chatSvc.CloseSession(context.Background(), session.ID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			return
		}
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
