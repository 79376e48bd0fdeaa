package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	chatservice "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator/simtest"
)

func setup(t *testing.T) (*httptest.Server, *chatservice.Service, *simtest.ManualScheduler) {
	t.Helper()
	sched := simtest.NewManualScheduler()
	chatSvc := chatservice.NewService(simulator.DefaultConfig(), companion.NewMemoryStore(companion.Seed()),
		chatservice.WithSimulatorOptions(func(string) []simulator.Option {
			return []simulator.Option{simulator.WithScheduler(sched)}
		}))

	r := chi.NewRouter()
	New(chatSvc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		chatSvc.Close()
		srv.Close()
	})
	return srv, chatSvc, sched
}

// readEvent returns the next SSE event name, skipping comments and data lines.
func readEvent(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
			return name
		}
	}
}

func TestEventsStreamReplyCycle(t *testing.T) {
	srv, chatSvc, sched := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := chatSvc.CreateSession(ctx, "")
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+session.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	// the snapshot is written after subscribing, so later events cannot be missed.
	require.Equal(t, "snapshot", readEvent(t, reader))

	_, accepted, err := chatSvc.Submit(ctx, session.ID, "I'm stressed")
	require.NoError(t, err)
	require.True(t, accepted)
	assert.Equal(t, "message", readEvent(t, reader))
	assert.Equal(t, "typing", readEvent(t, reader))

	sched.Advance(simulator.DefaultReplyDelay)
	assert.Equal(t, "message", readEvent(t, reader))
	assert.Equal(t, "metrics", readEvent(t, reader))
	assert.Equal(t, "typing", readEvent(t, reader))

	require.NoError(t, chatSvc.CloseSession(ctx, session.ID))
	assert.Equal(t, "closed", readEvent(t, reader))
}

func TestEventsUnknownSession(t *testing.T) {
	srv, _, _ := setup(t)

	resp, err := http.Get(srv.URL + "/sessions/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
