package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	chatService "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := companion.NewMemoryStore(companion.Seed())
	chatSvc := chatService.NewService(simulator.DefaultConfig(), store)
	t.Cleanup(chatSvc.Close)
	return NewRouter(store, chatSvc, nil)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestAPIRoutesAreMounted(t *testing.T) {
	router := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/companions", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Session.ID)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sessions/"+body.Session.ID+"/wellness", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPreflightIsAnswered(t *testing.T) {
	router := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/sessions", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
