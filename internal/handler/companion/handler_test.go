package companion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
)

func TestListCompanions(t *testing.T) {
	r := chi.NewRouter()
	New(companion.NewMemoryStore(companion.Seed())).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/companions", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var got []companion.Companion
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(got) != 1 || got[0].ID != companion.DefaultID {
		t.Fatalf("unexpected companions: %+v", got)
	}
}
