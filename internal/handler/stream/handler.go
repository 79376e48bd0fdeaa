package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/pkg/utils"
)

const (
	subscriberBuffer = 32
	keepAlive        = 15 * time.Second
)

// Handler pushes simulator events for a session via Server-Sent Events.
type Handler struct {
	chatSvc   *chatService.Service
	log       *zap.Logger
	keepAlive time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, log: logger, keepAlive: keepAlive}
}

// RegisterRoutes registers the event stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents sends a snapshot first, then every transcript, typing and metrics change
// until the client goes away or the session is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	events, unsubscribe, err := h.chatSvc.Subscribe(ctx, sessionID, subscriberBuffer)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer unsubscribe()

	snapshot, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshot); err != nil {
		h.log.Debug("sse write failed", zap.String("session", sessionID), zap.Error(err))
		return
	}

	log := h.log.With(zap.String("session", sessionID))
	log.Debug("sse stream opened")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("sse stream closed by client")
			return
		case ev, open := <-events:
			if !open {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				log.Debug("sse stream ended with session")
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				log.Debug("sse write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}
