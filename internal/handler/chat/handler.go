package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	chatService "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
	"github.com/zhouzirui/pulse-hr/backend/pkg/utils"
)

const maxMessageBytes = 8 << 10

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	log     *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, log: logger}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Get("/messages", h.handleListMessages)
		r.Post("/messages", h.handleSubmitMessage)
		r.Get("/wellness", h.handleWellness)
		r.Post("/reset", h.handleReset)
	})
}

type sessionView struct {
	Session chat.Session `json:"session"`
	simulator.Snapshot
}

// handleCreateSession 创建会话，请求体可省略
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CompanionID string `json:"companionId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.CompanionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	snapshot, err := h.chatSvc.Snapshot(r.Context(), session.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionView{Session: session, Snapshot: snapshot})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	snapshot, err := h.chatSvc.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionView{Session: session, Snapshot: snapshot})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleSubmitMessage 提交用户消息，空白消息被忽略
func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, accepted, err := h.chatSvc.Submit(r.Context(), chi.URLParam(r, "sessionID"), payload.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if !accepted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, msg)
}

func (h *Handler) handleWellness(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.chatSvc.Metrics(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.Reset(r.Context(), sessionID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	snapshot, err := h.chatSvc.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrCompanionNotFound):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrServiceClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("chat request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
