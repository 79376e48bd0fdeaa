package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/handler/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/handler/companion"
	"github.com/zhouzirui/pulse-hr/backend/internal/handler/realtime"
	"github.com/zhouzirui/pulse-hr/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/pulse-hr/backend/internal/middleware"
	companionModel "github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	chatService "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(companions companionModel.Store, chatSvc *chatService.Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	companionHandler := companion.New(companions)
	chatHandler := chat.New(chatSvc, logger.Named("chat"))
	streamHandler := stream.New(chatSvc, logger.Named("sse"))
	wsHandler := realtime.NewWebSocketHandler(chatSvc, logger.Named("websocket"))

	r.Route("/api", func(api chi.Router) {
		companionHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
