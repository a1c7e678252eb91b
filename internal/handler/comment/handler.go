package comment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aituber/backend/internal/handler/apierr"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

// Handler 评论处理的HTTP处理器
type Handler struct {
	pipeline pipeline.Processor
	hub      *broadcast.Hub
}

// New 创建评论处理器。hub 为空时不广播。
func New(p pipeline.Processor, hub *broadcast.Hub) *Handler {
	return &Handler{pipeline: p, hub: hub}
}

// RegisterRoutes 注册评论相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/comments", h.handleComment)
}

// handleComment 处理一条评论并返回回复
func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	var payload live.CommentInput
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.pipeline.Process(r.Context(), payload)
	if err != nil {
		apierr.Respond(w, err)
		return
	}

	if out.ShouldRespond && h.hub != nil {
		h.hub.Publish(out)
	}
	utils.RespondJSON(w, http.StatusOK, out)
}
