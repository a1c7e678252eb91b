package session

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aituber/backend/internal/handler/apierr"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/store"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

// Handler 配信会话的HTTP处理器
type Handler struct {
	store        store.Store
	defaultTitle string
}

// New 创建会话处理器
func New(st store.Store, defaultTitle string) *Handler {
	if defaultTitle == "" {
		defaultTitle = live.DefaultStreamTitle
	}
	return &Handler{store: st, defaultTitle: defaultTitle}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/end", h.handleEnd)
		r.Get("/{id}/viewers", h.handleViewers)
		r.Get("/{id}/conversations", h.handleConversations)
	})
}

// handleCreate 开始一个新的配信会话
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		StreamTitle string `json:"streamTitle"`
	}
	// 空请求体视为使用默认标题。
	if err := utils.DecodeJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.StreamTitle == "" {
		payload.StreamTitle = h.defaultTitle
	}

	session, err := h.store.CreateSession(r.Context(), payload.StreamTitle)
	if err != nil {
		apierr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleEnd 结束会话并记录结束时间
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleViewers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		apierr.Respond(w, err)
		return
	}

	viewers, err := h.store.ListViewers(r.Context(), id)
	if err != nil {
		apierr.Respond(w, err)
		return
	}
	if viewers == nil {
		viewers = []live.Viewer{}
	}
	utils.RespondJSON(w, http.StatusOK, viewers)
}

// handleConversations 返回会话历史，按时间从旧到新排列
func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := store.RetentionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if _, err := h.store.GetSession(r.Context(), id); err != nil {
		apierr.Respond(w, err)
		return
	}

	history, err := h.store.GetConversations(r.Context(), id, limit)
	if err != nil {
		apierr.Respond(w, err)
		return
	}

	ordered := make([]live.Conversation, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		ordered = append(ordered, history[i])
	}
	utils.RespondJSON(w, http.StatusOK, ordered)
}
