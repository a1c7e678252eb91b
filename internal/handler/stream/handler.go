package stream

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/handler/apierr"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

// SSE event names.
const (
	EventStart   = "start"
	EventSegment = "segment"
	EventEnd     = "end"
	EventSkipped = "skipped"
	EventError   = "error"
)

// Handler streams one comment's reply segment by segment via Server-Sent Events.
type Handler struct {
	pipeline pipeline.Processor
	hub      *broadcast.Hub
}

// New creates a new stream handler
func New(p pipeline.Processor, hub *broadcast.Hub) *Handler {
	return &Handler{pipeline: p, hub: hub}
}

// RegisterRoutes registers GET /stream/{sessionID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// SegmentEvent is the payload of a segment event.
type SegmentEvent struct {
	SessionID string `json:"sessionId"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Emotion   string `json:"emotion"`
}

// ErrorEvent is the payload of an error event.
type ErrorEvent struct {
	SessionID string `json:"sessionId,omitempty"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	input := live.CommentInput{
		SessionID: chi.URLParam(r, "sessionID"),
		Username:  r.URL.Query().Get("username"),
		Comment:   r.URL.Query().Get("comment"),
	}
	if input.Username == "" {
		utils.RespondError(w, http.StatusBadRequest, "username query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, EventStart, map[string]string{"sessionId": input.SessionID})

	out, err := h.pipeline.Process(r.Context(), input)
	if err != nil {
		status := apierr.Status(err)
		message := "internal error"
		if status != http.StatusInternalServerError {
			message = err.Error()
		}
		log.Warn().Err(err).Str("component", "stream").Str("session", input.SessionID).Msg("stream request failed")
		utils.SendSSEEvent(w, flusher, EventError, ErrorEvent{SessionID: input.SessionID, Status: status, Error: message})
		return
	}

	if !out.ShouldRespond {
		utils.SendSSEEvent(w, flusher, EventSkipped, out)
		return
	}

	for i, seg := range out.Segments {
		utils.SendSSEEvent(w, flusher, EventSegment, SegmentEvent{
			SessionID: out.SessionID,
			Index:     i,
			Text:      seg.Text,
			Emotion:   seg.Emotion,
		})
	}
	utils.SendSSEEvent(w, flusher, EventEnd, out)

	if h.hub != nil {
		h.hub.Publish(out)
	}
}
