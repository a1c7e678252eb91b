// Package apierr maps service errors to HTTP responses.
package apierr

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/service/ai"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/internal/store"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	var genErr *ai.GenerationError
	switch {
	case errors.Is(err, pipeline.ErrUsernameRequired):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrViewerNotFound):
		return http.StatusNotFound
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body. Internal errors are logged and not echoed.
func Respond(w http.ResponseWriter, err error) {
	status := Status(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Msg("request failed")
		message = "internal error"
	case http.StatusBadGateway:
		log.Warn().Err(err).Msg("text generation failed")
		message = "text generation failed"
	}
	utils.RespondError(w, status, message)
}
