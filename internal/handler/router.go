package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/aituber/backend/internal/handler/comment"
	"github.com/zhouzirui/aituber/backend/internal/handler/persona"
	"github.com/zhouzirui/aituber/backend/internal/handler/session"
	"github.com/zhouzirui/aituber/backend/internal/handler/stream"
	"github.com/zhouzirui/aituber/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/aituber/backend/internal/middleware"
	personaModel "github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/internal/store"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

// Dependencies are the services the router exposes. A nil Pipeline leaves the comment,
// stream and websocket routes answering 503.
type Dependencies struct {
	Store          store.Store
	Personas       personaModel.Store
	ActivePersona  string
	DefaultTitle   string
	Pipeline       pipeline.Processor
	Hub            *broadcast.Hub
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.NewCORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas, deps.ActivePersona).RegisterRoutes(api)
		session.New(deps.Store, deps.DefaultTitle).RegisterRoutes(api)

		if deps.Pipeline == nil {
			unavailable := func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "text generation is not configured")
			}
			api.Post("/comments", unavailable)
			api.Get("/stream/{sessionID}", unavailable)
			api.Get("/ws/{sessionID}", unavailable)
			return
		}

		comment.New(deps.Pipeline, deps.Hub).RegisterRoutes(api)
		stream.New(deps.Pipeline, deps.Hub).RegisterRoutes(api)
		ws.New(deps.Pipeline, deps.Hub).RegisterRoutes(api)
	})

	return r
}
