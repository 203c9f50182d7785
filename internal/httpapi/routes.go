// Package httpapi exposes the REST surface next to the WebSocket endpoint:
// invitation management, session lookup, board diagrams, and health.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/boardimg"
	"github.com/kapu/chess-arena-go/internal/coordinator"
	"github.com/kapu/chess-arena-go/internal/registry"
	"github.com/kapu/chess-arena-go/internal/request"
	"github.com/kapu/chess-arena-go/internal/session"
)

type API struct {
	store    *session.Store
	broker   *request.Broker
	reg      *registry.Registry
	renderer *boardimg.Renderer
	log      *zap.Logger
}

func New(store *session.Store, broker *request.Broker, reg *registry.Registry, renderer *boardimg.Renderer, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{store: store, broker: broker, reg: reg, renderer: renderer, log: log}
}

func SetupRoutes(a *API, coord *coordinator.Coordinator) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", coord.WSHandler())

	r.Post("/game/sendgamerequest", a.SendGameRequest)
	r.Post("/game/handlegamerequest", a.HandleGameRequest)
	r.Post("/notify", a.Notify)

	r.Get("/game/{id}", a.GetGame)
	r.Get("/game/{id}/board.png", a.GetBoardPNG)

	r.Get("/healthz", Healthz)
	return r
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
