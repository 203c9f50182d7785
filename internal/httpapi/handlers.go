package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/boardimg"
	"github.com/kapu/chess-arena-go/internal/request"
	"github.com/kapu/chess-arena-go/internal/session"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

type sendGameRequestBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SendGameRequest creates a direct invitation outside the socket, mirroring
// the send_game_request frame.
func (a *API) SendGameRequest(w http.ResponseWriter, r *http.Request) {
	var body sendGameRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req, err := a.broker.Create(r.Context(), body.From, body.To)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

type handleGameRequestBody struct {
	GameID string `json:"gameId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Action string `json:"action"`
}

// HandleGameRequest resolves a pending invitation. To is the invited user
// and the only identity allowed to respond.
func (a *API) HandleGameRequest(w http.ResponseWriter, r *http.Request) {
	var body handleGameRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req, err := a.broker.Respond(r.Context(), body.GameID, body.To, request.Action(strings.ToLower(body.Action)))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type notifyBody struct {
	To      string          `json:"to"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notify pushes an arbitrary envelope to a connected identity. Used by
// operational tooling; delivery to an offline identity is a 404.
func (a *API) Notify(w http.ResponseWriter, r *http.Request) {
	var body notifyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.To == "" || body.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	data, err := json.Marshal(wire.Envelope{Type: body.Type, Payload: body.Payload})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	if err := a.reg.Send(r.Context(), body.To, data); err != nil {
		writeError(w, http.StatusNotFound, "identity not connected")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type gameResponse struct {
	GameID   string    `json:"gameId"`
	WhiteID  string    `json:"whiteId"`
	BlackID  string    `json:"blackId"`
	FEN      string    `json:"fen"`
	MovesUCI []string  `json:"movesUci"`
	MovesSAN []string  `json:"movesSan"`
	Turn     string    `json:"turn"`
	Status   string    `json:"status"`
	Winner   string    `json:"winner,omitempty"`
	Method   string    `json:"method,omitempty"`
	Deadline time.Time `json:"deadline"`
}

// GetGame returns the observable state of a live session.
func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	view, err := a.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	resp := gameResponse{
		GameID:   view.ID,
		WhiteID:  view.WhiteID,
		BlackID:  view.BlackID,
		FEN:      view.FEN,
		MovesUCI: view.MovesUCI,
		MovesSAN: view.MovesSAN,
		Turn:     string(view.Turn),
		Status:   string(view.Status),
		Deadline: view.Deadline,
	}
	if view.Outcome != nil {
		resp.Winner = string(view.Outcome.WinnerColor)
		resp.Method = view.Outcome.Method
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBoardPNG renders the session's position with the last move highlighted.
func (a *API) GetBoardPNG(w http.ResponseWriter, r *http.Request) {
	view, err := a.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	opts := boardimg.Options{}
	if n := len(view.MovesUCI); n > 0 {
		last := view.MovesUCI[n-1]
		if from, ok := boardimg.SquareFromCoord(last[:2]); ok {
			if to, ok := boardimg.SquareFromCoord(last[2:4]); ok {
				opts.Highlight = &boardimg.Highlight{From: from, To: to}
			}
		}
	}

	data, err := a.renderer.RenderFEN(r.Context(), view.FEN, opts)
	if err != nil {
		a.log.Error("board_render_failed", zap.String("game_id", view.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, request.ErrRequestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, request.ErrRequestPending):
		status = http.StatusConflict
	case errors.Is(err, request.ErrInvalidTarget), errors.Is(err, request.ErrInvalidArgs):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrDuplicateParticipant):
		status = http.StatusConflict
	default:
		a.log.Error("http_internal_error", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
