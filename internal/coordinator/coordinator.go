// Package coordinator ties the transport to the game logic: it owns the
// WebSocket endpoint, routes inbound frames by type, and translates domain
// errors into error frames for the offending connection only.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/match"
	"github.com/kapu/chess-arena-go/internal/msgcat"
	"github.com/kapu/chess-arena-go/internal/registry"
	"github.com/kapu/chess-arena-go/internal/request"
	"github.com/kapu/chess-arena-go/internal/session"
	"github.com/kapu/chess-arena-go/internal/upstream"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

type Coordinator struct {
	reg      *registry.Registry
	queue    *match.Queue
	store    *session.Store
	broker   *request.Broker
	identity *upstream.IdentityClient
	analysis *upstream.AnalysisClient
	cat      *msgcat.Catalog
	log      *zap.Logger

	allowedOrigins []string
}

type Options struct {
	AllowedOrigins []string
}

func New(
	reg *registry.Registry,
	store *session.Store,
	broker *request.Broker,
	identity *upstream.IdentityClient,
	analysis *upstream.AnalysisClient,
	cat *msgcat.Catalog,
	log *zap.Logger,
	opts Options,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		reg:            reg,
		store:          store,
		broker:         broker,
		identity:       identity,
		analysis:       analysis,
		cat:            cat,
		log:            log,
		allowedOrigins: opts.AllowedOrigins,
	}
	c.queue = match.NewQueue(func(white, black string) {
		_ = c.StartSession(white, black, "")
	}, log)
	return c
}

// Queue exposes the quick-match queue, mainly for the HTTP status surface.
func (c *Coordinator) Queue() *match.Queue { return c.queue }

// StartSession is the PairFunc for the quick-match queue and the StartFunc
// for accepted invitations: the first argument plays white.
func (c *Coordinator) StartSession(whiteID, blackID, gameID string) error {
	_, err := c.store.Create(whiteID, blackID, gameID)
	if err != nil {
		c.log.Warn("session_start_failed",
			zap.String("white", whiteID),
			zap.String("black", blackID),
			zap.Error(err),
		)
		c.sendError(context.Background(), whiteID, err)
		c.sendError(context.Background(), blackID, err)
	}
	return err
}

// Dispatch handles one inbound frame from identity's connection.
func (c *Coordinator) Dispatch(ctx context.Context, identity string, data []byte) {
	env, err := wire.Decode(data)
	if err != nil || env.Type == "" {
		c.sendError(ctx, identity, errInvalidMessage)
		return
	}

	switch env.Type {
	case wire.TypeInitGame:
		c.handleInitGame(ctx, identity)
	case wire.TypeMove:
		c.handleMove(ctx, identity, env.Payload)
	case wire.TypeResign:
		c.handleResign(ctx, identity, env.Payload)
	case wire.TypeSendGameRequest:
		c.handleSendGameRequest(ctx, identity, env.Payload)
	case wire.TypeAcceptGameRequest:
		c.handleAcceptGameRequest(ctx, identity, env.Payload)
	case wire.TypeRequestHint:
		c.handleRequestHint(ctx, identity)
	default:
		c.log.Debug("unknown_frame", zap.String("identity", identity), zap.String("type", env.Type))
		c.sendError(ctx, identity, errInvalidMessage)
	}
}

func (c *Coordinator) handleInitGame(ctx context.Context, identity string) {
	if _, busy := c.store.ActiveSessionID(identity); busy {
		c.sendError(ctx, identity, session.ErrDuplicateParticipant)
		return
	}
	if c.queue.Waiting(identity) {
		c.sendError(ctx, identity, errAlreadyQueued)
		return
	}
	c.queue.Enqueue(identity)
}

func (c *Coordinator) handleMove(ctx context.Context, identity string, payload json.RawMessage) {
	var req wire.MoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(ctx, identity, errInvalidMessage)
		return
	}
	sessionID, ok := c.resolveSession(identity, req.GameID)
	if !ok {
		c.sendError(ctx, identity, session.ErrSessionNotFound)
		return
	}
	mv := session.Move{From: req.Move.From, To: req.Move.To, Promotion: req.Move.Promotion}
	if err := c.store.ApplyMove(sessionID, identity, mv); err != nil {
		c.sendError(ctx, identity, err)
	}
}

func (c *Coordinator) handleResign(ctx context.Context, identity string, payload json.RawMessage) {
	var req wire.Resign
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.sendError(ctx, identity, errInvalidMessage)
			return
		}
	}
	sessionID, ok := c.resolveSession(identity, req.GameID)
	if !ok {
		c.sendError(ctx, identity, session.ErrSessionNotFound)
		return
	}
	if err := c.store.Resign(sessionID, identity); err != nil {
		c.sendError(ctx, identity, err)
	}
}

func (c *Coordinator) handleSendGameRequest(ctx context.Context, identity string, payload json.RawMessage) {
	var req wire.GameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.To == "" {
		c.sendError(ctx, identity, errInvalidMessage)
		return
	}
	if _, err := c.broker.Create(ctx, identity, req.To); err != nil {
		c.sendError(ctx, identity, err)
	}
}

func (c *Coordinator) handleAcceptGameRequest(ctx context.Context, identity string, payload json.RawMessage) {
	var req wire.AcceptGameRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.GameID == "" {
		c.sendError(ctx, identity, errInvalidMessage)
		return
	}
	if _, err := c.broker.Respond(ctx, req.GameID, identity, request.ActionAccept); err != nil {
		c.sendError(ctx, identity, err)
	}
}

func (c *Coordinator) handleRequestHint(ctx context.Context, identity string) {
	sessionID, ok := c.store.ActiveSessionID(identity)
	if !ok {
		c.sendError(ctx, identity, session.ErrSessionNotFound)
		return
	}
	view, err := c.store.Get(sessionID)
	if err != nil {
		c.sendError(ctx, identity, err)
		return
	}

	resp := wire.HintResponse{Hint: c.render("hint.fallback", nil, "Engine unavailable. Try developing your pieces towards the center!")}
	if best, err := c.analysis.BestMove(ctx, view.FEN); err == nil {
		resp.BestMove = best
		resp.Hint = c.render("hint.suggestion", map[string]any{"BestMove": best},
			"Consider "+best+". This is the strongest move in this position.")
	} else if !errors.Is(err, upstream.ErrAnalysisUnavailable) {
		c.log.Warn("analysis_failed", zap.String("game_id", sessionID), zap.Error(err))
	}

	data, err := wire.Encode(wire.TypeHintResponse, resp)
	if err != nil {
		c.log.Error("encode_hint", zap.Error(err))
		return
	}
	_ = c.reg.Send(ctx, identity, data)
}

// resolveSession maps an optional explicit game id to the identity's session.
func (c *Coordinator) resolveSession(identity, gameID string) (string, bool) {
	if gameID != "" {
		return gameID, true
	}
	return c.store.ActiveSessionID(identity)
}

func (c *Coordinator) render(key string, data map[string]any, fallback string) string {
	if c.cat != nil {
		if txt, err := c.cat.Render(key, data); err == nil {
			return txt
		}
	}
	return fallback
}

var (
	errInvalidMessage = errors.New("invalid message")
	errAlreadyQueued  = errors.New("already waiting for a match")
)

// sendError reports a rejection to the originating identity only; the
// opponent never learns about a peer's bad frame.
func (c *Coordinator) sendError(ctx context.Context, identity string, err error) {
	code := wire.CodeInternal
	switch {
	case errors.Is(err, errInvalidMessage):
		code = wire.CodeInvalidMessage
	case errors.Is(err, errAlreadyQueued):
		code = wire.CodeAlreadyQueued
	case errors.Is(err, session.ErrNotYourTurn):
		code = wire.CodeNotYourTurn
	case errors.Is(err, session.ErrIllegalMove):
		code = wire.CodeIllegalMove
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrNotParticipant):
		code = wire.CodeSessionNotFound
	case errors.Is(err, session.ErrSessionCompleted):
		code = wire.CodeSessionCompleted
	case errors.Is(err, session.ErrDuplicateParticipant):
		code = wire.CodeDuplicate
	case errors.Is(err, request.ErrInvalidTarget):
		code = wire.CodeInvalidTarget
	case errors.Is(err, request.ErrRequestPending):
		code = wire.CodeRequestPending
	case errors.Is(err, request.ErrRequestNotFound):
		code = wire.CodeRequestNotFound
	case errors.Is(err, request.ErrInvalidArgs):
		code = wire.CodeInvalidMessage
	}

	data, encErr := wire.Encode(wire.TypeError, wire.Error{Code: code, Message: err.Error()})
	if encErr != nil {
		c.log.Error("encode_error_frame", zap.Error(encErr))
		return
	}
	_ = c.reg.Send(ctx, identity, data)
}
