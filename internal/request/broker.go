package request

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/msgcat"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

// Notifier delivers an encoded wire frame to an identity's live connection.
// Satisfied by the connection registry; failures are logged and swallowed, an
// offline target still has the request waiting in Redis.
type Notifier interface {
	Send(ctx context.Context, identity string, data []byte) error
}

// StartFunc starts the session for an accepted invitation. The inviter plays
// white.
type StartFunc func(whiteID, blackID, gameID string) error

// Broker runs the direct-invitation flow: Create parks a pending request in
// Redis and pings the target, Respond resolves it and, on accept, hands the
// pair to the session layer.
type Broker struct {
	store  *Store
	notify Notifier
	start  StartFunc
	cat    *msgcat.Catalog
	log    *zap.Logger
}

func NewBroker(store *Store, notify Notifier, start StartFunc, cat *msgcat.Catalog, log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{store: store, notify: notify, start: start, cat: cat, log: log}
}

// Create registers a pending invitation from -> to. At most one pending
// request may exist per unordered pair; a second attempt in either direction
// fails with ErrRequestPending until the first is resolved.
func (b *Broker) Create(ctx context.Context, from, to string) (*GameRequest, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, ErrInvalidArgs
	}
	if from == to {
		return nil, ErrInvalidTarget
	}

	gameID := uuid.NewString()
	claimed, err := b.store.ClaimPair(ctx, from, to, gameID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRequestPending
	}

	req := &GameRequest{
		GameID:    gameID,
		From:      from,
		To:        to,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := b.store.Save(ctx, req); err != nil {
		// Roll the claim back so the pair is not wedged by a half-written
		// request.
		_ = b.store.ReleasePair(ctx, from, to)
		return nil, err
	}

	b.log.Info("request_create",
		zap.String("game_id", gameID),
		zap.String("from", from),
		zap.String("to", to),
	)
	b.notifyTarget(req)
	return req, nil
}

// Respond resolves the pending request gameID as responder. Only the invited
// identity may respond, and only while the request is still pending. Accept
// starts the session with the inviter as white; reject notifies the inviter.
func (b *Broker) Respond(ctx context.Context, gameID, responder string, action Action) (*GameRequest, error) {
	gameID, responder = strings.TrimSpace(gameID), strings.TrimSpace(responder)
	if gameID == "" || responder == "" {
		return nil, ErrInvalidArgs
	}
	if action != ActionAccept && action != ActionReject {
		return nil, ErrInvalidArgs
	}

	req, err := b.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Status != StatusPending || req.To != responder {
		return nil, ErrRequestNotFound
	}

	now := time.Now()
	req.ResolvedAt = &now
	if action == ActionAccept {
		req.Status = StatusAccepted
	} else {
		req.Status = StatusRejected
	}
	if err := b.store.Save(ctx, req); err != nil {
		return nil, err
	}
	if err := b.store.ReleasePair(ctx, req.From, req.To); err != nil {
		b.log.Warn("request_release_pair", zap.String("game_id", gameID), zap.Error(err))
	}

	b.log.Info("request_respond",
		zap.String("game_id", gameID),
		zap.String("responder", responder),
		zap.String("action", string(action)),
	)

	if action == ActionReject {
		b.notifyRejected(req)
		return req, nil
	}
	b.notifyAccepted(req)
	if b.start != nil {
		if err := b.start(req.From, req.To, req.GameID); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// notifyAccepted tells the inviter the invitation was taken and which color
// they will play; the init_game frames follow from the session layer.
func (b *Broker) notifyAccepted(req *GameRequest) {
	data, err := wire.Encode(wire.TypeAcceptGameRequest, wire.AcceptGameRequest{
		GameID: req.GameID,
		From:   req.From,
		To:     req.To,
		Color:  "white",
	})
	if err != nil {
		b.log.Error("encode_accept_request", zap.Error(err))
		return
	}
	b.deliver(req.From, data)
}

func (b *Broker) notifyTarget(req *GameRequest) {
	data, err := wire.Encode(wire.TypeSendGameRequest, wire.GameRequest{
		From:   req.From,
		To:     req.To,
		GameID: req.GameID,
	})
	if err != nil {
		b.log.Error("encode_game_request", zap.Error(err))
		return
	}
	b.deliver(req.To, data)
}

func (b *Broker) notifyRejected(req *GameRequest) {
	msg := req.To + " declined your challenge"
	if b.cat != nil {
		if txt, err := b.cat.Render("request.rejected", map[string]any{"From": req.From, "To": req.To}); err == nil {
			msg = txt
		}
	}
	data, err := wire.Encode(wire.TypeRequestRejected, wire.RequestRejected{
		GameID: req.GameID,
		From:   req.From,
		To:     req.To,
		Msg:    msg,
	})
	if err != nil {
		b.log.Error("encode_request_rejected", zap.Error(err))
		return
	}
	b.deliver(req.From, data)
}

func (b *Broker) deliver(to string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.notify.Send(ctx, to, data); err != nil {
		b.log.Debug("deliver_skipped", zap.String("identity", to), zap.Error(err))
	}
}
