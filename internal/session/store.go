package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/msgcat"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

// Sender delivers an encoded wire frame to an identity's live connection.
// Satisfied by the connection registry. Delivery failures are logged and
// swallowed: a disconnected participant misses the frame and resyncs from
// canonical history on reconnect.
type Sender interface {
	Send(ctx context.Context, identity string, data []byte) error
}

// Archiver persists a completed session. Satisfied by Repository; nil-able.
type Archiver interface {
	SaveResult(ctx context.Context, v *View, method string) error
}

// Options configures a Store.
type Options struct {
	// MoveTime is the per-move budget before forfeiture. Defaults to 60s.
	MoveTime time.Duration
}

// Store owns every live session and is the only code that mutates one.
// Mutations of a single session are serialized by the session mutex; the
// store mutex guards only the lookup maps, so different sessions proceed in
// parallel.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]string // identity -> active session id

	validator MoveValidator
	clock     *TurnClock
	sender    Sender
	repo      Archiver
	cat       *msgcat.Catalog
	log       *zap.Logger
	moveTime  time.Duration
}

func NewStore(opts Options, validator MoveValidator, sender Sender, repo Archiver, cat *msgcat.Catalog, log *zap.Logger) *Store {
	if opts.MoveTime <= 0 {
		opts.MoveTime = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		sessions:  make(map[string]*Session),
		byUser:    make(map[string]string),
		validator: validator,
		sender:    sender,
		repo:      repo,
		cat:       cat,
		log:       log,
		moveTime:  opts.MoveTime,
	}
	s.clock = NewTurnClock(s.ForceTimeout)
	return s
}

// Create starts a new session between whiteID and blackID. An empty gameID
// gets a generated one. Fails with ErrDuplicateParticipant when either
// identity already has an active session. Both participants are sent an
// init_game frame carrying their color before Create returns; delivery is
// best-effort per the registry contract.
func (s *Store) Create(whiteID, blackID, gameID string) (*View, error) {
	if whiteID == "" || blackID == "" || whiteID == blackID {
		return nil, ErrNotParticipant
	}
	if gameID == "" {
		gameID = uuid.NewString()
	}

	now := time.Now()
	sess := &Session{
		ID:        gameID,
		WhiteID:   whiteID,
		BlackID:   blackID,
		FEN:       startingFEN,
		Turn:      White,
		Status:    StatusActive,
		Deadline:  now.Add(s.moveTime),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if _, busy := s.byUser[whiteID]; busy {
		s.mu.Unlock()
		return nil, ErrDuplicateParticipant
	}
	if _, busy := s.byUser[blackID]; busy {
		s.mu.Unlock()
		return nil, ErrDuplicateParticipant
	}
	if _, exists := s.sessions[gameID]; exists {
		s.mu.Unlock()
		return nil, ErrDuplicateParticipant
	}
	s.sessions[gameID] = sess
	s.byUser[whiteID] = gameID
	s.byUser[blackID] = gameID
	s.mu.Unlock()

	s.clock.Start(gameID, s.moveTime)
	s.log.Info("session_create",
		zap.String("game_id", gameID),
		zap.String("white_id", whiteID),
		zap.String("black_id", blackID),
	)

	s.sendInit(sess, whiteID, White, blackID)
	s.sendInit(sess, blackID, Black, whiteID)
	return snapshot(sess), nil
}

// ApplyMove validates and applies mover's move in order of arrival. On
// success the move is broadcast to both participants with their new turn
// flags; a terminal position instead completes the session and emits exactly
// one game_over.
func (s *Store) ApplyMove(sessionID, mover string, mv Move) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.Status != StatusActive {
		sess.mu.Unlock()
		return ErrSessionCompleted
	}
	color := sess.colorOf(mover)
	if color == "" {
		sess.mu.Unlock()
		return ErrNotParticipant
	}
	if color != sess.Turn {
		sess.mu.Unlock()
		return ErrNotYourTurn
	}

	res, err := s.validator.Apply(sess.MovesUCI, mv)
	if err != nil {
		sess.mu.Unlock()
		if errors.Is(err, ErrIllegalMove) {
			return err
		}
		// Validator could not affirm legality; fail closed.
		s.log.Error("validator_error", zap.String("game_id", sess.ID), zap.Error(err))
		return ErrIllegalMove
	}

	sess.MovesUCI = append(sess.MovesUCI, res.UCI)
	sess.MovesSAN = append(sess.MovesSAN, res.SAN)
	sess.FEN = res.FEN
	sess.Turn = res.NextTurn
	sess.UpdatedAt = time.Now()
	sess.Deadline = sess.UpdatedAt.Add(s.moveTime)

	s.log.Info("session_move",
		zap.String("game_id", sess.ID),
		zap.String("mover", mover),
		zap.String("uci", res.UCI),
		zap.Int("ply", len(sess.MovesUCI)),
	)

	if res.Over {
		s.broadcastMove(sess, res, true)
		out := Outcome{WinnerColor: res.Winner, Method: res.Method}
		s.completeLocked(sess, out)
		sess.mu.Unlock()
		s.finalize(sess)
		return nil
	}

	s.clock.Reset(sess.ID, s.moveTime)
	s.broadcastMove(sess, res, false)
	sess.mu.Unlock()
	return nil
}

// Resign completes the session in favor of identity's opponent.
func (s *Store) Resign(sessionID, identity string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.Status != StatusActive {
		sess.mu.Unlock()
		return ErrSessionCompleted
	}
	color := sess.colorOf(identity)
	if color == "" {
		sess.mu.Unlock()
		return ErrNotParticipant
	}

	s.log.Info("session_resign", zap.String("game_id", sess.ID), zap.String("resigner", identity))
	s.completeLocked(sess, Outcome{WinnerColor: color.Opponent(), Method: MethodResignation})
	sess.mu.Unlock()
	s.finalize(sess)
	return nil
}

// ForceTimeout is the clock's forfeiture callback: the player to move loses.
// It no-ops when the session is gone or already completed, which makes the
// fire-after-completion race safe; calling it twice has the effect of
// calling it once.
func (s *Store) ForceTimeout(sessionID string) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return
	}

	sess.mu.Lock()
	if sess.Status != StatusActive {
		sess.mu.Unlock()
		return
	}

	s.log.Info("session_timeout",
		zap.String("game_id", sess.ID),
		zap.String("flagged", sess.identityOf(sess.Turn)),
	)
	s.completeLocked(sess, Outcome{WinnerColor: sess.Turn.Opponent(), Method: MethodTimeout})
	sess.mu.Unlock()
	s.finalize(sess)
}

// Get returns a copy of the session's observable state.
func (s *Store) Get(sessionID string) (*View, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return snapshot(sess), nil
}

// ActiveSessionID resolves identity's current session, if any.
func (s *Store) ActiveSessionID(identity string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[identity]
	return id, ok
}

// Close cancels every pending clock. Live sessions are abandoned, not
// forfeited; the process is going away.
func (s *Store) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.clock.Cancel(id)
	}
}

func (s *Store) lookup(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// completeLocked transitions the session to Completed and emits the single
// game_over pair. Caller holds sess.mu and must call finalize afterwards.
func (s *Store) completeLocked(sess *Session, out Outcome) {
	sess.Status = StatusCompleted
	sess.Outcome = &out
	sess.UpdatedAt = time.Now()
	s.clock.Cancel(sess.ID)

	winner := string(out.WinnerColor)
	s.sendGameOver(sess.WhiteID, winner, s.overText(White, out))
	s.sendGameOver(sess.BlackID, winner, s.overText(Black, out))

	s.log.Info("session_complete",
		zap.String("game_id", sess.ID),
		zap.String("winner", winner),
		zap.String("method", out.Method),
	)
}

// finalize removes a completed session from the live maps and archives it.
// Runs without the session lock; late operations that still hold the old
// pointer are rejected by the Completed status check.
func (s *Store) finalize(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	if s.byUser[sess.WhiteID] == sess.ID {
		delete(s.byUser, sess.WhiteID)
	}
	if s.byUser[sess.BlackID] == sess.ID {
		delete(s.byUser, sess.BlackID)
	}
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	sess.mu.Lock()
	v := snapshot(sess)
	method := ""
	if sess.Outcome != nil {
		method = sess.Outcome.Method
	}
	sess.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.SaveResult(ctx, v, method); err != nil {
			s.log.Error("session_archive_error", zap.String("game_id", v.ID), zap.Error(err))
			return
		}
		s.log.Info("session_archive", zap.String("game_id", v.ID), zap.String("method", method))
	}()
}

func (s *Store) sendInit(sess *Session, to string, color Color, opponent string) {
	data, err := wire.EncodeTurn(wire.TypeInitGame, wire.Bool(color == White), wire.InitGame{
		Color:    string(color),
		GameID:   sess.ID,
		Opponent: opponent,
	})
	if err != nil {
		s.log.Error("encode_init_game", zap.Error(err))
		return
	}
	s.deliver(to, data)
}

// broadcastMove sends the accepted move to both sides with each recipient's
// turn flag. When the move ended the game both flags are false so the move
// frame can never contradict the game_over that follows it.
func (s *Store) broadcastMove(sess *Session, res *MoveResult, over bool) {
	event := wire.MoveEvent{
		Move: wire.Move{From: res.UCI[:2], To: res.UCI[2:4], Promotion: res.UCI[4:]},
		SAN:  res.SAN,
		FEN:  res.FEN,
	}
	for _, color := range []Color{White, Black} {
		turn := !over && sess.Turn == color
		data, err := wire.EncodeTurn(wire.TypeMove, wire.Bool(turn), event)
		if err != nil {
			s.log.Error("encode_move", zap.Error(err))
			return
		}
		s.deliver(sess.identityOf(color), data)
	}
}

func (s *Store) sendGameOver(to, winner, msg string) {
	data, err := wire.Encode(wire.TypeGameOver, wire.GameOver{Winner: winner, Msg: msg})
	if err != nil {
		s.log.Error("encode_game_over", zap.Error(err))
		return
	}
	s.deliver(to, data)
}

func (s *Store) deliver(to string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sender.Send(ctx, to, data); err != nil {
		s.log.Debug("deliver_skipped", zap.String("identity", to), zap.Error(err))
	}
}

// overText composes the recipient-facing result line for side's player.
func (s *Store) overText(side Color, out Outcome) string {
	var key string
	switch {
	case out.WinnerColor == "":
		key = "game_over.draw"
	case out.Method == MethodResignation && out.WinnerColor != side:
		key = "game_over.resigned_self"
	case out.Method == MethodResignation:
		key = "game_over.resigned_opponent"
	case out.Method == MethodTimeout && out.WinnerColor != side:
		key = "game_over.timeout_self"
	case out.Method == MethodTimeout:
		key = "game_over.timeout_opponent"
	case out.WinnerColor == side:
		key = "game_over.win"
	default:
		key = "game_over.lose"
	}
	if s.cat != nil {
		if txt, err := s.cat.Render(key, map[string]any{"Winner": string(out.WinnerColor)}); err == nil {
			return txt
		}
	}
	return fallbackOverText(key)
}

func fallbackOverText(key string) string {
	switch key {
	case "game_over.draw":
		return "It's a draw!"
	case "game_over.resigned_self":
		return "You resigned"
	case "game_over.resigned_opponent":
		return "Opponent resigned"
	case "game_over.timeout_self":
		return "You ran out of time"
	case "game_over.timeout_opponent":
		return "Opponent ran out of time"
	case "game_over.win":
		return "You win"
	default:
		return "You lose"
	}
}

func snapshot(sess *Session) *View {
	v := &View{
		ID:       sess.ID,
		WhiteID:  sess.WhiteID,
		BlackID:  sess.BlackID,
		FEN:      sess.FEN,
		MovesUCI: append([]string(nil), sess.MovesUCI...),
		MovesSAN: append([]string(nil), sess.MovesSAN...),
		Turn:     sess.Turn,
		Status:   sess.Status,
		Deadline: sess.Deadline,
	}
	if sess.Outcome != nil {
		out := *sess.Outcome
		v.Outcome = &out
	}
	v.CreatedAt = sess.CreatedAt
	v.UpdatedAt = sess.UpdatedAt
	return v
}
