package session

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Move is a candidate move in coordinate form.
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the move in UCI notation (e2e4, e7e8q).
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// MoveResult is the validator's verdict on a legal move.
type MoveResult struct {
	UCI      string
	SAN      string
	FEN      string
	NextTurn Color

	// Terminal position facts. Winner is meaningful only when Over is true
	// and Method is not a draw.
	Over   bool
	Winner Color
	Method string
}

// MoveValidator decides move legality against a position reconstructed from
// the move history and reports the resulting position. Implementations must
// fail closed: any internal failure is an illegal move.
type MoveValidator interface {
	Apply(history []string, mv Move) (*MoveResult, error)
}

// rulesValidator validates with the chess rules library, replaying the UCI
// history from the start position on every call. History length is bounded
// by game length, so replay stays cheap and keeps the session state as the
// single source of truth.
type rulesValidator struct{}

// NewRulesValidator returns the production MoveValidator.
func NewRulesValidator() MoveValidator { return rulesValidator{} }

func (rulesValidator) Apply(history []string, mv Move) (*MoveResult, error) {
	game, err := replay(history)
	if err != nil {
		// Corrupt history should be impossible; fail closed either way.
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	uci := mv.UCI()
	if len(uci) < 4 {
		return nil, ErrIllegalMove
	}

	pos := game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
	if err := game.Move(decoded, nil); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}

	res := &MoveResult{
		UCI:      uci,
		SAN:      san,
		FEN:      game.FEN(),
		NextTurn: colorFrom(game.Position().Turn()),
	}

	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Over = true
		res.Winner = White
		res.Method = methodString(game)
	case nchess.BlackWon:
		res.Over = true
		res.Winner = Black
		res.Method = methodString(game)
	case nchess.Draw:
		res.Over = true
		res.Method = methodString(game)
	}
	return res, nil
}

func replay(history []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range history {
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return game, nil
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

func methodString(game *nchess.Game) string {
	m := strings.ToLower(game.Method().String())
	switch {
	case strings.Contains(m, "checkmate"):
		return MethodCheckmate
	case strings.Contains(m, "stalemate"):
		return MethodStalemate
	default:
		return MethodDraw
	}
}
