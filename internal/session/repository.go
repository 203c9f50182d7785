package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository archives completed sessions to Postgres. The live store never
// reads it back; it exists for history, leaderboards, and post-game tooling.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a completed session.
func (r *Repository) SaveResult(ctx context.Context, v *View, method string) error {
	if r == nil || r.db == nil || v == nil {
		return nil
	}

	result := ""
	if v.Outcome != nil {
		result = string(v.Outcome.WinnerColor)
		if result == "" {
			result = "draw"
		}
	}
	pgnResult := mapResultToPGN(result)
	pgn := buildPGN(v, pgnResult, method)

	movesUCIRaw, _ := json.Marshal(v.MovesUCI)
	movesSANRaw, _ := json.Marshal(v.MovesSAN)
	duration := v.UpdatedAt.Sub(v.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
	    game_id, white_id, black_id,
	    result, result_method, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    white_id=EXCLUDED.white_id,
	    black_id=EXCLUDED.black_id,
	    result=EXCLUDED.result,
	    result_method=EXCLUDED.result_method,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		v.ID, v.WhiteID, v.BlackID,
		result, strings.TrimSpace(method), string(movesUCIRaw), string(movesSANRaw), pgn,
		v.CreatedAt, v.UpdatedAt, duration,
	)
	return err
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(v *View, pgnResult, method string) string {
	var b strings.Builder
	date := v.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"chess-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(v.WhiteID)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(v.BlackID)))
	if strings.TrimSpace(method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(v.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(v.MovesSAN[i])))
		if i+1 < len(v.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(v.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
