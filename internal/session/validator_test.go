package session

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyLegalOpening(t *testing.T) {
	v := NewRulesValidator()

	res, err := v.Apply(nil, Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "e2e4" || res.SAN != "e4" {
		t.Fatalf("unexpected result: uci=%q san=%q", res.UCI, res.SAN)
	}
	if res.NextTurn != Black {
		t.Fatalf("expected black to move, got %q", res.NextTurn)
	}
	if res.Over {
		t.Fatalf("opening move must not end the game")
	}
	if !strings.Contains(res.FEN, " b ") {
		t.Fatalf("FEN side-to-move not black: %q", res.FEN)
	}
}

func TestApplyReplaysHistory(t *testing.T) {
	v := NewRulesValidator()

	res, err := v.Apply([]string{"e2e4", "e7e5"}, Move{From: "g1", To: "f3"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.SAN != "Nf3" {
		t.Fatalf("expected Nf3, got %q", res.SAN)
	}
	if res.NextTurn != Black {
		t.Fatalf("expected black to move, got %q", res.NextTurn)
	}
}

func TestApplyIllegalMoves(t *testing.T) {
	v := NewRulesValidator()

	cases := []struct {
		name    string
		history []string
		mv      Move
	}{
		{"pawn jumps three", nil, Move{From: "e2", To: "e5"}},
		{"empty origin", nil, Move{From: "e4", To: "e5"}},
		{"wrong side to move", nil, Move{From: "e7", To: "e5"}},
		{"blocked bishop", nil, Move{From: "f1", To: "c4"}},
		{"malformed", nil, Move{From: "e2"}},
		{"king into check", []string{"e2e4", "f7f5", "d1h5"}, Move{From: "e8", To: "f7"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Apply(tc.history, tc.mv); !errors.Is(err, ErrIllegalMove) {
				t.Fatalf("expected ErrIllegalMove, got %v", err)
			}
		})
	}
}

func TestApplyCorruptHistoryFailsClosed(t *testing.T) {
	v := NewRulesValidator()
	if _, err := v.Apply([]string{"zz9x"}, Move{From: "e2", To: "e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestApplyPromotion(t *testing.T) {
	v := NewRulesValidator()

	history := []string{"a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c7c6", "a6a7", "c6c5"}
	res, err := v.Apply(history, Move{From: "a7", To: "b8", Promotion: "q"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.UCI != "a7b8q" {
		t.Fatalf("unexpected uci: %q", res.UCI)
	}
	if !strings.Contains(res.SAN, "=Q") {
		t.Fatalf("expected promotion SAN, got %q", res.SAN)
	}
}

func TestApplyCheckmate(t *testing.T) {
	v := NewRulesValidator()

	// Fool's mate.
	history := []string{"f2f3", "e7e5", "g2g4"}
	res, err := v.Apply(history, Move{From: "d8", To: "h4"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Over {
		t.Fatalf("expected game over")
	}
	if res.Winner != Black {
		t.Fatalf("expected black winner, got %q", res.Winner)
	}
	if res.Method != MethodCheckmate {
		t.Fatalf("expected checkmate, got %q", res.Method)
	}
}

func TestUCIRendering(t *testing.T) {
	if got := (Move{From: " E2", To: "E4 "}).UCI(); got != "e2e4" {
		t.Fatalf("got %q", got)
	}
	if got := (Move{From: "e7", To: "e8", Promotion: "Q"}).UCI(); got != "e7e8q" {
		t.Fatalf("got %q", got)
	}
}
