// Package session owns the set of live game sessions: authoritative position
// state, turn order, the per-move clock, and outcome resolution.
package session

import (
	"errors"
	"sync"
	"time"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the session lifecycle state. Completed is terminal and absorbing.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Termination methods recorded on completed sessions.
const (
	MethodCheckmate   = "checkmate"
	MethodStalemate   = "stalemate"
	MethodDraw        = "draw"
	MethodResignation = "resignation"
	MethodTimeout     = "timeout"
)

// Outcome is the single terminal result of a session. WinnerColor is empty
// for draws.
type Outcome struct {
	WinnerColor Color
	Method      string
}

const startingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Session is one two-player game. All fields are guarded by mu; the store
// mutates a session only while holding it.
type Session struct {
	mu sync.Mutex

	ID      string
	WhiteID string
	BlackID string

	FEN      string
	MovesUCI []string
	MovesSAN []string
	Turn     Color

	Status   Status
	Outcome  *Outcome
	Deadline time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// colorOf returns identity's bound color, or "" if identity is not a
// participant.
func (s *Session) colorOf(identity string) Color {
	switch identity {
	case s.WhiteID:
		return White
	case s.BlackID:
		return Black
	default:
		return ""
	}
}

// identityOf returns the participant bound to color.
func (s *Session) identityOf(color Color) string {
	if color == White {
		return s.WhiteID
	}
	return s.BlackID
}

// View is an immutable copy of a session's observable state, safe to hand to
// HTTP handlers and tests.
type View struct {
	ID       string
	WhiteID  string
	BlackID  string
	FEN      string
	MovesUCI []string
	MovesSAN []string
	Turn     Color
	Status   Status
	Outcome  *Outcome
	Deadline time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionCompleted     = errors.New("session already completed")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrIllegalMove          = errors.New("illegal move")
	ErrNotParticipant       = errors.New("identity is not a participant")
	ErrDuplicateParticipant = errors.New("identity already has an active session")
)
