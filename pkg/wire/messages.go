// Package wire defines the WebSocket protocol spoken between the arena
// server and game clients. Every frame is a JSON Envelope with a type tag
// and a type-specific payload.
package wire

// Message type tags.
const (
	TypeInitGame          = "init_game"
	TypeMove              = "move"
	TypeGameOver          = "game_over"
	TypeSendGameRequest   = "send_game_request"
	TypeAcceptGameRequest = "accept_game_request"
	TypeRequestRejected   = "game_request_rejected"
	TypeResign            = "resign"
	TypeRequestHint       = "request_hint"
	TypeHintResponse      = "hint_response"
	TypeError             = "error"
)

// InitGame is sent to both participants when a session starts.
type InitGame struct {
	Color    string `json:"color"`
	GameID   string `json:"gameId"`
	Opponent string `json:"opponent,omitempty"`
}

// Move is the from/to/promotion triple used both for client move submissions
// and server move broadcasts. Promotion is a single lowercase piece letter
// ("q", "r", "b", "n") when the move promotes a pawn.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// MoveRequest is the client -> server move submission. GameID is optional:
// when absent the server resolves the sender's single active session.
type MoveRequest struct {
	GameID string `json:"gameId,omitempty"`
	Move   Move   `json:"move"`
}

// MoveEvent is the server -> client broadcast of an accepted move. SAN and
// FEN let a reconnecting client resync without replaying locally.
type MoveEvent struct {
	Move
	SAN string `json:"san,omitempty"`
	FEN string `json:"fen,omitempty"`
}

// GameOver reports the terminal result of a session. Winner is the winning
// color ("white"/"black"), or empty on a draw.
type GameOver struct {
	Winner string `json:"winner"`
	Msg    string `json:"msg"`
}

// GameRequest carries a direct game invitation between two identities.
type GameRequest struct {
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	GameID string `json:"gameId"`
}

// AcceptGameRequest is the invitation acceptance. On the server -> inviter
// notification Color carries the inviter's assigned color.
type AcceptGameRequest struct {
	GameID string `json:"gameId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Color  string `json:"color,omitempty"`
}

// RequestRejected tells the inviter their invitation was declined.
type RequestRejected struct {
	GameID string `json:"gameId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Msg    string `json:"msg,omitempty"`
}

// Resign is the client -> server resignation. GameID is optional, as with
// MoveRequest.
type Resign struct {
	GameID string `json:"gameId,omitempty"`
}

// HintResponse answers a request_hint with the engine's suggestion.
type HintResponse struct {
	BestMove string `json:"bestMove"`
	Hint     string `json:"hint"`
}

// Error is a rejection sent only to the connection that caused it.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in Error.Code.
const (
	CodeInvalidMessage   = "invalid_message"
	CodeNotYourTurn      = "not_your_turn"
	CodeIllegalMove      = "illegal_move"
	CodeSessionNotFound  = "session_not_found"
	CodeSessionCompleted = "session_completed"
	CodeDuplicate        = "duplicate_participant"
	CodeInvalidTarget    = "invalid_target"
	CodeRequestNotFound  = "request_not_found"
	CodeRequestPending   = "request_pending"
	CodeAlreadyQueued    = "already_queued"
	CodeInternal         = "internal"
)
