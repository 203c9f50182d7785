// Package request manages direct (friend-to-friend) game invitations. A
// pending invitation lives in Redis until the target explicitly accepts or
// rejects it; there is no automatic expiry.
package request

import "time"

// Status is the invitation lifecycle state. A request is immutable once it
// leaves Pending.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Action is the target's response to a pending invitation.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// GameRequest is an invitation from From to To, keyed by its GameID.
type GameRequest struct {
	GameID     string     `json:"game_id"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrInvalidTarget   = errf("cannot challenge yourself")
	ErrRequestPending  = errf("a pending request already exists for this pair")
	ErrRequestNotFound = errf("no matching pending request")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
