package request

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Resolved requests are kept for a day for audit before Redis reclaims them;
// pending requests carry no TTL at all.
const ttlResolved = 24 * time.Hour

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyRequest(gameID string) string { return "gamereq:id:" + strings.TrimSpace(gameID) }

// keyPair is order-independent so a counter-invitation from the target maps
// onto the same dedup slot.
func (s *Store) keyPair(a, b string) string {
	ids := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(ids)
	return "gamereq:pair:" + ids[0] + "|" + ids[1]
}

// ClaimPair reserves the pending slot for the pair, binding it to gameID.
// Returns false when another pending request already holds the slot.
func (s *Store) ClaimPair(ctx context.Context, from, to, gameID string) (bool, error) {
	return s.rdb.SetNX(ctx, s.keyPair(from, to), gameID, 0).Result()
}

// ReleasePair frees the pending slot once the request is resolved.
func (s *Store) ReleasePair(ctx context.Context, from, to string) error {
	return s.rdb.Del(ctx, s.keyPair(from, to)).Err()
}

func (s *Store) Save(ctx context.Context, req *GameRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var ttl time.Duration // zero = no expiry, the pending contract
	if req.Status != StatusPending {
		ttl = ttlResolved
	}
	return s.rdb.Set(ctx, s.keyRequest(req.GameID), raw, ttl).Err()
}

func (s *Store) Load(ctx context.Context, gameID string) (*GameRequest, error) {
	raw, err := s.rdb.Get(ctx, s.keyRequest(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var req GameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
