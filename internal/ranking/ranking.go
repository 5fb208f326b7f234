// Package ranking is the redis-backed store for per-slot ranking
// history snapshots collected by an external crawler. The engine only
// cares about one thing here: when a slot's keyword or url changes,
// the stored history stops being attributable to the slot's current
// configuration and must be invalidated.
package ranking

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rank:slot:"

// Snapshot is one ranking observation for a slot's keyword/url pair.
type Snapshot struct {
	Rank      int       `json:"rank"`
	Keyword   string    `json:"keyword"`
	CheckedAt time.Time `json:"checked_at"`
}

// Store reads and writes ranking history in redis. A nil client makes
// every method a no-op, mirroring how the rate limiter degrades when
// redis is unavailable.
type Store struct {
	rdb *redis.Client
}

// NewStore returns a Store over the given client, which may be nil.
func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Invalidate drops the slot's entire ranking history. Implements the
// engine's RankingInvalidator; an error aborts the mutation that
// triggered it.
func (s *Store) Invalidate(ctx context.Context, slotID uint64) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, key(slotID)).Err()
}

// Append records a snapshot at the tail of the slot's history.
func (s *Store) Append(ctx context.Context, slotID uint64, snap Snapshot) error {
	if s.rdb == nil {
		return nil
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, key(slotID), body).Err()
}

// History returns the slot's snapshots oldest first. A missing key
// yields an empty slice.
func (s *Store) History(ctx context.Context, slotID uint64) ([]Snapshot, error) {
	if s.rdb == nil {
		return []Snapshot{}, nil
	}
	raw, err := s.rdb.LRange(ctx, key(slotID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(raw))
	for _, item := range raw {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func key(slotID uint64) string {
	return keyPrefix + strconv.FormatUint(slotID, 10)
}
