// Package resume snapshots an in-progress round so a client restart can
// rejoin the room and restore the board and clocks.
package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openxq/xiangqi-client/internal/rule"
)

const ttlSnapshot = 24 * time.Hour

// Snapshot is the persisted view of one paused or in-flight round.
type Snapshot struct {
	GameID          string            `json:"gameId"`
	RoomID          int64             `json:"roomId"`
	SelfHost        int               `json:"selfHost"`
	ActiveHost      int               `json:"activeHost"`
	Chesses         []rule.ChessState `json:"chesses"`
	RedGameSeconds  int               `json:"redGameSeconds"`
	RedStepSeconds  int               `json:"redStepSeconds"`
	BlackGameSecond int               `json:"blackGameSeconds"`
	BlackStepSecond int               `json:"blackStepSeconds"`
	SavedAt         time.Time         `json:"savedAt"`
}

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// NewStoreFromURL dials redis from a redis:// or rediss:// URL.
func NewStoreFromURL(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) key(roomID int64) string {
	return "play:resume:room:" + strconv.FormatInt(roomID, 10)
}

func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(snap.RoomID), raw, ttlSnapshot).Err()
}

// Load returns nil without error when no snapshot exists.
func (s *Store) Load(ctx context.Context, roomID int64) (*Snapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, s.key(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) Clear(ctx context.Context, roomID int64) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.key(roomID)).Err()
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
