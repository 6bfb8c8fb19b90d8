package resume

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/openxq/xiangqi-client/internal/rule"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb)
}

func TestStoreSaveLoadClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{
		GameID:     "g-1",
		RoomID:     42,
		SelfHost:   rule.HostRed.Code(),
		ActiveHost: rule.HostBlack.Code(),
		Chesses: []rule.ChessState{
			{Row: 0, Col: 4, ChessHost: rule.HostBlack.Code(), Type: string(rule.General)},
		},
		RedGameSeconds: 500,
		RedStepSeconds: 20,
		SavedAt:        time.Now().UTC(),
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, 42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.GameID != "g-1" || got.ActiveHost != rule.HostBlack.Code() {
		t.Fatalf("Load = %+v", got)
	}
	if len(got.Chesses) != 1 || got.Chesses[0].Type != string(rule.General) {
		t.Fatalf("chesses = %+v", got.Chesses)
	}

	if err := s.Clear(ctx, 42); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = s.Load(ctx, 42)
	if err != nil {
		t.Fatalf("Load after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot after clear, got %+v", got)
	}
}

func TestStoreLoadMissingIsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load(context.Background(), 777)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing room, got %+v", got)
	}
}
