package record

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRepositorySaveOverwrites(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec := &GameRecord{
		GameID:       "g-1",
		RoomID:       7,
		RedUserID:    1,
		BlackUserID:  2,
		WinnerUserID: 1,
		EndReason:    "win",
		StartedAt:    time.Now().Add(-time.Minute),
		EndedAt:      time.Now(),
	}
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	// Re-save with the same game id replaces, not appends.
	rec.WinnerUserID = 2
	rec.IsTimeout = true
	if err := repo.SaveResult(ctx, rec); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if repo.Len() != 1 {
		t.Fatalf("len = %d, want 1", repo.Len())
	}
	got, ok := repo.Get("g-1")
	if !ok || got.WinnerUserID != 2 || !got.IsTimeout {
		t.Fatalf("Get = %+v %v", got, ok)
	}

	// Stored record is a copy, not an alias.
	rec.WinnerUserID = 99
	got, _ = repo.Get("g-1")
	if got.WinnerUserID != 2 {
		t.Fatal("stored record aliased the caller's struct")
	}
}
