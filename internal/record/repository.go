// Package record persists finished game results.
package record

import (
	"context"
	"time"
)

// GameRecord is one completed round.
type GameRecord struct {
	GameID        string    `json:"gameId"`
	RoomID        int64     `json:"roomId"`
	RedUserID     int64     `json:"redUserId"`
	RedNickname   string    `json:"redNickname"`
	BlackUserID   int64     `json:"blackUserId"`
	BlackNickname string    `json:"blackNickname"`
	WinnerUserID  int64     `json:"winnerUserId"` // 0 means draw
	IsTimeout     bool      `json:"isTimeout"`
	EndReason     string    `json:"endReason"`
	MovesJSON     string    `json:"movesJson"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	DurationMS    int64     `json:"durationMs"`
}

// Repository stores game records.
type Repository interface {
	SaveResult(ctx context.Context, rec *GameRecord) error
	Close() error
}
