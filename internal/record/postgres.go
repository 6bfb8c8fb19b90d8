package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository stores game records in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a final game result keyed by game id.
func (r *PostgresRepository) SaveResult(ctx context.Context, rec *GameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	if rec.DurationMS < 0 {
		rec.DurationMS = 0
	}

	q := `INSERT INTO xiangqi_games (
        game_id, room_id, red_id, red_name, black_id, black_name,
        winner_id, is_timeout, end_reason, moves,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
      ) ON CONFLICT (game_id) DO UPDATE SET
        winner_id=EXCLUDED.winner_id,
        is_timeout=EXCLUDED.is_timeout,
        end_reason=EXCLUDED.end_reason,
        moves=EXCLUDED.moves,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID, rec.RoomID, rec.RedUserID, rec.RedNickname,
		rec.BlackUserID, rec.BlackNickname,
		rec.WinnerUserID, rec.IsTimeout, rec.EndReason, rec.MovesJSON,
		rec.StartedAt, rec.EndedAt, rec.DurationMS,
	)
	return err
}
