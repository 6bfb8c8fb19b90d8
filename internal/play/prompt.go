package play

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openxq/xiangqi-client/internal/obslog"
	"github.com/openxq/xiangqi-client/internal/rule"
)

// Prompter asks the local player a yes/no question. Implementations may
// block until the player answers or the context expires.
type Prompter interface {
	Confirm(ctx context.Context, text string) bool
}

// Notifier surfaces transient status text to the local player.
type Notifier interface {
	ShowText(text string, duration time.Duration)
	Hide()
}

// DeclinePrompter answers no to every question. Used when no interactive
// front end is attached, so opponents are never left hanging.
type DeclinePrompter struct{}

func (DeclinePrompter) Confirm(context.Context, string) bool { return false }

// LogNotifier writes status text to the structured log.
type LogNotifier struct{}

func (LogNotifier) ShowText(text string, duration time.Duration) {
	obslog.L().Info("play notice", zap.String("text", text), zap.Duration("duration", duration))
}

func (LogNotifier) Hide() {}

// GameResult is the terminal outcome of one round.
type GameResult struct {
	WinHost   rule.ChessHost // HostNone means draw
	IsTimeout bool
	WinUserID int64 // 0 on draw
}
