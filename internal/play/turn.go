package play

import "github.com/openxq/xiangqi-client/internal/rule"

// TimerPair bundles one side's game clock and per-move clock.
type TimerPair struct {
	Game *CountdownTimer
	Step *CountdownTimer
}

func (p TimerPair) Ready(gameSeconds, stepSeconds int) {
	p.Game.Ready(gameSeconds)
	p.Step.Ready(stepSeconds)
}

func (p TimerPair) Pause() {
	p.Game.Pause()
	p.Step.Pause()
}

func (p TimerPair) Stop() {
	p.Game.Stop()
	p.Step.Stop()
}

// TurnController flips the active side and drives the four clocks.
// The transition is forced: even when the active host is re-asserted
// unchanged (resync after reconnect), the clocks are restarted so both
// peers converge on the same running side.
type TurnController struct {
	Active   *Observable[rule.ChessHost]
	SelfHost func() rule.ChessHost
	Self     TimerPair
	Other    TimerPair
	OnTurn   func(selfActive bool)
}

// SetActive makes host the side to move and updates the clocks: the
// active side's game clock resumes and its step clock restarts from the
// full budget, the inactive side's clocks freeze.
func (c *TurnController) SetActive(host rule.ChessHost) {
	c.Active.Set(host)

	selfActive := host == c.SelfHost()
	active, inactive := c.Other, c.Self
	if selfActive {
		active, inactive = c.Self, c.Other
	}

	inactive.Pause()
	active.Game.Resume()
	active.Step.Restart()

	if c.OnTurn != nil {
		c.OnTurn(selfActive)
	}
}

// PauseAll freezes all four clocks.
func (c *TurnController) PauseAll() {
	c.Self.Pause()
	c.Other.Pause()
}

// StopAll terminates all four clocks.
func (c *TurnController) StopAll() {
	c.Self.Stop()
	c.Other.Stop()
}
