package play

// GameState is the session lifecycle. Owned exclusively by the Session;
// everything else observes it.
type GameState int

const (
	StateReady GameState = iota
	StatePlaying
	StatePause
	StateEnd
)

func (s GameState) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StatePlaying:
		return "PLAYING"
	case StatePause:
		return "PAUSE"
	case StateEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}
