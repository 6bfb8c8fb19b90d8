package playdto

// User is a server-side account as seen by the client.
type User struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// RoomSettings carries the per-room time control, in seconds.
type RoomSettings struct {
	GameDuration     int `json:"gameDuration"`
	StepDuration     int `json:"stepDuration"`
	SecondsCountdown int `json:"secondsCountdown"`
}

// Room status codes as pushed by the lobby.
const (
	RoomStatusBeginning = 1
	RoomStatusPlaying   = 2
	RoomStatusPause     = 3
	RoomStatusEnd       = 4
)

// Room is the lobby's view of a game table. The client reads it at session
// construction and on join/leave pushes; the lobby owns its lifecycle.
type Room struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ChannelID int64  `json:"channelId"`
	Status    int    `json:"status"`
	Owner     User   `json:"owner"`

	RedChessUser   *User `json:"redChessUser,omitempty"`
	BlackChessUser *User `json:"blackChessUser,omitempty"`
	RedReadied     bool  `json:"redReadied"`
	BlackReadied   bool  `json:"blackReadied"`
	RedOnline      bool  `json:"redOnline"`
	BlackOnline    bool  `json:"blackOnline"`

	SpectatorCount int `json:"spectatorCount"`

	Settings RoomSettings `json:"roomSettings"`
}
