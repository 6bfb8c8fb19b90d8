package playdto

// Pos is a wire board coordinate.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Move type codes on play.chess_move.
const (
	MoveTypePlain = 1
	MoveTypeEat   = 2
)

// Inbound server pushes.

type RoomUserJoinedMsg struct {
	User User `json:"user"`
}

type RoomUserLeftMsg struct {
	UID int64 `json:"uid"`
}

type GameReadyMsg struct {
	UID     int64 `json:"uid"`
	Readied bool  `json:"readied"`
}

type GameStartedMsg struct {
	RedChessUID   int64 `json:"redChessUid"`
	BlackChessUID int64 `json:"blackChessUid"`
}

type ChessPickMsg struct {
	Pickup    bool `json:"pickup"`
	Pos       Pos  `json:"pos"`
	ChessHost int  `json:"chessHost"`
}

type ChessMoveMsg struct {
	MoveType  int `json:"moveType"`
	FromPos   Pos `json:"fromPos"`
	ToPos     Pos `json:"toPos"`
	ChessHost int `json:"chessHost"`
}

type ConfirmRequestMsg struct {
	ReqType   int `json:"reqType"`
	ChessHost int `json:"chessHost"`
}

type ConfirmResponseMsg struct {
	ReqType   int  `json:"reqType"`
	ChessHost int  `json:"chessHost"`
	OK        bool `json:"ok"`
}

type GameOverMsg struct {
	WinUserID int64 `json:"winUserId"`
}

type SpectatorJoinedMsg struct {
	User           User `json:"user"`
	SpectatorCount int  `json:"spectatorCount"`
}

type SpectatorLeftMsg struct {
	SpectatorCount int `json:"spectatorCount"`
}

type UserOnlineMsg struct {
	UID int64 `json:"uid"`
}

type UserOfflineMsg struct {
	UID int64 `json:"uid"`
}

type GameContinueResponseMsg struct {
	OK bool `json:"ok"`
}

// ChessStateEntry is one occupied square in an authoritative snapshot.
type ChessStateEntry struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	ChessHost int    `json:"chessHost"`
	Type      string `json:"type"`
}

// GameStatesMsg is the post-reconnect resync payload: the full authoritative
// board plus clocks, replacing whatever the client accumulated while away.
type GameStatesMsg struct {
	ActiveChessHost  int               `json:"activeChessHost"`
	Chesses          []ChessStateEntry `json:"chesses"`
	RedGameSeconds   int               `json:"redGameSeconds"`
	RedStepSeconds   int               `json:"redStepSeconds"`
	BlackGameSeconds int               `json:"blackGameSeconds"`
	BlackStepSeconds int               `json:"blackStepSeconds"`
}

// Outbound client requests.

type ReadyRequest struct {
	Readied *bool `json:"readied,omitempty"`
}

type ChessPickRequest struct {
	Pos    Pos  `json:"pos"`
	Pickup bool `json:"pickup"`
}

type ChessMoveRequest struct {
	MoveType int `json:"moveType"`
	FromPos  Pos `json:"fromPos"`
	ToPos    Pos `json:"toPos"`
}

type ConfirmRequestRequest struct {
	ReqType int `json:"reqType"`
}

type ConfirmResponseRequest struct {
	ReqType int  `json:"reqType"`
	OK      bool `json:"ok"`
}

type GameOverRequest struct {
	WinUserID *int64 `json:"winUserId,omitempty"`
}

type GameContinueRequest struct {
	OK bool `json:"ok"`
}
