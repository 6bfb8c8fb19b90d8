package rule

// PieceType is a single-letter piece identifier:
// R chariot, N horse, B elephant, A advisor, K general, C cannon, P pawn.
type PieceType byte

const (
	Chariot  PieceType = 'R'
	Horse    PieceType = 'N'
	Elephant PieceType = 'B'
	Advisor  PieceType = 'A'
	General  PieceType = 'K'
	Cannon   PieceType = 'C'
	Pawn     PieceType = 'P'
)

// Piece is a board occupant.
type Piece struct {
	Type PieceType
	Host ChessHost
}

// ChessState describes one piece for snapshot exchange.
type ChessState struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	ChessHost int    `json:"chessHost"`
	Type      string `json:"type"`
}

// Engine is the move-legality and board-state capability the session
// consumes. The session never decides legality itself; it forwards
// authoritative server events here and uses CanMoveTo only as an optimistic
// pre-check before transmitting a local intent.
type Engine interface {
	// StartRound resets the board to the opening layout.
	StartRound()
	// LoadSnapshot replaces the whole board with an authoritative snapshot.
	LoadSnapshot(states []ChessState)
	// Snapshot returns the current occupancy for persistence.
	Snapshot() []ChessState

	// PickChess records a pickup/putdown of the piece at pos by host.
	PickChess(pickup bool, pos Pos, host ChessHost)
	// MoveChess applies an authoritative move. eat reports whether the target
	// square held an opposing piece.
	MoveChess(from, to Pos, host ChessHost, eat bool)

	CanMoveTo(from, to Pos) bool
	IsEmpty(pos Pos) bool
	HostAt(pos Pos) ChessHost

	// Withdraw undoes the last applied move, restoring any eaten piece.
	// Returns whether a further withdraw remains available.
	Withdraw() bool
	CanWithdraw() bool
}
