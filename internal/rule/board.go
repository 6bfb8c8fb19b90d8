package rule

// BoardTracker is a minimal Engine implementation: it tracks occupancy and
// the move stack so the session can tell a plain move from a capture and can
// honor withdrawals. CanMoveTo checks bounds and friendly-fire only; full
// xiangqi legality belongs to a richer Engine plugged through the same
// interface, with the server remaining the final arbiter either way.
type BoardTracker struct {
	cells   [Rows][Cols]*Piece
	actions []boardAction
}

type boardAction struct {
	from, to Pos
	host     ChessHost
	eaten    *Piece
}

func NewBoardTracker() *BoardTracker {
	b := &BoardTracker{}
	b.StartRound()
	return b
}

var backRank = [Cols]PieceType{Chariot, Horse, Elephant, Advisor, General, Advisor, Elephant, Horse, Chariot}

func (b *BoardTracker) StartRound() {
	b.cells = [Rows][Cols]*Piece{}
	b.actions = nil
	for col, t := range backRank {
		b.cells[0][col] = &Piece{Type: t, Host: HostBlack}
		b.cells[Rows-1][col] = &Piece{Type: t, Host: HostRed}
	}
	for _, col := range []int{1, 7} {
		b.cells[2][col] = &Piece{Type: Cannon, Host: HostBlack}
		b.cells[Rows-3][col] = &Piece{Type: Cannon, Host: HostRed}
	}
	for col := 0; col < Cols; col += 2 {
		b.cells[3][col] = &Piece{Type: Pawn, Host: HostBlack}
		b.cells[Rows-4][col] = &Piece{Type: Pawn, Host: HostRed}
	}
}

func (b *BoardTracker) LoadSnapshot(states []ChessState) {
	b.cells = [Rows][Cols]*Piece{}
	b.actions = nil
	for _, s := range states {
		p := Pos{Row: s.Row, Col: s.Col}
		if !p.InBounds() || len(s.Type) == 0 {
			continue
		}
		b.cells[p.Row][p.Col] = &Piece{Type: PieceType(s.Type[0]), Host: HostFromCode(s.ChessHost)}
	}
}

func (b *BoardTracker) Snapshot() []ChessState {
	var out []ChessState
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			piece := b.cells[row][col]
			if piece == nil {
				continue
			}
			out = append(out, ChessState{
				Row:       row,
				Col:       col,
				ChessHost: piece.Host.Code(),
				Type:      string(piece.Type),
			})
		}
	}
	return out
}

func (b *BoardTracker) PickChess(pickup bool, pos Pos, host ChessHost) {
	// Occupancy does not change on pickup/putdown.
	_ = pickup
	_ = pos
	_ = host
}

func (b *BoardTracker) MoveChess(from, to Pos, host ChessHost, eat bool) {
	if !from.InBounds() || !to.InBounds() {
		return
	}
	action := boardAction{from: from, to: to, host: host}
	if eat {
		action.eaten = b.cells[to.Row][to.Col]
	}
	b.actions = append(b.actions, action)
	b.cells[to.Row][to.Col] = b.cells[from.Row][from.Col]
	b.cells[from.Row][from.Col] = nil
}

func (b *BoardTracker) CanMoveTo(from, to Pos) bool {
	if !from.InBounds() || !to.InBounds() || from.Equals(to) {
		return false
	}
	moving := b.cells[from.Row][from.Col]
	if moving == nil {
		return false
	}
	target := b.cells[to.Row][to.Col]
	if target != nil && target.Host == moving.Host {
		return false
	}
	return true
}

func (b *BoardTracker) IsEmpty(pos Pos) bool {
	return pos.InBounds() && b.cells[pos.Row][pos.Col] == nil
}

func (b *BoardTracker) HostAt(pos Pos) ChessHost {
	if !pos.InBounds() || b.cells[pos.Row][pos.Col] == nil {
		return HostNone
	}
	return b.cells[pos.Row][pos.Col].Host
}

func (b *BoardTracker) Withdraw() bool {
	if len(b.actions) == 0 {
		return false
	}
	last := b.actions[len(b.actions)-1]
	b.actions = b.actions[:len(b.actions)-1]
	b.cells[last.from.Row][last.from.Col] = b.cells[last.to.Row][last.to.Col]
	b.cells[last.to.Row][last.to.Col] = last.eaten
	return len(b.actions) > 0
}

func (b *BoardTracker) CanWithdraw() bool { return len(b.actions) > 0 }
