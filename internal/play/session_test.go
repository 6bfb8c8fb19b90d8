package play

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/openxq/xiangqi-client/internal/rule"
	"github.com/openxq/xiangqi-client/internal/server"
	"github.com/openxq/xiangqi-client/pkg/playdto"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     []server.Frame
	msgCbs   map[int]server.MessageCallback
	stateCbs map[int]server.StateCallback
	nextID   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgCbs:   make(map[int]server.MessageCallback),
		stateCbs: make(map[int]server.StateCallback),
	}
}

func (c *fakeConn) Connect(context.Context) error { return nil }

func (c *fakeConn) Send(_ context.Context, cmd string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sent = append(c.sent, server.Frame{Cmd: cmd, Data: raw})
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) OnMessage(cb server.MessageCallback) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.msgCbs[c.nextID] = cb
	return c.nextID
}

func (c *fakeConn) RemoveMessageCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.msgCbs, id)
}

func (c *fakeConn) OnStateChange(cb server.StateCallback) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.stateCbs[c.nextID] = cb
	return c.nextID
}

func (c *fakeConn) RemoveStateCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stateCbs, id)
}

func (c *fakeConn) Close(context.Context) error { return nil }

// push delivers an inbound frame to every subscriber.
func (c *fakeConn) push(t *testing.T, cmd string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", cmd, err)
	}
	c.mu.Lock()
	cbs := make([]server.MessageCallback, 0, len(c.msgCbs))
	for _, cb := range c.msgCbs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(&server.Frame{Cmd: cmd, Data: raw})
	}
}

func (c *fakeConn) setState(st server.ConnState) {
	c.mu.Lock()
	cbs := make([]server.StateCallback, 0, len(c.stateCbs))
	for _, cb := range c.stateCbs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()
	for _, cb := range cbs {
		cb(st)
	}
}

// lastSent returns the most recent outbound frame with the given cmd.
func (c *fakeConn) lastSent(cmd string) *server.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Cmd == cmd {
			f := c.sent[i]
			return &f
		}
	}
	return nil
}

var (
	alice = playdto.User{ID: 1, Nickname: "alice"}
	bob   = playdto.User{ID: 2, Nickname: "bob"}
)

func newTestRoom() *playdto.Room {
	return &playdto.Room{
		ID:     77,
		Name:   "table-77",
		Status: playdto.RoomStatusBeginning,
		Owner:  alice,
		Settings: playdto.RoomSettings{
			GameDuration:     60,
			StepDuration:     20,
			SecondsCountdown: 5,
		},
	}
}

func newTestSession(t *testing.T) (*GameSession, *fakeConn, *clockwork.FakeClock) {
	t.Helper()
	conn := newFakeConn()
	clock := clockwork.NewFakeClock()
	s := NewGameSession(SessionParams{
		Conn:   conn,
		Engine: rule.NewBoardTracker(),
		Room:   newTestRoom(),
		User:   alice,
		Clock:  clock,
	})
	t.Cleanup(s.Close)
	return s, conn, clock
}

// sync waits until the event loop has drained everything posted so far.
func (s *GameSession) sync() { s.do(func() {}) }

// startRound drives a session from READY into a running round with the
// local player as red.
func startRound(t *testing.T, s *GameSession, conn *fakeConn) {
	t.Helper()
	conn.push(t, "room.user_joined", playdto.RoomUserJoinedMsg{User: bob})
	conn.push(t, "play.game_started", playdto.GameStartedMsg{RedChessUID: alice.ID, BlackChessUID: bob.ID})
	s.sync()
	if got := s.State.Value(); got != StatePlaying {
		t.Fatalf("state = %v, want PLAYING", got)
	}
	if got := s.Host.Value(); got != rule.HostRed {
		t.Fatalf("host = %v, want RED", got)
	}
}

// pushMove echoes a server-confirmed move and waits for it to apply.
func pushMove(t *testing.T, s *GameSession, conn *fakeConn, host rule.ChessHost, from, to rule.Pos, eat bool) {
	t.Helper()
	moveType := playdto.MoveTypePlain
	if eat {
		moveType = playdto.MoveTypeEat
	}
	conn.push(t, "play.chess_move", playdto.ChessMoveMsg{
		MoveType:  moveType,
		FromPos:   playdto.Pos{Row: from.Row, Col: from.Col},
		ToPos:     playdto.Pos{Row: to.Row, Col: to.Col},
		ChessHost: host.Code(),
	})
	s.sync()
}

func TestGameStartedArmsClocksRedFirst(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	if got := s.ActiveHost.Value(); got != rule.HostRed {
		t.Fatalf("active = %v, want RED", got)
	}
	if got := s.turn.Self.Game.State(); got != TimerRunning {
		t.Fatalf("self game timer = %v, want RUNNING", got)
	}
	if got := s.turn.Other.Game.State(); got != TimerReady {
		t.Fatalf("other game timer = %v, want READY (never run)", got)
	}
}

func TestMoveEchoFlipsTurn(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	// Red's pawn advance comes back from the server.
	pushMove(t, s, conn, rule.HostRed, rule.Pos{Row: 6, Col: 0}, rule.Pos{Row: 5, Col: 0}, false)

	if got := s.ActiveHost.Value(); got != rule.HostBlack {
		t.Fatalf("active = %v, want BLACK after red's move", got)
	}
	if got := s.turn.Self.Game.State(); got != TimerPaused {
		t.Fatalf("self game timer = %v, want PAUSED", got)
	}
	if got := s.turn.Other.Game.State(); got != TimerRunning {
		t.Fatalf("other game timer = %v, want RUNNING", got)
	}
	if !s.CanWithdraw.Value() {
		t.Fatal("canWithdraw should be true after a move")
	}
}

func TestStepTimeoutLosesForActiveSide(t *testing.T) {
	s, conn, clock := newTestSession(t)
	startRound(t, s, conn)

	// Red (self) never moves: the step clock runs out first.
	clock.Advance(20 * time.Second)
	s.sync()

	if got := s.State.Value(); got != StateEnd {
		t.Fatalf("state = %v, want END", got)
	}
	res := s.Result.Value()
	if res == nil || !res.IsTimeout || res.WinHost != rule.HostBlack {
		t.Fatalf("result = %+v, want black timeout win", res)
	}
	if res.WinUserID != bob.ID {
		t.Fatalf("winUserID = %d, want %d", res.WinUserID, bob.ID)
	}
	// Owner reports the result upstream.
	f := conn.lastSent("play.game_over")
	if f == nil {
		t.Fatal("expected play.game_over to be sent")
	}
	var req playdto.GameOverRequest
	if err := json.Unmarshal(f.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.WinUserID == nil || *req.WinUserID != bob.ID {
		t.Fatalf("reported winner = %v, want %d", req.WinUserID, bob.ID)
	}
}

func TestGameTimerExpiryArmsCountdown(t *testing.T) {
	s, conn, clock := newTestSession(t)
	startRound(t, s, conn)

	// Keep red's step clock alive by trading moves until red's
	// main budget is gone. Each red turn burns 15s of game time.
	reds := [][2]rule.Pos{
		{{Row: 6, Col: 0}, {Row: 5, Col: 0}},
		{{Row: 6, Col: 2}, {Row: 5, Col: 2}},
		{{Row: 6, Col: 4}, {Row: 5, Col: 4}},
		{{Row: 6, Col: 6}, {Row: 5, Col: 6}},
	}
	blacks := [][2]rule.Pos{
		{{Row: 3, Col: 0}, {Row: 4, Col: 0}},
		{{Row: 3, Col: 2}, {Row: 4, Col: 2}},
		{{Row: 3, Col: 4}, {Row: 4, Col: 4}},
		{{Row: 3, Col: 6}, {Row: 4, Col: 6}},
	}
	for i := 0; i < 3; i++ {
		clock.Advance(15 * time.Second)
		s.sync()
		pushMove(t, s, conn, rule.HostRed, reds[i][0], reds[i][1], false)
		pushMove(t, s, conn, rule.HostBlack, blacks[i][0], blacks[i][1], false)
	}
	// 45s burned; this red turn exhausts the 60s game budget.
	clock.Advance(15 * time.Second)
	s.sync()

	if got := s.State.Value(); got != StatePlaying {
		t.Fatalf("state = %v, game timer expiry must not end the round", got)
	}
	if got := s.turn.Self.Step.State(); got != TimerRunning {
		t.Fatalf("step timer = %v, want RUNNING as fixed countdown", got)
	}
	if got := s.turn.Self.Step.TotalSeconds(); got != 5 {
		t.Fatalf("step budget = %d, want secondsCountdown 5", got)
	}

	// Now the fixed countdown is the only clock left; letting it lapse loses.
	clock.Advance(5 * time.Second)
	s.sync()
	if got := s.State.Value(); got != StateEnd {
		t.Fatalf("state = %v, want END after countdown lapse", got)
	}
}

func TestPausedClocksSurviveOpponentOffline(t *testing.T) {
	s, conn, clock := newTestSession(t)
	startRound(t, s, conn)

	clock.Advance(10 * time.Second)
	s.sync()
	conn.push(t, "user.offline", playdto.UserOfflineMsg{UID: bob.ID})
	s.sync()

	if got := s.State.Value(); got != StatePause {
		t.Fatalf("state = %v, want PAUSE", got)
	}
	if s.OtherOnline.Value() {
		t.Fatal("other should be offline")
	}
	// Clock time while paused costs nothing.
	clock.Advance(time.Hour)
	s.sync()
	if got := s.State.Value(); got != StatePause {
		t.Fatalf("state = %v, paused round must not time out", got)
	}
	if got := s.turn.Self.Game.Remaining(); got != 50*time.Second {
		t.Fatalf("remaining = %v, want 50s frozen", got)
	}

	conn.push(t, "play.game_continue_response", playdto.GameContinueResponseMsg{OK: true})
	s.sync()
	if got := s.State.Value(); got != StatePlaying {
		t.Fatalf("state = %v, want PLAYING after continue", got)
	}
	if got := s.turn.Self.Game.State(); got != TimerRunning {
		t.Fatalf("self game timer = %v, want RUNNING again", got)
	}
}

func TestContinueDeclinedEndsAndResets(t *testing.T) {
	s, conn, clock := newTestSession(t)
	startRound(t, s, conn)

	conn.push(t, "user.offline", playdto.UserOfflineMsg{UID: bob.ID})
	conn.push(t, "play.game_continue_response", playdto.GameContinueResponseMsg{OK: false})
	s.sync()

	if got := s.State.Value(); got != StateEnd {
		t.Fatalf("state = %v, want END after declined continue", got)
	}
	if s.OtherUser.Value().ID != 0 {
		t.Fatal("other user should be cleared")
	}
	if got := s.Waiting.Value(); got != WaitingNone {
		t.Fatalf("waiting = %d, flag must not raise before the delay", got)
	}

	clock.Advance(2 * time.Second)
	s.sync()
	if got := s.State.Value(); got != StateEnd {
		t.Fatalf("state = %v, END sticks until a re-ready", got)
	}
	if got := s.Waiting.Value(); got != WaitingJoin {
		t.Fatalf("waiting = %d, want WaitingJoin after the delay", got)
	}
}

func TestWhiteFlagAcceptedWinnerIsResponder(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	if err := s.RequestWhiteFlag(); err != nil {
		t.Fatalf("RequestWhiteFlag: %v", err)
	}
	if conn.lastSent("play.confirm_request") == nil {
		t.Fatal("confirm_request not sent")
	}

	// Server broadcasts bob's acceptance; bob (black) wins.
	conn.push(t, "play.confirm_response", playdto.ConfirmResponseMsg{
		ReqType: ConfirmWhiteFlag.Code(), ChessHost: rule.HostBlack.Code(), OK: true,
	})
	s.sync()

	res := s.Result.Value()
	if res == nil || res.WinHost != rule.HostBlack || res.IsTimeout {
		t.Fatalf("result = %+v, want black win by resignation", res)
	}
}

func TestDrawAcceptedHasNoWinner(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	if err := s.RequestDraw(); err != nil {
		t.Fatalf("RequestDraw: %v", err)
	}
	conn.push(t, "play.confirm_response", playdto.ConfirmResponseMsg{
		ReqType: ConfirmDraw.Code(), ChessHost: rule.HostBlack.Code(), OK: true,
	})
	s.sync()

	res := s.Result.Value()
	if res == nil || res.WinHost != rule.HostNone || res.WinUserID != 0 {
		t.Fatalf("result = %+v, want draw", res)
	}
}

func TestWithdrawAcceptedUndoesMoveAndFlipsTurn(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	pushMove(t, s, conn, rule.HostRed, rule.Pos{Row: 6, Col: 0}, rule.Pos{Row: 5, Col: 0}, false)
	if got := s.ActiveHost.Value(); got != rule.HostBlack {
		t.Fatalf("active = %v, want BLACK", got)
	}

	if err := s.RequestWithdraw(); err != nil {
		t.Fatalf("RequestWithdraw: %v", err)
	}
	conn.push(t, "play.confirm_response", playdto.ConfirmResponseMsg{
		ReqType: ConfirmWithdraw.Code(), ChessHost: rule.HostBlack.Code(), OK: true,
	})
	s.sync()

	if got := s.ActiveHost.Value(); got != rule.HostRed {
		t.Fatalf("active = %v, want RED again after takeback", got)
	}
	if s.CanWithdraw.Value() {
		t.Fatal("canWithdraw should be false with an empty move stack")
	}
	if s.engine.IsEmpty(rule.Pos{Row: 6, Col: 0}) {
		t.Fatal("pawn should be back on its origin square")
	}
}

func TestSecondConfirmRequestRejected(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	if err := s.RequestDraw(); err != nil {
		t.Fatalf("RequestDraw: %v", err)
	}
	if err := s.RequestWhiteFlag(); !errors.Is(err, ErrRequestOutstanding) {
		t.Fatalf("second request err = %v, want ErrRequestOutstanding", err)
	}

	// An inbound request while ours is pending is dropped, not prompted.
	before := len(conn.sent)
	conn.push(t, "play.confirm_request", playdto.ConfirmRequestMsg{
		ReqType: ConfirmWithdraw.Code(), ChessHost: rule.HostBlack.Code(),
	})
	s.sync()
	conn.mu.Lock()
	after := len(conn.sent)
	conn.mu.Unlock()
	if after != before {
		t.Fatalf("dropped request still produced %d frames", after-before)
	}
}

func TestUserLeftFromReadyStaysReady(t *testing.T) {
	s, conn, _ := newTestSession(t)
	conn.push(t, "room.user_joined", playdto.RoomUserJoinedMsg{User: bob})
	conn.push(t, "room.user_left", playdto.RoomUserLeftMsg{UID: bob.ID})
	s.sync()

	if got := s.State.Value(); got != StateReady {
		t.Fatalf("state = %v, user_left must not pause a READY table", got)
	}
	if got := s.Waiting.Value(); got != WaitingJoin {
		t.Fatalf("waiting = %d, want WaitingJoin", got)
	}
}

func TestUserLeftMidRoundResetsAndPromotes(t *testing.T) {
	conn := newFakeConn()
	clock := clockwork.NewFakeClock()
	room := newTestRoom()
	room.Owner = bob // bob owns the table
	s := NewGameSession(SessionParams{
		Conn:   conn,
		Engine: rule.NewBoardTracker(),
		Room:   room,
		User:   alice,
		Clock:  clock,
	})
	t.Cleanup(s.Close)
	startRound(t, s, conn)

	conn.push(t, "room.user_left", playdto.RoomUserLeftMsg{UID: bob.ID})
	s.sync()

	if got := s.State.Value(); got != StateReady {
		t.Fatalf("state = %v, want READY for a new opponent", got)
	}
	if got := s.turn.Self.Game.State(); got != TimerPaused {
		t.Fatalf("self game timer = %v, want frozen", got)
	}
	if !s.RoomOwner.Value() {
		t.Fatal("surviving player should be promoted to owner")
	}
}

func TestClickSquareSelectionFlow(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	// Clicking an opposing piece selects nothing.
	if err := s.ClickSquare(rule.Pos{Row: 3, Col: 0}); err != nil {
		t.Fatalf("ClickSquare: %v", err)
	}
	if conn.lastSent("play.chess_pick") != nil {
		t.Fatal("no pick should be sent for an opposing piece")
	}

	// Select own pawn, then fire a move at an empty square.
	if err := s.ClickSquare(rule.Pos{Row: 6, Col: 0}); err != nil {
		t.Fatalf("ClickSquare pick: %v", err)
	}
	if conn.lastSent("play.chess_pick") == nil {
		t.Fatal("pick not sent")
	}
	if err := s.ClickSquare(rule.Pos{Row: 5, Col: 0}); err != nil {
		t.Fatalf("ClickSquare move: %v", err)
	}
	f := conn.lastSent("play.chess_move")
	if f == nil {
		t.Fatal("move not sent")
	}
	var req playdto.ChessMoveRequest
	if err := json.Unmarshal(f.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.MoveType != playdto.MoveTypePlain {
		t.Fatalf("moveType = %d, want plain", req.MoveType)
	}

	// The board itself only changes on the server echo.
	if s.engine.IsEmpty(rule.Pos{Row: 6, Col: 0}) {
		t.Fatal("board mutated before server echo")
	}
}

func TestClickSquareRejectedOffTurn(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)
	pushMove(t, s, conn, rule.HostRed, rule.Pos{Row: 6, Col: 0}, rule.Pos{Row: 5, Col: 0}, false)

	if err := s.ClickSquare(rule.Pos{Row: 6, Col: 2}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}
}

func TestGameStatesResyncReassertsTurn(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)
	conn.push(t, "user.offline", playdto.UserOfflineMsg{UID: bob.ID})
	s.sync()

	conn.push(t, "play.game_states", playdto.GameStatesMsg{
		ActiveChessHost: rule.HostBlack.Code(),
		Chesses: []playdto.ChessStateEntry{
			{Row: 0, Col: 4, ChessHost: rule.HostBlack.Code(), Type: "K"},
			{Row: 9, Col: 4, ChessHost: rule.HostRed.Code(), Type: "K"},
		},
		RedGameSeconds:   42,
		RedStepSeconds:   10,
		BlackGameSeconds: 55,
		BlackStepSeconds: 20,
	})
	s.sync()

	if got := s.State.Value(); got != StatePlaying {
		t.Fatalf("state = %v, want PLAYING after resync", got)
	}
	if got := s.ActiveHost.Value(); got != rule.HostBlack {
		t.Fatalf("active = %v, want BLACK", got)
	}
	// Self is red: 42s restored, paused until it is red's turn again.
	if got := s.turn.Self.Game.Remaining(); got != 42*time.Second {
		t.Fatalf("self game remaining = %v, want 42s", got)
	}
	if got := s.turn.Other.Game.State(); got != TimerRunning {
		t.Fatalf("other game timer = %v, want RUNNING", got)
	}
	if !s.engine.IsEmpty(rule.Pos{Row: 6, Col: 0}) {
		t.Fatal("snapshot should have replaced the opening layout")
	}
}

func TestGameStatesResyncRestoresStepBudget(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)
	conn.push(t, "user.offline", playdto.UserOfflineMsg{UID: bob.ID})
	s.sync()

	// Red's move was interrupted with 10s of its 20s step left.
	conn.push(t, "play.game_states", playdto.GameStatesMsg{
		ActiveChessHost: rule.HostRed.Code(),
		Chesses: []playdto.ChessStateEntry{
			{Row: 0, Col: 4, ChessHost: rule.HostBlack.Code(), Type: "K"},
			{Row: 9, Col: 4, ChessHost: rule.HostRed.Code(), Type: "K"},
			{Row: 6, Col: 0, ChessHost: rule.HostRed.Code(), Type: "P"},
		},
		RedGameSeconds:   42,
		RedStepSeconds:   10,
		BlackGameSeconds: 55,
		BlackStepSeconds: 20,
	})
	s.sync()

	if got := s.turn.Self.Step.Remaining(); got != 10*time.Second {
		t.Fatalf("in-flight step remaining = %v, want the snapshot's 10s", got)
	}
	if got := s.turn.Self.Step.TotalSeconds(); got != 20 {
		t.Fatalf("step budget = %d, want the room's 20s", got)
	}

	// Once the turn comes back around, the step clock refills in full.
	pushMove(t, s, conn, rule.HostRed, rule.Pos{Row: 6, Col: 0}, rule.Pos{Row: 5, Col: 0}, false)
	pushMove(t, s, conn, rule.HostBlack, rule.Pos{Row: 0, Col: 4}, rule.Pos{Row: 1, Col: 4}, false)
	if got := s.turn.Self.Step.Remaining(); got != 20*time.Second {
		t.Fatalf("step remaining after turn flip = %v, want full 20s", got)
	}
}

func TestGameContinueResumesWhenBothOnline(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	conn.setState(server.StateDisconnected)
	s.sync()
	if got := s.State.Value(); got != StatePause {
		t.Fatalf("state = %v, want PAUSE on transport loss", got)
	}

	conn.setState(server.StateConnected)
	conn.push(t, "play.game_continue", nil)
	s.sync()

	if conn.lastSent("play.game_continue") == nil {
		t.Fatal("continue reply not sent")
	}
	if got := s.State.Value(); got != StatePlaying {
		t.Fatalf("state = %v, want PLAYING with both sides online", got)
	}
	if got := s.turn.Self.Game.State(); got != TimerRunning {
		t.Fatalf("self game timer = %v, want RUNNING again", got)
	}
}

func TestOpponentJoinRaisesWaitingReady(t *testing.T) {
	s, conn, _ := newTestSession(t)
	conn.push(t, "room.user_joined", playdto.RoomUserJoinedMsg{User: bob})
	s.sync()

	// The flag raises as soon as an unready opponent sits down, readied
	// ourselves or not.
	if got := s.Waiting.Value(); got != WaitingReady {
		t.Fatalf("waiting = %d, want WaitingReady", got)
	}

	conn.push(t, "play.readied", playdto.GameReadyMsg{UID: bob.ID, Readied: true})
	s.sync()
	if got := s.Waiting.Value(); got != WaitingNone {
		t.Fatalf("waiting = %d, want WaitingNone once the opponent readies", got)
	}
}

func TestInboundDrawBeforeHostsAssigned(t *testing.T) {
	s, conn, _ := newTestSession(t)
	conn.push(t, "room.user_joined", playdto.RoomUserJoinedMsg{User: bob})
	conn.push(t, "play.game_over", playdto.GameOverMsg{WinUserID: 0})
	s.sync()

	res := s.Result.Value()
	if res == nil || res.WinHost != rule.HostNone {
		t.Fatalf("result = %+v, want draw", res)
	}
	if res.WinUserID != 0 {
		t.Fatalf("winUserID = %d, a draw credits nobody", res.WinUserID)
	}
}

func TestInboundGameOverIsIdempotent(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	conn.push(t, "play.game_over", playdto.GameOverMsg{WinUserID: alice.ID})
	conn.push(t, "play.game_over", playdto.GameOverMsg{WinUserID: bob.ID})
	s.sync()

	res := s.Result.Value()
	if res == nil || res.WinHost != rule.HostRed || res.WinUserID != alice.ID {
		t.Fatalf("result = %+v, first game_over must win", res)
	}
}

func TestDisconnectMidRoundPauses(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)

	conn.setState(server.StateDisconnected)
	s.sync()

	if got := s.State.Value(); got != StatePause {
		t.Fatalf("state = %v, want PAUSE on transport loss", got)
	}
	if s.Online.Value() {
		t.Fatal("online should be false")
	}
}

func TestReadyStartFlow(t *testing.T) {
	s, conn, _ := newTestSession(t)
	conn.push(t, "room.user_joined", playdto.RoomUserJoinedMsg{User: bob})
	s.sync()

	// Opponent not ready yet: owner toggles own readiness.
	if err := s.ReadyStart(); err != nil {
		t.Fatalf("ReadyStart: %v", err)
	}
	if conn.lastSent("play.ready") == nil {
		t.Fatal("play.ready not sent")
	}

	conn.push(t, "play.readied", playdto.GameReadyMsg{UID: bob.ID, Readied: true})
	s.sync()
	if err := s.ReadyStart(); err != nil {
		t.Fatalf("ReadyStart: %v", err)
	}
	if conn.lastSent("play.start_game") == nil {
		t.Fatal("owner with readied opponent should start the round")
	}
}

func TestPlayAgainReturnsToReady(t *testing.T) {
	s, conn, _ := newTestSession(t)
	startRound(t, s, conn)
	conn.push(t, "play.game_over", playdto.GameOverMsg{WinUserID: bob.ID})
	s.sync()

	if err := s.PlayAgain(); err != nil {
		t.Fatalf("PlayAgain: %v", err)
	}
	if got := s.State.Value(); got != StateReady {
		t.Fatalf("state = %v, want READY", got)
	}
	if s.Result.Value() != nil {
		t.Fatal("result should be cleared for the rematch")
	}
}
