package play

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/openxq/xiangqi-client/internal/msgcat"
	"github.com/openxq/xiangqi-client/internal/obslog"
	"github.com/openxq/xiangqi-client/internal/record"
	"github.com/openxq/xiangqi-client/internal/resume"
	"github.com/openxq/xiangqi-client/internal/rule"
	"github.com/openxq/xiangqi-client/internal/server"
	"github.com/openxq/xiangqi-client/pkg/playdto"
)

// Waiting codes exposed to the embedder, matching the server's convention.
const (
	WaitingNone  = 0
	WaitingReady = 1
	WaitingJoin  = 2
)

var (
	ErrNotPlaying     = errors.New("play: no round in progress")
	ErrNotYourTurn    = errors.New("play: not your turn")
	ErrCannotWithdraw = errors.New("play: nothing to withdraw")
)

const sendTimeout = 5 * time.Second

// RoomAPI is the slice of the HTTP API the session needs.
type RoomAPI interface {
	PartRoom(ctx context.Context, roomID int64) error
}

// SessionParams wires a GameSession. Conn, Engine, Room and User are
// required; everything else has a working default.
type SessionParams struct {
	Conn   server.Conn
	API    RoomAPI
	Engine rule.Engine
	Room   *playdto.Room
	User   playdto.User

	// InitialStates carries the authoritative snapshot when joining a room
	// with a round already in flight.
	InitialStates *playdto.GameStatesMsg

	Prompter Prompter
	Notifier Notifier
	Catalog  *msgcat.Catalog
	Recorder record.Repository
	Resume   *resume.Store
	Clock    clockwork.Clock
	Logger   *zap.Logger

	// OnExit runs once when the session leaves the room for good.
	OnExit func()
}

// GameSession is the locally authoritative state machine for one table.
//
// All state lives on a single event loop: transport callbacks, timer
// expiries and delayed callbacks post closures into the loop, and public
// intents run through it synchronously. Observables may be read from any
// goroutine; their subscribers fire on the loop.
type GameSession struct {
	conn     server.Conn
	api      RoomAPI
	engine   rule.Engine
	room     *playdto.Room
	user     playdto.User
	prompter Prompter
	notifier Notifier
	catalog  *msgcat.Catalog
	recorder record.Repository
	resume   *resume.Store
	clock    clockwork.Clock
	log      *zap.Logger

	State          *Observable[GameState]
	ActiveHost     *Observable[rule.ChessHost]
	Host           *Observable[rule.ChessHost]
	OtherHost      *Observable[rule.ChessHost]
	RoomOwner      *Observable[bool]
	Readied        *Observable[bool]
	Online         *Observable[bool]
	OtherUser      *Observable[playdto.User]
	OtherReadied   *Observable[bool]
	OtherOnline    *Observable[bool]
	Waiting        *Observable[int]
	SpectatorCount *Observable[int]
	CanWithdraw    *Observable[bool]
	Result         *Observable[*GameResult]

	turn        *TurnController
	negotiation ConfirmNegotiation
	selected    *rule.Pos

	gameID    string
	startedAt time.Time
	moves     []playdto.ChessMoveMsg

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	waitTimer clockwork.Timer

	msgCbID   int
	stateCbID int
	onExit    func()
}

func NewGameSession(p SessionParams) *GameSession {
	if p.Prompter == nil {
		p.Prompter = DeclinePrompter{}
	}
	if p.Notifier == nil {
		p.Notifier = LogNotifier{}
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	if p.Logger == nil {
		p.Logger = obslog.L()
	}
	if p.Recorder == nil {
		p.Recorder = record.NewMemoryRepository()
	}

	s := &GameSession{
		conn:     p.Conn,
		api:      p.API,
		engine:   p.Engine,
		room:     p.Room,
		user:     p.User,
		prompter: p.Prompter,
		notifier: p.Notifier,
		catalog:  p.Catalog,
		recorder: p.Recorder,
		resume:   p.Resume,
		clock:    p.Clock,
		log:      p.Logger.With(zap.Int64("room_id", p.Room.ID)),

		State:          NewObservable(StateReady),
		ActiveHost:     NewObservable(rule.HostNone),
		Host:           NewObservable(rule.HostNone),
		OtherHost:      NewObservable(rule.HostNone),
		RoomOwner:      NewObservable(p.Room.Owner.ID == p.User.ID),
		Readied:        NewObservable(false),
		Online:         NewObservable(true),
		OtherUser:      NewObservable(playdto.User{}),
		OtherReadied:   NewObservable(false),
		OtherOnline:    NewObservable(false),
		Waiting:        NewObservable(WaitingNone),
		SpectatorCount: NewObservable(p.Room.SpectatorCount),
		CanWithdraw:    NewObservable(false),
		Result:         NewObservable[*GameResult](nil),

		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
		onExit: p.OnExit,
	}

	dispatch := s.post
	s.turn = &TurnController{
		Active:   s.ActiveHost,
		SelfHost: s.Host.Value,
		Self: TimerPair{
			Game: NewCountdownTimer(p.Clock, dispatch),
			Step: NewCountdownTimer(p.Clock, dispatch),
		},
		Other: TimerPair{
			Game: NewCountdownTimer(p.Clock, dispatch),
			Step: NewCountdownTimer(p.Clock, dispatch),
		},
		OnTurn: func(bool) { s.selected = nil },
	}
	s.turn.Self.Game.SetOnEnd(func() { s.onTimerEnd(true, true) })
	s.turn.Self.Step.SetOnEnd(func() { s.onTimerEnd(false, true) })
	s.turn.Other.Game.SetOnEnd(func() { s.onTimerEnd(true, false) })
	s.turn.Other.Step.SetOnEnd(func() { s.onTimerEnd(false, false) })

	s.applyRoom(p.Room)

	// Leaving PLAYING always freezes the clocks, whatever the cause.
	s.State.Subscribe(func(st GameState) {
		if st != StatePlaying {
			s.turn.PauseAll()
			s.selected = nil
		}
		if st != StateReady {
			s.Waiting.Set(WaitingNone)
		}
	})

	s.msgCbID = s.conn.OnMessage(func(frame *server.Frame) {
		s.post(func() { s.handleFrame(frame) })
	})
	s.stateCbID = s.conn.OnStateChange(func(st server.ConnState) {
		s.post(func() { s.onConnState(st) })
	})

	go s.run()

	if p.InitialStates != nil {
		states := *p.InitialStates
		s.post(func() { s.applyGameStates(&states) })
	}
	s.post(s.recomputeWaiting)
	return s
}

// applyRoom seeds session state from the lobby's room view.
func (s *GameSession) applyRoom(room *playdto.Room) {
	if u := room.RedChessUser; u != nil {
		if u.ID == s.user.ID {
			s.Host.Set(rule.HostRed)
			s.OtherHost.Set(rule.HostBlack)
			s.Readied.Set(room.RedReadied)
		} else {
			s.OtherUser.Set(*u)
			s.OtherReadied.Set(room.RedReadied)
			s.OtherOnline.Set(room.RedOnline)
		}
	}
	if u := room.BlackChessUser; u != nil {
		if u.ID == s.user.ID {
			s.Host.Set(rule.HostBlack)
			s.OtherHost.Set(rule.HostRed)
			s.Readied.Set(room.BlackReadied)
		} else {
			s.OtherUser.Set(*u)
			s.OtherReadied.Set(room.BlackReadied)
			s.OtherOnline.Set(room.BlackOnline)
		}
	}
	switch room.Status {
	case playdto.RoomStatusPlaying:
		s.State.Set(StatePlaying)
	case playdto.RoomStatusPause:
		s.State.Set(StatePause)
	case playdto.RoomStatusEnd:
		s.State.Set(StateEnd)
	}
}

// Close tears the session down: pending delayed callbacks are cancelled and
// transport callbacks are unsubscribed. Safe to call more than once.
func (s *GameSession) Close() {
	s.closeOnce.Do(func() {
		if s.waitTimer != nil {
			s.waitTimer.Stop()
		}
		s.conn.RemoveMessageCallback(s.msgCbID)
		s.conn.RemoveStateCallback(s.stateCbID)
		s.turn.StopAll()
		close(s.done)
	})
}

func (s *GameSession) run() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.tasks:
			fn()
		}
	}
}

func (s *GameSession) post(fn func()) {
	select {
	case <-s.done:
	case s.tasks <- fn:
	}
}

// do runs fn on the event loop and waits for it.
func (s *GameSession) do(fn func()) {
	ran := make(chan struct{})
	s.post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-s.done:
	}
}

func (s *GameSession) send(cmd string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.conn.Send(ctx, cmd, payload); err != nil {
		s.log.Error("send failed", zap.String("cmd", cmd), zap.Error(err))
		return err
	}
	return nil
}

func (s *GameSession) text(key string, data any) string {
	if s.catalog == nil {
		return key
	}
	return s.catalog.MustRender(key, data)
}

func (s *GameSession) notify(key string, data any) {
	s.notifier.ShowText(s.text(key, data), 3*time.Second)
}

// ---- transport events ----

func (s *GameSession) handleFrame(frame *server.Frame) {
	switch frame.Cmd {
	case "room.user_joined":
		decodeInto(s, frame, s.onRoomUserJoined)
	case "room.user_left":
		decodeInto(s, frame, s.onRoomUserLeft)
	case "play.readied":
		decodeInto(s, frame, s.onReadied)
	case "play.game_started":
		decodeInto(s, frame, s.onGameStarted)
	case "play.chess_pick":
		decodeInto(s, frame, s.onChessPick)
	case "play.chess_move":
		decodeInto(s, frame, s.onChessMove)
	case "play.confirm_request":
		decodeInto(s, frame, s.onConfirmRequest)
	case "play.confirm_response":
		decodeInto(s, frame, s.onConfirmResponse)
	case "play.game_over":
		decodeInto(s, frame, s.onGameOverMsg)
	case "spectator.joined":
		decodeInto(s, frame, s.onSpectatorJoined)
	case "spectator.left":
		decodeInto(s, frame, s.onSpectatorLeft)
	case "user.online":
		decodeInto(s, frame, s.onUserOnline)
	case "user.offline":
		decodeInto(s, frame, s.onUserOffline)
	case "play.game_continue":
		s.onGameContinue()
	case "play.game_continue_response":
		decodeInto(s, frame, s.onGameContinueResponse)
	case "play.game_states":
		decodeInto(s, frame, s.applyGameStates)
	}
}

func decodeInto[T any](s *GameSession, frame *server.Frame, handler func(*T)) {
	var msg T
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			s.log.Warn("bad frame payload", zap.String("cmd", frame.Cmd), zap.Error(err))
			return
		}
	}
	handler(&msg)
}

func (s *GameSession) onConnState(st server.ConnState) {
	switch st {
	case server.StateConnected:
		s.Online.Set(true)
	case server.StateDisconnected, server.StateFailed:
		if st := s.State.Value(); st == StateReady || st == StateEnd {
			// Nothing worth resuming; leave the table.
			s.exit()
			return
		}
		s.Online.Set(false)
		s.State.Set(StatePause)
	}
}

func (s *GameSession) exit() {
	s.Close()
	if s.onExit != nil {
		go s.onExit()
	}
}

// ---- room membership ----

func (s *GameSession) onRoomUserJoined(m *playdto.RoomUserJoinedMsg) {
	if m.User.ID == s.user.ID {
		return
	}
	s.OtherUser.Set(m.User)
	s.OtherOnline.Set(true)
	s.OtherReadied.Set(false)
	if host := s.Host.Value(); host != rule.HostNone {
		s.OtherHost.Set(host.Reverse())
	}
	s.notify("play.player_joined", map[string]any{"Nickname": m.User.Nickname})
	s.recomputeWaiting()
}

func (s *GameSession) onRoomUserLeft(m *playdto.RoomUserLeftMsg) {
	if m.UID == s.user.ID {
		return
	}
	if other := s.OtherUser.Value(); other.ID != 0 && other.ID != m.UID {
		return
	}
	s.OtherUser.Set(playdto.User{})
	s.OtherReadied.Set(false)
	s.OtherOnline.Set(false)
	s.notify("play.opponent_left", nil)

	if !s.RoomOwner.Value() {
		s.RoomOwner.Set(true)
		s.notify("play.promoted_owner", nil)
	}
	// The table resets for a new opponent; a finished round keeps its result.
	if s.State.Value() != StateEnd {
		s.State.Set(StateReady)
	}
	s.recomputeWaiting()
}

func (s *GameSession) recomputeWaiting() {
	if s.State.Value() != StateReady {
		s.Waiting.Set(WaitingNone)
		return
	}
	switch {
	case s.OtherUser.Value().ID == 0:
		s.Waiting.Set(WaitingJoin)
		s.notify("play.waiting_join", nil)
	case !s.OtherReadied.Value():
		s.Waiting.Set(WaitingReady)
		s.notify("play.waiting_ready", nil)
	default:
		s.Waiting.Set(WaitingNone)
	}
}

// ---- ready / start ----

func (s *GameSession) onReadied(m *playdto.GameReadyMsg) {
	if m.UID == s.user.ID {
		s.Readied.Set(m.Readied)
	} else {
		s.OtherReadied.Set(m.Readied)
	}
	s.recomputeWaiting()
}

func (s *GameSession) onGameStarted(m *playdto.GameStartedMsg) {
	host := rule.HostBlack
	if m.RedChessUID == s.user.ID {
		host = rule.HostRed
	}
	s.Host.Set(host)
	s.OtherHost.Set(host.Reverse())

	s.gameID = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.moves = s.moves[:0]
	s.negotiation = ConfirmNegotiation{}
	s.selected = nil
	s.Result.Set(nil)
	s.Readied.Set(false)
	s.OtherReadied.Set(false)

	set := s.room.Settings
	s.turn.Self.Ready(set.GameDuration, set.StepDuration)
	s.turn.Other.Ready(set.GameDuration, set.StepDuration)

	s.engine.StartRound()
	s.CanWithdraw.Set(false)

	s.State.Set(StatePlaying)
	s.Waiting.Set(WaitingNone)
	s.turn.SetActive(rule.HostRed)
	s.notify("play.started", nil)
}

// ---- moves ----

func (s *GameSession) onChessPick(m *playdto.ChessPickMsg) {
	host := rule.HostFromCode(m.ChessHost)
	if host == s.Host.Value() {
		return // own echo; selection already tracked locally
	}
	s.engine.PickChess(m.Pickup, rule.Pos{Row: m.Pos.Row, Col: m.Pos.Col}, host)
}

func (s *GameSession) onChessMove(m *playdto.ChessMoveMsg) {
	host := rule.HostFromCode(m.ChessHost)
	from := rule.Pos{Row: m.FromPos.Row, Col: m.FromPos.Col}
	to := rule.Pos{Row: m.ToPos.Row, Col: m.ToPos.Col}
	s.engine.MoveChess(from, to, host, m.MoveType == playdto.MoveTypeEat)

	s.moves = append(s.moves, *m)
	s.CanWithdraw.Set(s.engine.CanWithdraw())
	s.turn.SetActive(host.Reverse())
	s.saveResume()
}

// ---- confirm negotiation ----

func (s *GameSession) onConfirmRequest(m *playdto.ConfirmRequestMsg) {
	host := rule.HostFromCode(m.ChessHost)
	if host == s.Host.Value() {
		return // own request echoed back
	}
	typ, ok := ConfirmTypeFromCode(m.ReqType)
	if !ok {
		return
	}
	if _, err := s.negotiation.Begin(typ, host); err != nil {
		s.log.Info("confirm request dropped", zap.Int("req_type", m.ReqType))
		return
	}

	action := s.text(typ.CatalogKey(), nil)
	question := s.text("play.confirm_ask", map[string]any{"Action": action})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		agreed := s.prompter.Confirm(ctx, question)
		s.post(func() {
			_ = s.send("play.confirm_response", playdto.ConfirmResponseRequest{
				ReqType: typ.Code(),
				OK:      agreed,
			})
		})
	}()
}

func (s *GameSession) onConfirmResponse(m *playdto.ConfirmResponseMsg) {
	typ, ok := ConfirmTypeFromCode(m.ReqType)
	if !ok {
		return
	}
	pending := s.negotiation.Resolve()
	responder := rule.HostFromCode(m.ChessHost)
	action := s.text(typ.CatalogKey(), nil)

	if !m.OK {
		if pending != nil && pending.Requester == s.Host.Value() {
			s.notify("play.confirm_declined", map[string]any{"Action": action})
		}
		return
	}
	if pending != nil && pending.Requester == s.Host.Value() {
		s.notify("play.confirm_agreed", map[string]any{"Action": action})
	}

	switch typ {
	case ConfirmWhiteFlag:
		// Accepting a resignation makes the responder the winner.
		s.gameOver(responder, false, true)
	case ConfirmDraw:
		s.gameOver(rule.HostNone, false, true)
	case ConfirmWithdraw:
		if !s.engine.CanWithdraw() {
			return // nothing to undo, silently ignored
		}
		s.engine.Withdraw()
		if n := len(s.moves); n > 0 {
			s.moves = s.moves[:n-1]
		}
		s.CanWithdraw.Set(s.engine.CanWithdraw())
		s.turn.SetActive(s.ActiveHost.Value().Reverse())
		s.saveResume()
	}
}

// ---- spectators / presence ----

func (s *GameSession) onSpectatorJoined(m *playdto.SpectatorJoinedMsg) {
	s.SpectatorCount.Set(m.SpectatorCount)
	s.notify("spectator.joined", map[string]any{"Nickname": m.User.Nickname})
}

func (s *GameSession) onSpectatorLeft(m *playdto.SpectatorLeftMsg) {
	s.SpectatorCount.Set(m.SpectatorCount)
}

func (s *GameSession) onUserOnline(m *playdto.UserOnlineMsg) {
	if s.State.Value() == StateReady {
		return
	}
	if other := s.OtherUser.Value(); other.ID == 0 || other.ID != m.UID {
		return
	}
	s.OtherOnline.Set(true)
	s.notify("play.opponent_online", nil)
}

func (s *GameSession) onUserOffline(m *playdto.UserOfflineMsg) {
	if s.State.Value() == StateReady {
		return
	}
	if other := s.OtherUser.Value(); other.ID == 0 || other.ID != m.UID {
		return
	}
	s.OtherOnline.Set(false)
	if s.State.Value() == StatePlaying {
		s.State.Set(StatePause)
	}
	s.notify("play.opponent_offline", nil)
}

// ---- pause / continue ----

// onGameContinue is the server asking whether this client wants the paused
// round resumed. Headless clients always do.
func (s *GameSession) onGameContinue() {
	s.Online.Set(true)
	_ = s.send("play.game_continue", playdto.GameContinueRequest{OK: true})
	if s.State.Value() == StatePause && s.OtherOnline.Value() {
		s.State.Set(StatePlaying)
		// Forced re-assert so both peers converge on the same running clock.
		s.turn.SetActive(s.ActiveHost.Value())
	}
}

func (s *GameSession) onGameContinueResponse(m *playdto.GameContinueResponseMsg) {
	if m.OK {
		s.OtherOnline.Set(true)
		if s.State.Value() == StatePause {
			s.State.Set(StatePlaying)
		}
		// Forced re-assert so both peers converge on the same running clock.
		s.turn.SetActive(s.ActiveHost.Value())
		s.notify("play.opponent_returned", nil)
		return
	}

	s.notify("play.opponent_declined_continue", nil)
	s.OtherUser.Set(playdto.User{})
	s.OtherReadied.Set(false)
	s.OtherOnline.Set(false)
	s.State.Set(StateEnd)
	if s.waitTimer != nil {
		s.waitTimer.Stop()
	}
	s.waitTimer = s.clock.AfterFunc(2*time.Second, func() {
		s.post(func() {
			if s.State.Value() == StateEnd {
				s.Waiting.Set(WaitingJoin)
				s.notify("play.waiting_join", nil)
			}
		})
	})
}

// applyGameStates replaces local state with the authoritative snapshot sent
// after a reconnect or a mid-round join.
func (s *GameSession) applyGameStates(m *playdto.GameStatesMsg) {
	states := make([]rule.ChessState, len(m.Chesses))
	for i, c := range m.Chesses {
		states[i] = rule.ChessState{Row: c.Row, Col: c.Col, ChessHost: c.ChessHost, Type: c.Type}
	}
	s.engine.LoadSnapshot(states)
	s.CanWithdraw.Set(s.engine.CanWithdraw())
	s.selected = nil

	// Budgets come from the room settings; the snapshot only carries what is
	// left of them. A side whose main budget already ran out is in per-move
	// countdown, so its step budget shrinks to the countdown value.
	set := s.room.Settings
	redPair, blackPair := s.turn.Self, s.turn.Other
	if s.Host.Value() != rule.HostRed {
		redPair, blackPair = blackPair, redPair
	}
	redPair.Ready(set.GameDuration, stepBudget(set, m.RedGameSeconds))
	redPair.Game.SetRemaining(time.Duration(m.RedGameSeconds) * time.Second)
	blackPair.Ready(set.GameDuration, stepBudget(set, m.BlackGameSeconds))
	blackPair.Game.SetRemaining(time.Duration(m.BlackGameSeconds) * time.Second)

	if s.gameID == "" {
		s.gameID = uuid.NewString()
		s.startedAt = s.clock.Now()
	}

	s.State.Set(StatePlaying)
	active := rule.HostFromCode(m.ActiveChessHost)
	s.turn.SetActive(active)

	// The interrupted move resumes with only its leftover step time; every
	// later move restarts from the full step budget again.
	inflight, pair := m.RedStepSeconds, redPair
	if active == rule.HostBlack {
		inflight, pair = m.BlackStepSeconds, blackPair
	}
	pair.Step.SetRemaining(time.Duration(inflight) * time.Second)
}

func stepBudget(set playdto.RoomSettings, gameSecondsLeft int) int {
	if gameSecondsLeft <= 0 {
		return set.SecondsCountdown
	}
	return set.StepDuration
}

// ---- game end ----

func (s *GameSession) onGameOverMsg(m *playdto.GameOverMsg) {
	var win rule.ChessHost
	switch m.WinUserID {
	case 0:
		win = rule.HostNone
	case s.user.ID:
		win = s.Host.Value()
	default:
		win = s.OtherHost.Value()
	}
	s.gameOver(win, false, false)
}

func (s *GameSession) onTimerEnd(isGameTimer, isSelf bool) {
	if s.State.Value() != StatePlaying {
		return
	}
	pair := s.turn.Other
	if isSelf {
		pair = s.turn.Self
	}
	if isGameTimer {
		// Main budget spent: the step clock becomes a fixed per-move countdown.
		pair.Step.SetTotalSeconds(s.room.Settings.SecondsCountdown)
		return
	}
	win := s.Host.Value()
	if isSelf {
		win = s.OtherHost.Value()
	}
	s.gameOver(win, true, true)
}

func (s *GameSession) gameOver(win rule.ChessHost, timeout, announce bool) {
	if s.State.Value() == StateEnd {
		return
	}
	s.State.Set(StateEnd)
	s.turn.StopAll()
	s.negotiation = ConfirmNegotiation{}
	s.selected = nil
	s.CanWithdraw.Set(false)

	var winUserID int64
	if win != rule.HostNone {
		switch win {
		case s.Host.Value():
			winUserID = s.user.ID
		case s.OtherHost.Value():
			winUserID = s.OtherUser.Value().ID
		}
	}
	s.Result.Set(&GameResult{WinHost: win, IsTimeout: timeout, WinUserID: winUserID})

	switch {
	case timeout:
		s.notify("play.result_timeout", nil)
	case win == rule.HostNone:
		s.notify("play.result_draw", nil)
	case win == s.Host.Value():
		s.notify("play.result_win", nil)
	default:
		s.notify("play.result_lose", nil)
	}

	if announce && s.RoomOwner.Value() {
		req := playdto.GameOverRequest{}
		if win != rule.HostNone {
			id := winUserID
			req.WinUserID = &id
		}
		_ = s.send("play.game_over", req)
	}

	s.persistResult(win, timeout, winUserID)
	s.clearResume()
}

func (s *GameSession) persistResult(win rule.ChessHost, timeout bool, winUserID int64) {
	if s.recorder == nil || s.gameID == "" {
		return
	}
	red, black := s.user, s.OtherUser.Value()
	if s.Host.Value() == rule.HostBlack {
		red, black = black, red
	}
	movesRaw, _ := json.Marshal(s.moves)
	endedAt := s.clock.Now()
	rec := &record.GameRecord{
		GameID:        s.gameID,
		RoomID:        s.room.ID,
		RedUserID:     red.ID,
		RedNickname:   red.Nickname,
		BlackUserID:   black.ID,
		BlackNickname: black.Nickname,
		WinnerUserID:  winUserID,
		IsTimeout:     timeout,
		EndReason:     endReason(win, timeout),
		MovesJSON:     string(movesRaw),
		StartedAt:     s.startedAt,
		EndedAt:       endedAt,
		DurationMS:    endedAt.Sub(s.startedAt).Milliseconds(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.SaveResult(ctx, rec); err != nil {
			s.log.Error("result persist failed", zap.String("game_id", rec.GameID), zap.Error(err))
		}
	}()
}

func endReason(win rule.ChessHost, timeout bool) string {
	switch {
	case timeout:
		return "timeout"
	case win == rule.HostNone:
		return "draw"
	default:
		return "win"
	}
}

// ---- resume snapshots ----

func (s *GameSession) saveResume() {
	if s.resume == nil {
		return
	}
	snap := &resume.Snapshot{
		GameID:     s.gameID,
		RoomID:     s.room.ID,
		SelfHost:   s.Host.Value().Code(),
		ActiveHost: s.ActiveHost.Value().Code(),
		Chesses:    s.engine.Snapshot(),
		SavedAt:    s.clock.Now(),
	}
	self, other := s.turn.Self, s.turn.Other
	selfGame := int(self.Game.Remaining() / time.Second)
	selfStep := int(self.Step.Remaining() / time.Second)
	otherGame := int(other.Game.Remaining() / time.Second)
	otherStep := int(other.Step.Remaining() / time.Second)
	if s.Host.Value() == rule.HostRed {
		snap.RedGameSeconds, snap.RedStepSeconds = selfGame, selfStep
		snap.BlackGameSecond, snap.BlackStepSecond = otherGame, otherStep
	} else {
		snap.RedGameSeconds, snap.RedStepSeconds = otherGame, otherStep
		snap.BlackGameSecond, snap.BlackStepSecond = selfGame, selfStep
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.resume.Save(ctx, snap); err != nil {
			s.log.Warn("resume save failed", zap.Error(err))
		}
	}()
}

func (s *GameSession) clearResume() {
	if s.resume == nil {
		return
	}
	roomID := s.room.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.resume.Clear(ctx, roomID); err != nil {
			s.log.Warn("resume clear failed", zap.Error(err))
		}
	}()
}

// ---- local intents ----

// ReadyStart toggles readiness, or starts the round when this client owns
// the table and both sides are ready.
func (s *GameSession) ReadyStart() error {
	var err error
	s.do(func() {
		if s.State.Value() != StateReady {
			err = ErrNotPlaying
			return
		}
		if s.RoomOwner.Value() && s.OtherReadied.Value() && s.OtherUser.Value().ID != 0 {
			err = s.send("play.start_game", nil)
			return
		}
		next := !s.Readied.Value()
		err = s.send("play.ready", playdto.ReadyRequest{Readied: &next})
	})
	return err
}

// ClickSquare runs the selection flow for one tapped board square: select an
// own piece, switch selection, deselect, or fire a move at the target.
func (s *GameSession) ClickSquare(pos rule.Pos) error {
	var err error
	s.do(func() { err = s.clickSquare(pos) })
	return err
}

func (s *GameSession) clickSquare(pos rule.Pos) error {
	if s.State.Value() != StatePlaying {
		return ErrNotPlaying
	}
	host := s.Host.Value()
	if host == rule.HostNone || s.ActiveHost.Value() != host {
		return ErrNotYourTurn
	}

	if s.selected == nil {
		if s.engine.HostAt(pos) != host {
			return nil
		}
		p := pos
		s.selected = &p
		s.engine.PickChess(true, pos, host)
		return s.send("play.chess_pick", playdto.ChessPickRequest{
			Pos:    playdto.Pos{Row: pos.Row, Col: pos.Col},
			Pickup: true,
		})
	}

	if s.selected.Equals(pos) {
		s.selected = nil
		s.engine.PickChess(false, pos, host)
		return s.send("play.chess_pick", playdto.ChessPickRequest{
			Pos:    playdto.Pos{Row: pos.Row, Col: pos.Col},
			Pickup: false,
		})
	}

	if s.engine.HostAt(pos) == host {
		p := pos
		s.selected = &p
		s.engine.PickChess(true, pos, host)
		return s.send("play.chess_pick", playdto.ChessPickRequest{
			Pos:    playdto.Pos{Row: pos.Row, Col: pos.Col},
			Pickup: true,
		})
	}

	return s.sendMove(*s.selected, pos)
}

// DragMove fires a move intent without the click selection dance.
func (s *GameSession) DragMove(from, to rule.Pos) error {
	var err error
	s.do(func() {
		if s.State.Value() != StatePlaying {
			err = ErrNotPlaying
			return
		}
		host := s.Host.Value()
		if host == rule.HostNone || s.ActiveHost.Value() != host {
			err = ErrNotYourTurn
			return
		}
		if s.engine.HostAt(from) != host {
			return
		}
		err = s.sendMove(from, to)
	})
	return err
}

// sendMove transmits the intent; the board mutates only when the server
// echoes play.chess_move back.
func (s *GameSession) sendMove(from, to rule.Pos) error {
	if !s.engine.CanMoveTo(from, to) {
		return nil
	}
	moveType := playdto.MoveTypePlain
	if !s.engine.IsEmpty(to) {
		moveType = playdto.MoveTypeEat
	}
	return s.send("play.chess_move", playdto.ChessMoveRequest{
		MoveType: moveType,
		FromPos:  playdto.Pos{Row: from.Row, Col: from.Col},
		ToPos:    playdto.Pos{Row: to.Row, Col: to.Col},
	})
}

// RequestWhiteFlag asks the opponent to accept a resignation.
func (s *GameSession) RequestWhiteFlag() error { return s.requestConfirm(ConfirmWhiteFlag) }

// RequestDraw proposes a draw.
func (s *GameSession) RequestDraw() error { return s.requestConfirm(ConfirmDraw) }

// RequestWithdraw asks to take back the last move.
func (s *GameSession) RequestWithdraw() error { return s.requestConfirm(ConfirmWithdraw) }

func (s *GameSession) requestConfirm(typ ConfirmRequestType) error {
	var err error
	s.do(func() {
		if s.State.Value() != StatePlaying {
			err = ErrNotPlaying
			return
		}
		if typ == ConfirmWithdraw && !s.CanWithdraw.Value() {
			err = ErrCannotWithdraw
			return
		}
		if _, berr := s.negotiation.Begin(typ, s.Host.Value()); berr != nil {
			err = berr
			return
		}
		if err = s.send("play.confirm_request", playdto.ConfirmRequestRequest{ReqType: typ.Code()}); err != nil {
			s.negotiation.Resolve()
			return
		}
		s.notify("play.request_sent", nil)
	})
	return err
}

// PlayAgain returns an ended table to READY and signals readiness for a
// rematch.
func (s *GameSession) PlayAgain() error {
	var err error
	s.do(func() {
		if s.State.Value() != StateEnd {
			err = ErrNotPlaying
			return
		}
		s.State.Set(StateReady)
		s.Result.Set(nil)
		ready := true
		err = s.send("play.ready", playdto.ReadyRequest{Readied: &ready})
		s.recomputeWaiting()
	})
	return err
}

// Quit leaves the table. A round in progress asks for confirmation first;
// declining keeps the session alive.
func (s *GameSession) Quit(ctx context.Context) error {
	var midGame bool
	s.do(func() {
		st := s.State.Value()
		midGame = st == StatePlaying || st == StatePause
	})
	if midGame && !s.prompter.Confirm(ctx, s.text("play.quit_confirm", nil)) {
		return nil
	}
	var err error
	if s.api != nil {
		err = s.api.PartRoom(ctx, s.room.ID)
	}
	s.exit()
	return err
}
