package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/openxq/xiangqi-client/internal/config"
	"github.com/openxq/xiangqi-client/internal/msgcat"
	"github.com/openxq/xiangqi-client/internal/obslog"
	"github.com/openxq/xiangqi-client/internal/play"
	"github.com/openxq/xiangqi-client/internal/record"
	"github.com/openxq/xiangqi-client/internal/resume"
	"github.com/openxq/xiangqi-client/internal/rule"
	"github.com/openxq/xiangqi-client/internal/server"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	catalog, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	api := server.NewAPIClient(cfg.ServerBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	login, err := api.Login(ctx, cfg.Nickname)
	cancel()
	if err != nil {
		log.Fatalf("login error: %v", err)
	}
	obslog.L().Info("logged in",
		zap.Int64("user_id", login.User.ID),
		zap.String("nickname", login.User.Nickname))

	headers := func() map[string]string {
		m := map[string]string{}
		if login.Token != "" {
			m["Authorization"] = "Bearer " + login.Token
		}
		return m
	}

	ws := server.NewWebSocket(cfg.ServerWSURL, cfg.WSMaxReconnect, cfg.WSReconnectDelay)
	ws.SetHeaderProvider(headers)

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		ccancel()
		log.Fatalf("ws connect error: %v", err)
	}
	ccancel()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	roomID := cfg.RoomID
	if roomID == 0 {
		// No room configured, take the first open table.
		rooms, err := api.Rooms(ctx)
		if err != nil || len(rooms) == 0 {
			cancel()
			log.Fatalf("no room available: %v", err)
		}
		roomID = rooms[0].ID
	}
	room, err := api.JoinRoom(ctx, roomID)
	cancel()
	if err != nil {
		log.Fatalf("join room error: %v", err)
	}
	obslog.L().Info("joined room", zap.Int64("room_id", room.ID), zap.String("name", room.Name))

	var recorder record.Repository = record.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		pg, err := record.NewPostgresRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("record repo init error: %v", err)
		}
		recorder = pg
	}

	var resumeStore *resume.Store
	if cfg.RedisURL != "" {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		resumeStore, err = resume.NewStoreFromURL(rctx, cfg.RedisURL)
		rcancel()
		if err != nil {
			log.Fatalf("resume store init error: %v", err)
		}
	}

	exited := make(chan struct{})
	session := play.NewGameSession(play.SessionParams{
		Conn:     ws,
		API:      api,
		Engine:   rule.NewBoardTracker(),
		Room:     room,
		User:     login.User,
		Catalog:  catalog,
		Recorder: recorder,
		Resume:   resumeStore,
		OnExit:   func() { close(exited) },
	})

	if err := session.ReadyStart(); err != nil {
		obslog.L().Warn("ready failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := session.Quit(qctx); err != nil {
			obslog.L().Warn("quit failed", zap.Error(err))
		}
		qcancel()
	case <-exited:
	}

	session.Close()
	_ = ws.Close(context.Background())
	_ = recorder.Close()
	if resumeStore != nil {
		_ = resumeStore.Close()
	}
}
