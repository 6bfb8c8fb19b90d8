package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/openxq/xiangqi-client/internal/server"
)

// Connectivity probe: checks the HTTP API and the WebSocket handshake for
// the configured game server.
func main() {
	baseURL := os.Getenv("SERVER_BASE_URL")
	wsURL := os.Getenv("SERVER_WS_URL")
	nickname := os.Getenv("USER_NICKNAME")

	if baseURL == "" {
		log.Fatal("SERVER_BASE_URL is required")
	}
	if nickname == "" {
		nickname = "servercheck"
	}

	client := server.NewAPIClient(baseURL, server.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	login, err := client.Login(ctx, nickname)
	cancel()
	if err != nil {
		log.Printf("login error: %v", err)
	} else {
		log.Printf("login ok: user_id=%d nickname=%s", login.User.ID, login.User.Nickname)

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		rooms, err := client.Rooms(ctx)
		cancel()
		if err != nil {
			log.Printf("rooms error: %v", err)
		} else {
			log.Printf("rooms ok: %d open tables", len(rooms))
		}
	}

	if wsURL == "" {
		log.Println("SERVER_WS_URL not set; skipping WS check")
		return
	}

	ws := server.NewWebSocket(wsURL, 1, time.Second)
	if login != nil && login.Token != "" {
		token := login.Token
		ws.SetHeaderProvider(func() map[string]string {
			return map[string]string{"Authorization": "Bearer " + token}
		})
	}
	ws.OnStateChange(func(state server.ConnState) {
		log.Printf("ws state: %s", state)
	})

	ctx, cancel = context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		log.Fatalf("ws connect error: %v", err)
	}
	log.Println("ws handshake ok")
	_ = ws.Close(context.Background())
}
