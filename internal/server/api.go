package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/openxq/xiangqi-client/pkg/playdto"
)

// APIClient talks to the server's HTTP API: login, room listing, join/part.
// The realtime game traffic goes over the WebSocket channel instead.
type APIClient struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type APIOption func(*APIClient)

func WithTimeout(d time.Duration) APIOption {
	return func(c *APIClient) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) APIOption {
	return func(c *APIClient) { c.http.MaxConnsPerHost = n }
}

func WithAPIHeaderProvider(h HeaderProvider) APIOption {
	return func(c *APIClient) { c.headers = h }
}

func WithRetry(max int) APIOption {
	return func(c *APIClient) { c.retryMax = max }
}

func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type LoginRequest struct {
	Nickname string `json:"nickname"`
}

type LoginResponse struct {
	User  playdto.User `json:"user"`
	Token string       `json:"token"`
}

func (c *APIClient) Login(ctx context.Context, nickname string) (*LoginResponse, error) {
	req := LoginRequest{Nickname: strings.TrimSpace(nickname)}
	var resp LoginResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/login", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Rooms(ctx context.Context) ([]playdto.Room, error) {
	var rooms []playdto.Room
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/rooms", nil, &rooms, true); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *APIClient) JoinRoom(ctx context.Context, roomID int64) (*playdto.Room, error) {
	var room playdto.Room
	path := fmt.Sprintf("/api/rooms/%d/join", roomID)
	if err := c.doJSON(ctx, fasthttp.MethodPost, path, nil, &room, false); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *APIClient) PartRoom(ctx context.Context, roomID int64) error {
	path := fmt.Sprintf("/api/rooms/%d/part", roomID)
	return c.doJSON(ctx, fasthttp.MethodPost, path, nil, nil, false)
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	timeout := c.defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until > 0 && until < timeout {
			timeout = until
		}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.http.DoTimeout(req, resp, timeout); err != nil {
			lastErr = err
			continue
		}
		code := resp.StatusCode()
		if code < 200 || code >= 300 {
			lastErr = fmt.Errorf("%s %s: status %d", method, path, code)
			if code >= 400 && code < 500 {
				return lastErr
			}
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return lastErr
}
