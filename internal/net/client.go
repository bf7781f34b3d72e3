package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bowarena/client/internal/config"
	"github.com/bowarena/client/internal/net/proto"
	"go.uber.org/zap"
)

// Client is the bearer-authenticated JSON client for the arena and duel API.
// Methods block; the frame loop calls them through a Queue.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.ClientConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		log:     log,
	}
}

// do sends body as JSON and decodes the response into out. Policy
// rejections ({"error": ...}) come back as *proto.APIError whatever the
// status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var apiErr proto.APIError
	if len(raw) > 0 && json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
		apiErr.Status = resp.StatusCode
		return &apiErr
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// IsRejection reports whether err is a server policy rejection with code.
func IsRejection(err error, code string) bool {
	var apiErr *proto.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ---- Arena ----

func (c *Client) Start(ctx context.Context) (*proto.StartResponse, error) {
	var out proto.StartResponse
	if err := c.do(ctx, http.MethodPost, "/arena/start", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Attack(ctx context.Context, runID string, monsterIndex int) (*proto.AttackResponse, error) {
	var out proto.AttackResponse
	req := proto.AttackRequest{RunID: runID, MonsterIndex: monsterIndex}
	if err := c.do(ctx, http.MethodPost, "/arena/attack", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MonsterHit(ctx context.Context, runID string, monsterIndex int) (*proto.MonsterHitResponse, error) {
	var out proto.MonsterHitResponse
	req := proto.MonsterHitRequest{RunID: runID, MonsterIndex: monsterIndex}
	if err := c.do(ctx, http.MethodPost, "/arena/monster-hit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NextWave(ctx context.Context, runID string) (*proto.NextWaveResponse, error) {
	var out proto.NextWaveResponse
	if err := c.do(ctx, http.MethodPost, "/arena/next-wave", proto.NextWaveRequest{RunID: runID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Ping(ctx context.Context) (*proto.PingResponse, error) {
	var out proto.PingResponse
	if err := c.do(ctx, http.MethodPost, "/arena/ping", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) State(ctx context.Context) (*proto.StateResponse, error) {
	var out proto.StateResponse
	if err := c.do(ctx, http.MethodGet, "/arena/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- PvP ----

func (c *Client) CreateBattle(ctx context.Context) (*proto.Battle, error) {
	var out proto.Battle
	if err := c.do(ctx, http.MethodPost, "/pvp/battles", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBattles(ctx context.Context, mine bool) ([]proto.Battle, error) {
	path := "/pvp/list"
	if mine {
		path += "?mine=1"
	}
	var out proto.BattleList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Battles, nil
}

func (c *Client) GetBattle(ctx context.Context, id string) (*proto.Battle, error) {
	var out proto.Battle
	if err := c.do(ctx, http.MethodGet, "/pvp/battles/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EnterBattle(ctx context.Context, id string) (*proto.EnterResponse, error) {
	var out proto.EnterResponse
	if err := c.do(ctx, http.MethodPost, "/pvp/battles/"+url.PathEscape(id)+"/enter", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PvpAttack(ctx context.Context, runID string) (*proto.PvpAttackResponse, error) {
	var out proto.PvpAttackResponse
	if err := c.do(ctx, http.MethodPost, "/pvp/attack", proto.PvpAttackRequest{RunID: runID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PollRun(ctx context.Context, runID string) (*proto.RunState, error) {
	var out proto.RunState
	if err := c.do(ctx, http.MethodGet, "/pvp/run/"+url.PathEscape(runID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PushPosition(ctx context.Context, runID string, pos proto.PositionUpdate) (*proto.PingResponse, error) {
	var out proto.PingResponse
	if err := c.do(ctx, http.MethodPost, "/pvp/run/"+url.PathEscape(runID)+"/position", pos, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
