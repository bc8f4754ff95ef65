package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
)

const (
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the scorebrawl HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	userID  string
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		userID:  userID,
	}
}

// SeasonStanding is one row of the standings read model.
type SeasonStanding struct {
	Rank           int    `json:"rank"`
	SeasonPlayerID string `json:"season_player_id"`
	PlayerID       string `json:"player_id"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
}

// MatchResult is the settled match as returned by the server.
type MatchResult struct {
	Match     model.Match         `json:"match"`
	ScoreType model.ScoreType     `json:"score_type"`
	Players   []model.MatchPlayer `json:"players"`
	Teams     []model.MatchTeam   `json:"teams"`
	NewTeams  []model.Team        `json:"new_teams"`
	Duplicate bool                `json:"duplicate"`
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// CreatePlayer registers a player.
func (c *Client) CreatePlayer(ctx context.Context, name string) (model.Player, error) {
	var p model.Player
	err := c.do(ctx, http.MethodPost, "/players", nil, map[string]string{"name": name}, &p)
	return p, err
}

// CreateSeason opens a season.
func (c *Client) CreateSeason(ctx context.Context, name string, mode model.ScoreType) (model.Season, error) {
	var s model.Season
	body := map[string]string{"name": name, "score_type": string(mode)}
	err := c.do(ctx, http.MethodPost, "/seasons", nil, body, &s)
	return s, err
}

// Season fetches one season.
func (c *Client) Season(ctx context.Context, seasonID string) (model.Season, error) {
	var s model.Season
	err := c.do(ctx, http.MethodGet, "/seasons/"+url.PathEscape(seasonID), nil, nil, &s)
	return s, err
}

// JoinSeason enrolls a player.
func (c *Client) JoinSeason(ctx context.Context, seasonID, playerID string) (model.SeasonPlayer, error) {
	var sp model.SeasonPlayer
	err := c.do(ctx, http.MethodPost, "/seasons/"+url.PathEscape(seasonID)+"/players", nil,
		map[string]string{"player_id": playerID}, &sp)
	return sp, err
}

// CreateMatch submits a match under an idempotency key.
func (c *Client) CreateMatch(ctx context.Context, seasonID, key string, m GeneratedMatch) (MatchResult, error) {
	var res MatchResult
	body := map[string]any{
		"home_player_ids": m.Home,
		"away_player_ids": m.Away,
		"home_score":      m.HomeScore,
		"away_score":      m.AwayScore,
	}
	err := c.do(ctx, http.MethodPost, "/seasons/"+url.PathEscape(seasonID)+"/matches",
		map[string]string{headerIdempotencyKey: key}, body, &res)
	return res, err
}

// RemoveMatch reverts the latest match of a season.
func (c *Client) RemoveMatch(ctx context.Context, seasonID, matchID string) error {
	return c.do(ctx, http.MethodDelete,
		"/seasons/"+url.PathEscape(seasonID)+"/matches/"+url.PathEscape(matchID), nil, nil, nil)
}

// Matches lists up to limit matches of a season, newest first.
func (c *Client) Matches(ctx context.Context, seasonID string, limit int) ([]model.Match, error) {
	var out []model.Match
	err := c.do(ctx, http.MethodGet,
		"/seasons/"+url.PathEscape(seasonID)+"/matches?limit="+strconv.Itoa(limit), nil, nil, &out)
	return out, err
}

// Standings fetches the top n of a season.
func (c *Client) Standings(ctx context.Context, seasonID string, n int) ([]SeasonStanding, error) {
	var out []SeasonStanding
	err := c.do(ctx, http.MethodGet,
		"/seasons/"+url.PathEscape(seasonID)+"/standings?limit="+strconv.Itoa(n), nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(headerUserID, c.userID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}
