package mmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/optimistic"
	"github.com/DoyleJ11/matchmaking-client/pkg/types"
	"go.uber.org/zap"
)

// ErrUpstream marks any failure reported by, or on the way to, the
// matchmaking server.
var ErrUpstream = errors.New("matchmaking server error")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("matchmaking server returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("matchmaking server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case optimistic.ErrNoActiveMatch:
		return e.Code == types.ErrCodeNoActiveMatch
	}
	return false
}

// Client sends player actions to the matchmaking server.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
	logger  *zap.Logger
}

var _ optimistic.Requester = (*Client)(nil)

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) FindMatch(ctx context.Context, matchmakingType string, race engine.Race) error {
	return c.do(ctx, http.MethodPost, "/matchmaking/find", types.FindMatchRequest{
		MatchmakingType: matchmakingType,
		Race:            string(race),
	})
}

func (c *Client) CancelFind(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/matchmaking/find", types.CancelFindRequest{})
}

func (c *Client) AcceptMatch(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/matchmaking/accept", types.AcceptMatchRequest{})
}

func (c *Client) ChangeDraftRace(ctx context.Context, race engine.Race) error {
	return c.do(ctx, http.MethodPut, "/draft/race", types.DraftRaceRequest{Race: string(race)})
}

func (c *Client) LockInDraftRace(ctx context.Context, race engine.Race) error {
	return c.do(ctx, http.MethodPost, "/draft/lock", types.DraftRaceRequest{Race: string(race)})
}

func (c *Client) SendDraftChat(ctx context.Context, message string) error {
	return c.do(ctx, http.MethodPost, "/draft/chat", types.DraftChatRequest{Message: message})
}

func (c *Client) do(ctx context.Context, method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var eb types.ErrorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Code != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
	}
	c.logger.Warn("matchmaking request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("code", apiErr.Code))
	return apiErr
}
