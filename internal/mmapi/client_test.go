package mmapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DoyleJ11/matchmaking-client/internal/engine"
	"github.com/DoyleJ11/matchmaking-client/internal/optimistic"
	"github.com/DoyleJ11/matchmaking-client/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok", nil), got
}

func TestClientRoutes(t *testing.T) {
	cases := []struct {
		name   string
		call   func(c *Client) error
		method string
		path   string
		field  string
		value  any
	}{
		{"find", func(c *Client) error { return c.FindMatch(context.Background(), "2v2", engine.RaceZerg) }, http.MethodPost, "/matchmaking/find", "matchmakingType", "2v2"},
		{"cancel", func(c *Client) error { return c.CancelFind(context.Background()) }, http.MethodDelete, "/matchmaking/find", "", nil},
		{"accept", func(c *Client) error { return c.AcceptMatch(context.Background()) }, http.MethodPost, "/matchmaking/accept", "", nil},
		{"race", func(c *Client) error { return c.ChangeDraftRace(context.Background(), engine.RaceTerran) }, http.MethodPut, "/draft/race", "race", "t"},
		{"lock", func(c *Client) error { return c.LockInDraftRace(context.Background(), engine.RaceProtoss) }, http.MethodPost, "/draft/lock", "race", "p"},
		{"chat", func(c *Client) error { return c.SendDraftChat(context.Background(), "glhf") }, http.MethodPost, "/draft/chat", "message", "glhf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, got := newServer(t, http.StatusNoContent, "")
			require.NoError(t, tc.call(c))
			assert.Equal(t, tc.method, got.method)
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, "Bearer tok", got.auth)
			if tc.field != "" {
				assert.Equal(t, tc.value, got.body[tc.field])
			}
		})
	}
}

func TestNoActiveMatchMapsToSentinel(t *testing.T) {
	body, _ := json.Marshal(types.ErrorBody{Code: types.ErrCodeNoActiveMatch, Message: "gone"})
	c, _ := newServer(t, http.StatusConflict, string(body))

	err := c.AcceptMatch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, optimistic.ErrNoActiveMatch)
	assert.ErrorIs(t, err, ErrUpstream)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "gone", apiErr.Message)
}

func TestOtherErrorsAreUpstream(t *testing.T) {
	c, _ := newServer(t, http.StatusInternalServerError, "boom")

	err := c.LockInDraftRace(context.Background(), engine.RaceZerg)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, optimistic.ErrNoActiveMatch)
}

func TestContextCancelIsNotUpstream(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewClient(srv.URL, "", nil).ChangeDraftRace(ctx, engine.RaceZerg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
