package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoyleJ11/matchmaking-client/pkg/types"
	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
	readLimit         = 1 << 20
)

// Sink receives the decoded event stream. The router implements it.
type Sink interface {
	Deliver(ctx context.Context, env types.Envelope) error
	Reconnected(ctx context.Context) error
}

type Options struct {
	Token      string
	Clock      clockwork.Clock
	Logger     *zap.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Conn holds the one event stream from the matchmaking server, redialing
// whenever it drops.
type Conn struct {
	url    string
	sink   Sink
	token  string
	clock  clockwork.Clock
	logger *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func New(url string, sink Sink, opts Options) *Conn {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(DefaultMaxBackoff, opts.MinBackoff)
	}
	return &Conn{
		url:        url,
		sink:       sink,
		token:      opts.Token,
		clock:      opts.Clock,
		logger:     opts.Logger,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
	}
}

// Run dials and reads until ctx is done. It only returns ctx's error.
func (c *Conn) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
		}
		c.logger.Warn("upstream connection lost",
			zap.Error(err),
			zap.Duration("retryIn", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// session runs one connection. connected reports whether the dial got
// through, which resets the backoff.
func (c *Conn) session(ctx context.Context) (connected bool, err error) {
	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	// State from the previous connection can't be trusted past this point.
	if err := c.sink.Reconnected(ctx); err != nil {
		return true, err
	}
	c.logger.Info("upstream connected", zap.String("url", c.url))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return true, errors.New("closed by server")
			}
			return true, err
		}
		if typ != websocket.MessageText {
			continue
		}

		env, err := types.Decode(data)
		if err != nil {
			// One bad frame doesn't poison the stream.
			c.logger.Warn("dropping undecodable event", zap.Error(err))
			continue
		}
		if err := c.sink.Deliver(ctx, env); err != nil {
			return true, err
		}
	}
}
