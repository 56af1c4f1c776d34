package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// PendingTracker is how the command channel reports in-flight commands
// to the state store. The store owns the pending set; the channel only
// adds on send, drops on send failure, and drives the staleness sweep.
type PendingTracker interface {
	TrackPending(cmd wire.Command, symbol string)
	DropPending(commandID string)
	SweepPending(olderThan time.Time) int
}

// CommandChannelConfig tunes the outbound request path.
type CommandChannelConfig struct {
	URL           string
	Timeout       time.Duration // per-request bound, default 10s
	SweepAfter    time.Duration // pending entries older than this are discarded
	SweepInterval time.Duration
	RatePerSecond float64
	RateBurst     int
}

// CommandChannel sends fire-and-forget commands to the engine. Every
// command gets a fresh UUID; the engine's event stream, not a retry
// loop, is the recovery path for anything that goes wrong after the
// request leaves.
type CommandChannel struct {
	cfg     CommandChannelConfig
	client  *http.Client
	limiter *rate.Limiter
	tracker PendingTracker

	mu     sync.Mutex
	sweep  *time.Ticker
	done   chan struct{}
	closed bool
}

func NewCommandChannel(cfg CommandChannelConfig, tracker PendingTracker) *CommandChannel {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SweepAfter <= 0 {
		cfg.SweepAfter = 60 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &CommandChannel{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		tracker: tracker,
	}
}

// Start runs the pending-command staleness sweep until Close.
func (c *CommandChannel) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sweep != nil || c.closed {
		return
	}
	c.sweep = time.NewTicker(c.cfg.SweepInterval)
	c.done = make(chan struct{})
	go func(tick <-chan time.Time, done chan struct{}) {
		for {
			select {
			case now := <-tick:
				if n := c.tracker.SweepPending(now.Add(-c.cfg.SweepAfter)); n > 0 {
					observ.IncCounterBy("commands_swept_total", nil, int64(n))
				}
			case <-done:
				return
			}
		}
	}(c.sweep.C, c.done)
}

// Close stops the sweep loop. Idempotent.
func (c *CommandChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.sweep != nil {
		c.sweep.Stop()
		close(c.done)
		c.sweep = nil
	}
}

// Send issues one command and returns the engine's synchronous verdict.
// The command id is tracked as pending before the request goes out; on
// any transport failure the pending entry is dropped and the error is
// returned to the caller — there is no automatic retry.
func (c *CommandChannel) Send(ctx context.Context, cmdType string, payload map[string]any) (wire.CommandResult, error) {
	cmd := wire.Command{
		ID:        uuid.NewString(),
		Type:      cmdType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	symbol, _ := payload["symbol"].(string)

	if err := c.limiter.Wait(ctx); err != nil {
		return wire.CommandResult{}, fmt.Errorf("command %s: rate wait: %w", cmdType, err)
	}

	c.tracker.TrackPending(cmd, symbol)
	started := time.Now()

	res, err := c.post(ctx, cmd)
	observ.RecordDuration("command_send", time.Since(started), map[string]string{"type": cmdType})
	if err != nil {
		c.tracker.DropPending(cmd.ID)
		observ.IncCounter("commands_failed_total", map[string]string{"type": cmdType})
		return wire.CommandResult{}, err
	}

	observ.IncCounter("commands_sent_total", map[string]string{
		"type":     cmdType,
		"accepted": fmt.Sprintf("%t", res.Accepted),
	})
	observ.Log("command_sent", map[string]any{
		"command_id": cmd.ID,
		"type":       cmdType,
		"symbol":     symbol,
		"accepted":   res.Accepted,
	})
	return res, nil
}

func (c *CommandChannel) post(ctx context.Context, cmd wire.Command) (wire.CommandResult, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return wire.CommandResult{}, fmt.Errorf("command %s: marshal: %w", cmd.Type, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return wire.CommandResult{}, fmt.Errorf("command %s: build request: %w", cmd.Type, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return wire.CommandResult{}, fmt.Errorf("command %s: %w", cmd.Type, ErrCommandTimeout)
		}
		return wire.CommandResult{}, fmt.Errorf("command %s: %w", cmd.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return wire.CommandResult{}, fmt.Errorf("command %s: status %d: %s", cmd.Type, resp.StatusCode, bytes.TrimSpace(b))
	}

	var res wire.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return wire.CommandResult{}, fmt.Errorf("command %s: decode response: %w", cmd.Type, err)
	}
	if res.CommandID == "" {
		res.CommandID = cmd.ID
	}
	return res, nil
}
