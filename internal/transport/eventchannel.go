package transport

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// EventChannel maintains the duplex stream to the engine. Inbound
// frames may pack several newline-delimited event records; each record
// is parsed independently and handed to the event callback in arrival
// order. A dropped connection reconnects with exponential backoff
// until the attempt budget is spent, after which the channel stays
// disconnected until Connect is called again.
type EventChannel struct {
	url    string
	policy ReconnectPolicy
	dialer *websocket.Dialer

	onEvent func(wire.Event)
	onState func(ConnectionState)

	mu        sync.Mutex
	conn      *websocket.Conn
	state     ConnectionState
	attempts  int
	reconnect *time.Timer
	gen       int // bumped on Connect/Disconnect to invalidate stale timers and readers
}

// NewEventChannel creates a channel for the given stream URL. Callbacks
// may be nil; they are invoked serially, never concurrently, and must
// not call back into the channel.
func NewEventChannel(url string, policy ReconnectPolicy, onEvent func(wire.Event), onState func(ConnectionState)) *EventChannel {
	return &EventChannel{
		url:     url,
		policy:  policy,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onEvent: onEvent,
		onState: onState,
		state:   StateDisconnected,
	}
}

// Connect establishes the stream. Calling it while connected is an
// error; calling it after the reconnect budget is exhausted starts a
// fresh attempt budget.
func (c *EventChannel) Connect() error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.gen++
	c.attempts = 0
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial(gen)
}

// Disconnect tears the stream down and unconditionally cancels any
// scheduled reconnect. Safe to call repeatedly.
func (c *EventChannel) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	changed := c.state != StateDisconnected
	if changed {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// State reports the current connection state.
func (c *EventChannel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send writes one JSON record to the engine over the stream.
func (c *EventChannel) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(v)
}

func (c *EventChannel) setStateLocked(s ConnectionState) {
	c.state = s
	observ.SetGauge("event_channel_state", float64(s), nil)
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *EventChannel) dial(gen int) error {
	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil // superseded by Disconnect or a newer Connect
	}
	if err != nil {
		c.scheduleReconnectLocked(gen, err)
		c.mu.Unlock()
		return err
	}
	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	observ.IncCounter("event_channel_connects_total", nil)
	go c.readLoop(conn, gen)
	return nil
}

func (c *EventChannel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				// Manual disconnect already handled the transition.
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.setStateLocked(StateDisconnected)
			c.scheduleReconnectLocked(gen, err)
			c.mu.Unlock()
			return
		}
		c.deliverFrame(frame, gen)
	}
}

// deliverFrame splits a frame into newline-delimited records and
// parses each independently. Malformed records are dropped with a
// warning; they never terminate the connection.
func (c *EventChannel) deliverFrame(frame []byte, gen int) {
	for _, rec := range bytes.Split(frame, []byte{'\n'}) {
		rec = bytes.TrimSpace(rec)
		if len(rec) == 0 {
			continue
		}
		var ev wire.Event
		if err := json.Unmarshal(rec, &ev); err != nil || ev.ID == "" || ev.Type == "" {
			observ.IncCounter("event_channel_records_dropped_total", map[string]string{"cause": "malformed"})
			observ.Warn("event_record_dropped", map[string]any{"record": string(rec)})
			continue
		}

		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}

		observ.IncCounter("event_channel_records_total", map[string]string{"type": ev.Type})
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt,
// or gives up once the attempt budget is spent. Caller holds c.mu.
func (c *EventChannel) scheduleReconnectLocked(gen int, cause error) {
	if c.policy.MaxAttempts > 0 && c.attempts >= c.policy.MaxAttempts {
		observ.Warn("event_channel_gave_up", map[string]any{
			"attempts": c.attempts,
			"cause":    cause.Error(),
		})
		c.setStateLocked(StateDisconnected)
		return
	}

	delay := c.policy.Delay(c.attempts)
	c.attempts++
	if c.state != StateConnecting {
		c.setStateLocked(StateConnecting)
	}
	observ.IncCounter("event_channel_reconnects_total", nil)
	observ.Warn("event_channel_reconnecting", map[string]any{
		"attempt":  c.attempts,
		"delay_ms": delay.Milliseconds(),
		"cause":    cause.Error(),
	})

	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		c.mu.Unlock()
		_ = c.dial(gen)
	})
}
