package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tknair/confirmdesk/internal/wire"
)

// wsTestServer feeds scripted frames to the first stream client.
func wsTestServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestEventChannel_SplitsFramesAndDropsMalformed(t *testing.T) {
	frames := []string{
		// One frame, two records.
		`{"event_id":"e1","event_type":"regime_update","timestamp":"2025-06-02T14:30:00Z","symbol":"NVDA","payload":{"label":"trending"}}
{"event_id":"e2","event_type":"signal_candidate","timestamp":"2025-06-02T14:30:01Z","symbol":"NVDA","payload":{"direction":"long"}}`,
		// Malformed record between two good ones.
		`{"event_id":"e3","event_type":"gate_approved","timestamp":"2025-06-02T14:30:02Z","symbol":"NVDA","payload":{}}
{not json}
{"event_id":"e4","event_type":"risk_approved","timestamp":"2025-06-02T14:30:03Z","symbol":"NVDA","payload":{}}`,
		// Missing required envelope fields: dropped.
		`{"payload":{"direction":"long"}}`,
	}
	srv := wsTestServer(t, frames)
	defer srv.Close()

	events := make(chan wire.Event, 16)
	c := NewEventChannel(wsURL(srv), ReconnectPolicy{
		BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxAttempts: 1,
	}, func(ev wire.Event) { events <- ev }, nil)

	require.NoError(t, c.Connect())
	defer c.Disconnect()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 4 {
		select {
		case ev := <-events:
			got = append(got, ev.ID)
		case <-timeout:
			t.Fatalf("timed out, received %v", got)
		}
	}
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, got, "records must arrive in order")

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %s", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventChannel_StateTransitions(t *testing.T) {
	srv := wsTestServer(t, nil)
	defer srv.Close()

	states := make(chan ConnectionState, 16)
	c := NewEventChannel(wsURL(srv), ReconnectPolicy{
		BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxAttempts: 1,
	}, nil, func(s ConnectionState) { states <- s })

	require.NoError(t, c.Connect())

	require.Equal(t, StateConnecting, <-states)
	require.Equal(t, StateConnected, <-states)
	assert.Equal(t, StateConnected, c.State())

	c.Disconnect()
	require.Equal(t, StateDisconnected, <-states)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestEventChannel_DisconnectIsIdempotentAndCancelsReconnect(t *testing.T) {
	// Dead endpoint: connect fails and schedules a reconnect.
	c := NewEventChannel("ws://127.0.0.1:1/stream", ReconnectPolicy{
		BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 100,
	}, nil, nil)

	err := c.Connect()
	require.Error(t, err)
	require.Equal(t, StateConnecting, c.State(), "failed dial should leave channel retrying")

	c.Disconnect()
	c.Disconnect() // idempotent

	assert.Equal(t, StateDisconnected, c.State())

	// Had the reconnect timer survived, it would flip the state back
	// to connecting.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State(), "manual disconnect must cancel scheduled reconnect")
}

func TestEventChannel_GivesUpAfterMaxAttempts(t *testing.T) {
	c := NewEventChannel("ws://127.0.0.1:1/stream", ReconnectPolicy{
		BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, MaxAttempts: 2,
	}, nil, nil)

	_ = c.Connect()

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "channel should settle disconnected after attempt budget")

	// Explicit Connect starts a fresh budget.
	_ = c.Connect()
	require.NotEqual(t, StateDisconnected, c.State())
	c.Disconnect()
}

func TestEventChannel_ConnectWhileConnectedFails(t *testing.T) {
	srv := wsTestServer(t, nil)
	defer srv.Close()

	c := NewEventChannel(wsURL(srv), ReconnectPolicy{
		BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, MaxAttempts: 1,
	}, nil, nil)

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)
}
