package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tknair/confirmdesk/internal/config"
	"github.com/tknair/confirmdesk/internal/enginestub"
	"github.com/tknair/confirmdesk/internal/gate"
	"github.com/tknair/confirmdesk/internal/state"
)

func stubConfig(t *testing.T, baseURL string) config.Root {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.StreamURL = "ws" + strings.TrimPrefix(baseURL, "http") + "/stream"
	cfg.Engine.CommandURL = baseURL + "/commands"
	cfg.Engine.SnapshotURL = baseURL + "/snapshot"
	cfg.Slots.StatePath = filepath.Join(t.TempDir(), "slots.json")
	return cfg
}

type tickCapture struct {
	mu   sync.Mutex
	last gate.Result
	seen bool
}

func (c *tickCapture) record(_ string, res gate.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last, c.seen = res, true
}

func (c *tickCapture) latest() (gate.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.seen
}

// End-to-end through the stub engine: stream consumption, chain
// aggregation, order lifecycle in the store and gate ticks all driven
// by the pump's single loop.
func TestPump_ConsumesStubStream(t *testing.T) {
	// A slow-ish script interval keeps the post-connect resync ahead of
	// the first replayed event.
	stub := enginestub.New(enginestub.DemoScript("NVDA"), enginestub.DemoSnapshot(), 50*time.Millisecond)
	srv := httptest.NewServer(stub.Routes())
	defer srv.Close()

	p := New(stubConfig(t, srv.URL))
	require.NoError(t, p.Slots().Assign(0, "NVDA", "1m"))

	capture := &tickCapture{}
	p.SetGateTickFunc(capture.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		o, ok := p.Store().Order("demo-ord-1")
		return ok && o.Status == state.OrderFilled
	}, 5*time.Second, 20*time.Millisecond, "order lifecycle never completed")

	ch, ok := p.ChainSnapshot("NVDA")
	require.True(t, ok)
	require.NotNil(t, ch.Signal)
	assert.Equal(t, "long", ch.Signal.Direction)
	require.NotNil(t, ch.Gate)
	assert.Equal(t, "approved", ch.Gate.Decision)
	require.NotNil(t, ch.Order)

	pos, ok := p.Store().Position("NVDA")
	require.True(t, ok)
	assert.Equal(t, 100, pos.Quantity)

	require.Eventually(t, func() bool {
		_, seen := capture.latest()
		return seen
	}, 2*time.Second, 20*time.Millisecond, "no gate tick observed")

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after cancel")
	}
}

func TestPump_ConfirmActiveBlockedWithoutSignal(t *testing.T) {
	stub := enginestub.New(nil, enginestub.DemoSnapshot(), time.Hour)
	srv := httptest.NewServer(stub.Routes())
	defer srv.Close()

	p := New(stubConfig(t, srv.URL))
	require.NoError(t, p.Slots().Assign(0, "NVDA", "1m"))

	_, err := p.ConfirmActive(context.Background())
	var blocked *gate.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, gate.CodeNoSignal, blocked.Reasons[0].Code)
}

func TestPump_ConfirmActiveNoSymbol(t *testing.T) {
	stub := enginestub.New(nil, enginestub.DemoSnapshot(), time.Hour)
	srv := httptest.NewServer(stub.Routes())
	defer srv.Close()

	p := New(stubConfig(t, srv.URL))

	_, err := p.ConfirmActive(context.Background())
	var blocked *gate.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, gate.CodeNoSymbol, blocked.Reasons[0].Code)
}
