// Package app wires the core together: one goroutine multiplexes the
// event stream, the 100ms gate tick and the 30s refresh poll, so the
// store and aggregator never see concurrent writes.
package app

import (
	"context"
	"time"

	"github.com/tknair/confirmdesk/internal/chain"
	"github.com/tknair/confirmdesk/internal/config"
	"github.com/tknair/confirmdesk/internal/gate"
	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/slots"
	"github.com/tknair/confirmdesk/internal/state"
	"github.com/tknair/confirmdesk/internal/transport"
	"github.com/tknair/confirmdesk/internal/wire"
)

const (
	gateTickInterval = 100 * time.Millisecond
	refreshInterval  = 30 * time.Second
)

// Pump owns the desk's event loop.
type Pump struct {
	cfg   config.Root
	store *state.Store
	agg   *chain.Aggregator
	slots *slots.Manager
	eval  *gate.Evaluator

	channel   *transport.EventChannel
	commands  *transport.CommandChannel
	snapshots *transport.SnapshotClient
	confirmer *gate.Confirmer

	events chan wire.Event
	states chan transport.ConnectionState

	// onGateTick, when set, receives every 100ms evaluation of the
	// active slot's symbol. Display surfaces hang off this.
	onGateTick func(symbol string, res gate.Result)
}

// New builds a fully wired pump from config.
func New(cfg config.Root) *Pump {
	p := &Pump{
		cfg:    cfg,
		store:  state.NewStore(cfg.TradingMode),
		agg:    chain.NewAggregator(),
		slots:  slots.NewManager(cfg.Slots.StatePath),
		eval:   gate.NewEvaluator(policyFromConfig(cfg.Gate)),
		events: make(chan wire.Event, 1024),
		states: make(chan transport.ConnectionState, 16),
	}

	p.channel = transport.NewEventChannel(
		cfg.Engine.StreamURL,
		transport.ReconnectPolicy{
			BaseDelay:   time.Duration(cfg.Reconnect.BaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Reconnect.MaxDelayMs) * time.Millisecond,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		p.enqueueEvent,
		p.enqueueState,
	)
	p.commands = transport.NewCommandChannel(transport.CommandChannelConfig{
		URL:           cfg.Engine.CommandURL,
		Timeout:       time.Duration(cfg.Commands.TimeoutMs) * time.Millisecond,
		SweepAfter:    time.Duration(cfg.Commands.SweepAfterSecs) * time.Second,
		RatePerSecond: cfg.Commands.RatePerSecond,
		RateBurst:     cfg.Commands.RateBurst,
	}, p.store)
	p.snapshots = transport.NewSnapshotClient(cfg.Engine.SnapshotURL)
	p.confirmer = gate.NewConfirmer(p.eval, p.store, p.commands)
	return p
}

func policyFromConfig(g config.Gate) gate.Policy {
	return gate.Policy{
		SignalTTL:   time.Duration(g.SignalTTLMs) * time.Millisecond,
		ArmedUnder:  time.Duration(g.ArmedUnderMs) * time.Millisecond,
		GreenAbove:  time.Duration(g.GreenAboveMs) * time.Millisecond,
		YellowAbove: time.Duration(g.YellowAboveMs) * time.Millisecond,
	}
}

// Store exposes the ledger to display surfaces.
func (p *Pump) Store() *state.Store { return p.store }

// Slots exposes the chain slot manager.
func (p *Pump) Slots() *slots.Manager { return p.slots }

// Evaluator exposes the gate evaluator for ad hoc polls.
func (p *Pump) Evaluator() *gate.Evaluator { return p.eval }

// ChainSnapshot returns a copy of the decision chain for symbol.
func (p *Pump) ChainSnapshot(symbol string) (chain.Chain, bool) {
	return p.agg.Snapshot(symbol)
}

// SetGateTickFunc registers the per-tick gate consumer. Must be called
// before Run.
func (p *Pump) SetGateTickFunc(fn func(symbol string, res gate.Result)) {
	p.onGateTick = fn
}

// ConfirmActive submits a confirmation for the active slot's symbol.
func (p *Pump) ConfirmActive(ctx context.Context) (wire.CommandResult, error) {
	slot := p.slots.Active()
	var ch *chain.Chain
	if snap, ok := p.agg.Snapshot(slot.Symbol); ok {
		ch = &snap
	}
	return p.confirmer.Confirm(ctx, time.Now(), slot.Symbol, slot.ID, ch)
}

// Run drives the loop until ctx is done. Connection management,
// event application, gate ticks and the refresh poll all execute here,
// one at a time.
func (p *Pump) Run(ctx context.Context) error {
	if err := p.slots.Load(); err != nil {
		observ.Warn("slot_state_load_failed", map[string]any{"error": err.Error()})
	}

	p.commands.Start()
	defer p.commands.Close()
	defer p.channel.Disconnect()

	if err := p.channel.Connect(); err != nil {
		// The channel keeps retrying on its own; just report it.
		observ.Warn("initial_connect_failed", map[string]any{"error": err.Error()})
	}

	gateTick := time.NewTicker(gateTickInterval)
	defer gateTick.Stop()
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-p.events:
			p.agg.Apply(ev)
			p.store.Apply(ev)

		case st := <-p.states:
			observ.Log("connection_state", map[string]any{"state": st.String()})
			if st == transport.StateConnected {
				// Events missed during a gap are gone for good;
				// resync from a snapshot instead of pretending the
				// stream was gapless.
				p.resync(ctx)
			}

		case now := <-gateTick.C:
			p.tick(now)

		case <-refresh.C:
			p.refreshStats()
		}
	}
}

func (p *Pump) tick(now time.Time) {
	symbol := p.slots.ActiveSymbol()
	var ch *chain.Chain
	if snap, ok := p.agg.Snapshot(symbol); ok {
		ch = &snap
	}
	res := p.eval.Evaluate(now, symbol, ch, p.store.Flags())
	observ.IncCounter("gate_evaluations_total", map[string]string{"verdict": string(res.Verdict)})
	if p.onGateTick != nil {
		p.onGateTick(symbol, res)
	}
}

func (p *Pump) resync(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	snap, err := p.snapshots.Fetch(fetchCtx)
	if err != nil {
		observ.Warn("resync_failed", map[string]any{"error": err.Error()})
		return
	}

	// Reset before rehydrate so stale state never mixes with fresh.
	p.store.Reset()
	p.agg.Reset()
	p.store.Rehydrate(snap)

	if p.cfg.Gate.UseEnginePolicy && snap.GatePolicy != nil {
		p.eval.SetPolicy(gate.PolicyFromWire(snap.GatePolicy, policyFromConfig(p.cfg.Gate)))
		observ.Log("gate_policy_adopted", map[string]any{
			"signal_ttl_ms": snap.GatePolicy.SignalTTLMs,
		})
	}
}

func (p *Pump) refreshStats() {
	observ.SetGauge("orders_open", float64(len(p.store.OpenOrders())), nil)
	observ.SetGauge("positions", float64(len(p.store.Positions())), nil)
	observ.SetGauge("executions_retained", float64(len(p.store.Executions(0))), nil)
}

func (p *Pump) enqueueEvent(ev wire.Event) {
	// Blocking here applies backpressure to the websocket reader.
	p.events <- ev
}

func (p *Pump) enqueueState(st transport.ConnectionState) {
	select {
	case p.states <- st:
	default:
		// Coalesce bursts; the latest state lands on the next push.
	}
}
