package chain

import (
	"sync"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// Aggregator routes stage events to their chains. Apply mutates
// exactly the chain for the event's symbol; events without a symbol
// and event types that are not pipeline stages are ignored here (the
// state store may still care about them). Writes arrive serially from
// the event pump; the lock is for readers on other goroutines.
type Aggregator struct {
	mu     sync.RWMutex
	chains map[string]*Chain
}

func NewAggregator() *Aggregator {
	return &Aggregator{chains: make(map[string]*Chain)}
}

// Apply folds one event into its symbol's chain.
func (a *Aggregator) Apply(e wire.Event) {
	if e.Symbol == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case wire.EventRegimeUpdate:
		p, err := wire.DecodeRegime(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		a.chain(e.Symbol).Regime = &RegimeStage{
			Label:      p.Label,
			Confidence: p.Confidence,
			UpdatedAt:  e.Timestamp,
		}

	case wire.EventSignalCandidate:
		p, err := wire.DecodeSignal(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		a.chain(e.Symbol).Signal = &SignalStage{
			Direction:   p.Direction,
			Strategy:    p.Strategy,
			EntryPrice:  p.EntryPrice,
			StopPrice:   p.StopPrice,
			TargetPrice: p.TargetPrice,
			UpdatedAt:   e.Timestamp,
		}

	case wire.EventSignalScored:
		p, err := wire.DecodeScore(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		a.chain(e.Symbol).Score = &ScoreStage{
			Confidence: p.Confidence,
			Rationale:  p.Rationale,
			Model:      p.Model,
			UpdatedAt:  e.Timestamp,
		}

	case wire.EventGateApproved, wire.EventGateRejected:
		p, err := wire.DecodeGate(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		decision := GateApproved
		reasons := []string{}
		if e.Type == wire.EventGateRejected {
			decision = GateRejected
			reasons = p.Reasons
		}
		a.chain(e.Symbol).Gate = &GateStage{
			Decision:  decision,
			Reasons:   reasons,
			UpdatedAt: e.Timestamp,
		}

	case wire.EventRiskApproved, wire.EventRiskVetoed:
		p, err := wire.DecodeRisk(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		decision := RiskApproved
		reasons := []string{}
		if e.Type == wire.EventRiskVetoed {
			decision = RiskVetoed
			reasons = p.Reasons
		}
		a.chain(e.Symbol).Risk = &RiskStage{
			Decision:     decision,
			Reasons:      reasons,
			PositionSize: p.PositionSize,
			UpdatedAt:    e.Timestamp,
		}

	case wire.EventGuardApproved, wire.EventGuardBlocked:
		p, err := wire.DecodeGuard(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		decision := GuardAllowed
		reasons := []string{}
		if e.Type == wire.EventGuardBlocked {
			decision = GuardBlocked
			reasons = p.Reasons
		}
		a.chain(e.Symbol).Guard = &GuardStage{
			Decision:  decision,
			Reasons:   reasons,
			UpdatedAt: e.Timestamp,
		}

	case wire.EventOrderSubmitted, wire.EventOrderConfirmed, wire.EventOrderFill:
		p, err := wire.DecodeOrder(e)
		if err != nil {
			a.dropped(e, err)
			return
		}
		a.chain(e.Symbol).Order = &OrderStage{
			Status:         e.Type,
			ClientOrderID:  p.ClientOrderID,
			FilledQuantity: p.FilledQuantity,
			UpdatedAt:      e.Timestamp,
		}
	}
}

// Snapshot returns a deep copy of the chain for symbol.
func (a *Aggregator) Snapshot(symbol string) (Chain, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.chains[symbol]
	if !ok {
		return Chain{}, false
	}
	return c.Clone(), true
}

// Symbols lists every symbol with a chain, in no particular order.
func (a *Aggregator) Symbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.chains))
	for s := range a.chains {
		out = append(out, s)
	}
	return out
}

// Reset drops all chains; used before snapshot rehydration.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chains = make(map[string]*Chain)
}

func (a *Aggregator) chain(symbol string) *Chain {
	c, ok := a.chains[symbol]
	if !ok {
		c = &Chain{Symbol: symbol}
		a.chains[symbol] = c
	}
	return c
}

func (a *Aggregator) dropped(e wire.Event, err error) {
	observ.IncCounter("chain_events_dropped_total", map[string]string{"type": e.Type})
	observ.Warn("chain_event_dropped", map[string]any{
		"event_id": e.ID,
		"type":     e.Type,
		"error":    err.Error(),
	})
}
