package chain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tknair/confirmdesk/internal/wire"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func mkEvent(t *testing.T, typ, symbol string, payload map[string]any, ts time.Time) wire.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return wire.Event{ID: "ev-" + typ, Type: typ, Timestamp: ts, Symbol: symbol, Payload: raw}
}

func TestStageOverwritesAreIndependent(t *testing.T) {
	a := NewAggregator()

	a.Apply(mkEvent(t, wire.EventGateApproved, "NVDA", map[string]any{}, t0))
	a.Apply(mkEvent(t, wire.EventSignalCandidate, "NVDA", map[string]any{
		"direction": "long", "strategy": "orb", "entry_price": 101.25,
	}, t0.Add(time.Second)))

	ch, ok := a.Snapshot("NVDA")
	if !ok {
		t.Fatal("chain missing")
	}
	if ch.Gate == nil || ch.Gate.Decision != GateApproved || !ch.Gate.UpdatedAt.Equal(t0) {
		t.Fatalf("signal event disturbed gate stage: %+v", ch.Gate)
	}
	if ch.Signal == nil || ch.Signal.Direction != "long" {
		t.Fatalf("signal stage wrong: %+v", ch.Signal)
	}
	if ch.Regime != nil || ch.Score != nil || ch.Risk != nil || ch.Order != nil {
		t.Fatal("unseen stages should stay nil")
	}
}

func TestStageOverwrite_ReplacesOnlyItsStage(t *testing.T) {
	a := NewAggregator()
	a.Apply(mkEvent(t, wire.EventRiskVetoed, "NVDA", map[string]any{
		"reasons": []string{"max exposure"},
	}, t0))
	a.Apply(mkEvent(t, wire.EventRiskApproved, "NVDA", map[string]any{
		"position_size": 50,
	}, t0.Add(time.Second)))

	ch, _ := a.Snapshot("NVDA")
	if ch.Risk.Decision != RiskApproved || len(ch.Risk.Reasons) != 0 || ch.Risk.PositionSize != 50 {
		t.Fatalf("risk overwrite wrong: %+v", ch.Risk)
	}
}

func TestRegimeConfidenceDefaultsToOne(t *testing.T) {
	a := NewAggregator()
	a.Apply(mkEvent(t, wire.EventRegimeUpdate, "NVDA", map[string]any{"label": "choppy"}, t0))

	ch, _ := a.Snapshot("NVDA")
	if ch.Regime == nil || ch.Regime.Confidence != 1.0 {
		t.Fatalf("want default confidence 1.0, got %+v", ch.Regime)
	}
}

func TestApply_IgnoresMissingSymbolAndUnknownTypes(t *testing.T) {
	a := NewAggregator()

	a.Apply(mkEvent(t, wire.EventSignalCandidate, "", map[string]any{"direction": "long"}, t0))
	a.Apply(mkEvent(t, "heartbeat", "NVDA", map[string]any{}, t0))

	if _, ok := a.Snapshot("NVDA"); ok {
		t.Fatal("unknown event type created a chain")
	}
	if len(a.Symbols()) != 0 {
		t.Fatalf("symbols not empty: %v", a.Symbols())
	}
}

func TestOrderStageTracksLifecycleEvents(t *testing.T) {
	a := NewAggregator()
	a.Apply(mkEvent(t, wire.EventOrderSubmitted, "NVDA", map[string]any{
		"client_order_id": "ord-1", "quantity": 100,
	}, t0))
	a.Apply(mkEvent(t, wire.EventOrderFill, "NVDA", map[string]any{
		"client_order_id": "ord-1", "filled_quantity": 60,
	}, t0.Add(time.Second)))

	ch, _ := a.Snapshot("NVDA")
	if ch.Order.Status != wire.EventOrderFill || ch.Order.FilledQuantity != 60 {
		t.Fatalf("order stage wrong: %+v", ch.Order)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	a := NewAggregator()
	a.Apply(mkEvent(t, wire.EventGateRejected, "NVDA", map[string]any{
		"reasons": []string{"spread too wide"},
	}, t0))

	ch, _ := a.Snapshot("NVDA")
	ch.Gate.Decision = "tampered"
	ch.Gate.Reasons[0] = "tampered"

	fresh, _ := a.Snapshot("NVDA")
	if fresh.Gate.Decision != GateRejected || fresh.Gate.Reasons[0] != "spread too wide" {
		t.Fatalf("snapshot shares memory with aggregator: %+v", fresh.Gate)
	}
}

func TestReset_DropsAllChains(t *testing.T) {
	a := NewAggregator()
	a.Apply(mkEvent(t, wire.EventRegimeUpdate, "NVDA", map[string]any{"label": "trending"}, t0))
	a.Reset()
	if _, ok := a.Snapshot("NVDA"); ok {
		t.Fatal("reset left a chain behind")
	}
}
