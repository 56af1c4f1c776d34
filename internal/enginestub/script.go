package enginestub

import (
	"encoding/json"
	"time"

	"github.com/tknair/confirmdesk/internal/wire"
)

// DemoScript builds a plausible pipeline run for one symbol: regime,
// signal, score, gate, risk, then an order lifecycle through a partial
// and a completing fill.
func DemoScript(symbol string) []wire.Event {
	now := time.Now().UTC()
	ev := func(i int, typ string, payload map[string]any) wire.Event {
		raw, _ := json.Marshal(payload)
		return wire.Event{
			ID:        "demo-" + typ + "-" + symbol,
			Type:      typ,
			Timestamp: now.Add(time.Duration(i) * 100 * time.Millisecond),
			Symbol:    symbol,
			Payload:   raw,
		}
	}

	return []wire.Event{
		ev(0, wire.EventRegimeUpdate, map[string]any{"label": "trending", "confidence": 0.82}),
		ev(1, wire.EventSignalCandidate, map[string]any{
			"direction": "long", "strategy": "orb-breakout",
			"entry_price": 101.25, "stop_price": 100.40, "target_price": 103.10,
		}),
		ev(2, wire.EventSignalScored, map[string]any{
			"confidence": 0.74, "rationale": "volume confirms breakout", "model": "scorer-v2",
		}),
		ev(3, wire.EventGateApproved, map[string]any{}),
		ev(4, wire.EventRiskApproved, map[string]any{"position_size": 100}),
		ev(5, wire.EventOrderSubmitted, map[string]any{
			"client_order_id": "demo-ord-1", "symbol": symbol,
			"side": "buy", "quantity": 100, "order_type": "limit", "limit_price": 101.25,
		}),
		ev(6, wire.EventOrderConfirmed, map[string]any{"client_order_id": "demo-ord-1"}),
		ev(7, wire.EventOrderFill, map[string]any{
			"client_order_id": "demo-ord-1", "filled_quantity": 60,
			"price": 101.26, "exec_id": "demo-exec-1",
		}),
		ev(8, wire.EventOrderFill, map[string]any{
			"client_order_id": "demo-ord-1", "filled_quantity": 40,
			"price": 101.28, "exec_id": "demo-exec-2",
		}),
		ev(9, wire.EventPositionUpdate, map[string]any{
			"symbol": symbol, "quantity": 100, "avg_price": 101.27,
			"current_price": 101.40, "market_value": 10140.0,
			"unrealized_pnl": 13.0, "unrealized_pnl_pct": 0.13,
		}),
	}
}

// DemoSnapshot is the matching rehydration payload.
func DemoSnapshot() wire.Snapshot {
	return wire.Snapshot{
		TradingMode: "paper",
		GatePolicy: &wire.GatePolicy{
			SignalTTLMs:   1200,
			ArmedUnderMs:  800,
			GreenAboveMs:  800,
			YellowAboveMs: 400,
		},
	}
}
